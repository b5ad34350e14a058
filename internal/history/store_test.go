package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/racebot/gorace/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cycles.db"))
	if err != nil {
		t.Fatalf("打开报告库失败: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleReport(id string, at time.Time) *domain.CycleReport {
	r := domain.NewCycleReport(id)
	r.StartedAt = at
	r.Duration = 42 * time.Second
	r.BotsTotal = 5
	r.BotsOK = 3
	r.BotsSkipped = 1
	r.Phases["alpha"] = string(domain.PhasePreRace)
	r.RecordAction(domain.MoveTo(1, domain.ZoneRepairBay, "测试"))
	r.RecordAction(domain.Stop(2, "测试"))
	r.RecordFailure(3, domain.ActionMove, errors.New("gateway timeout"))
	r.Evicted = append(r.Evicted, 4)
	r.AddCost(decimal.RequireFromString("1.3"))
	return r
}

// TestSaveAndGetReport 报告落库后按 ID 取回
func TestSaveAndGetReport(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 8, 31, 14, 5, 0, 0, time.UTC)

	if err := s.SaveReport(ctx, sampleReport("cycle-1", at)); err != nil {
		t.Fatalf("落库失败: %v", err)
	}

	got, err := s.GetReport(ctx, "cycle-1")
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	if got == nil {
		t.Fatal("报告应该存在")
	}
	if !got.StartedAt.Equal(at) {
		t.Errorf("开始时间应该为 %s，实际 %s", at, got.StartedAt)
	}
	if got.Duration != 42*time.Second {
		t.Errorf("用时应该为 42s，实际 %s", got.Duration)
	}
	if got.BotsTotal != 5 || got.BotsOK != 3 || got.BotsFailed != 1 || got.BotsSkipped != 1 {
		t.Errorf("机器人计数错误: %+v", got)
	}
	if got.Phases["alpha"] != string(domain.PhasePreRace) {
		t.Errorf("阶段应该为赛前，实际 %v", got.Phases)
	}
	if got.Actions[domain.ActionMove] != 1 || got.Actions[domain.ActionStop] != 1 {
		t.Errorf("动作统计错误: %v", got.Actions)
	}
	if len(got.Failures) != 1 {
		t.Errorf("失败记录应该有 1 条，实际 %v", got.Failures)
	}
	if len(got.Evicted) != 1 || got.Evicted[0] != 4 {
		t.Errorf("驱逐名单错误: %v", got.Evicted)
	}
	if !got.PaidCost.Equal(decimal.RequireFromString("1.3")) {
		t.Errorf("付费成本应该为 1.3，实际 %s", got.PaidCost)
	}
}

// TestGetMissingReport 不存在的报告返回 nil 而不是错误
func TestGetMissingReport(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetReport(context.Background(), "no-such-cycle")
	if err != nil {
		t.Fatalf("查询不存在的报告不应该报错: %v", err)
	}
	if got != nil {
		t.Errorf("不存在的报告应该返回 nil，实际 %+v", got)
	}
}

// TestListReportsOrderAndLimit 列表按开始时间倒序并遵守 limit
func TestListReportsOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		r := sampleReport(
			[]string{"cycle-a", "cycle-b", "cycle-c"}[i],
			base.Add(time.Duration(i)*time.Hour),
		)
		if err := s.SaveReport(ctx, r); err != nil {
			t.Fatalf("落库失败: %v", err)
		}
	}

	got, err := s.ListReports(ctx, 2)
	if err != nil {
		t.Fatalf("列表失败: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit=2 应该返回 2 条，实际 %d 条", len(got))
	}
	if got[0].ID != "cycle-c" || got[1].ID != "cycle-b" {
		t.Errorf("应该按时间倒序返回 [cycle-c cycle-b]，实际 [%s %s]", got[0].ID, got[1].ID)
	}
}
