package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/racebot/gorace/internal/domain"
	"github.com/racebot/gorace/internal/rpc"
)

func testExecutor(mock *rpc.MockClient) *Executor {
	return New(mock, Config{
		SettleDelay:  time.Millisecond, // 测试中不等真实沉淀延迟
		RetryRounds:  3,
		RechargeCost: decimal.RequireFromString("0.5"),
		RepairCost:   decimal.RequireFromString("0.8"),
	})
}

// TestMoveStopsBeforeStart 区域转移必须先 stop 再 start
func TestMoveStopsBeforeStart(t *testing.T) {
	mock := rpc.NewMockClient()
	mock.Statuses[7] = &domain.BotSnapshot{ID: 7, Zone: domain.ZoneScrapyard, IsActive: true}
	e := testExecutor(mock)

	result := e.ExecuteBatch(context.Background(), []domain.Action{
		domain.MoveTo(7, domain.ZoneRepairBay, "测试转移"),
	})

	if result.Succeeded != 1 || len(result.Failed) != 0 {
		t.Fatalf("转移应该成功，实际 succeeded=%d failed=%v", result.Succeeded, result.Failed)
	}
	calls := mock.CallsOf(7)
	if len(calls) != 2 {
		t.Fatalf("应该恰好两次调用（stop+start），实际 %v", calls)
	}
	if !strings.HasPrefix(calls[0], rpc.OpStopActivity) || !strings.HasPrefix(calls[1], rpc.OpStartActivity) {
		t.Errorf("调用次序应该是先 stop 后 start，实际 %v", calls)
	}
	if mock.Statuses[7].Zone != domain.ZoneRepairBay {
		t.Errorf("机器人应该已在维修间，实际 %s", mock.Statuses[7].Zone)
	}
}

// TestStopIdleBotIsSuccess "无进行中任务" 等价于成功
func TestStopIdleBotIsSuccess(t *testing.T) {
	mock := rpc.NewMockClient()
	mock.ErrorOnNext[rpc.OpStopActivity] = errors.New("game error on stop_activity: No active mission")
	e := testExecutor(mock)

	result := e.ExecuteBatch(context.Background(), []domain.Action{
		domain.Stop(3, "测试停止"),
	})
	if result.Succeeded != 1 {
		t.Errorf("对空闲机器人 stop 应该视为成功，实际 succeeded=%d failed=%v", result.Succeeded, result.Failed)
	}
	if mock.Calls[rpc.OpStopActivity] != 1 {
		t.Errorf("不应该重试，stop 调用次数应该为 1，实际 %d", mock.Calls[rpc.OpStopActivity])
	}
}

// TestMoveAbsorbsAlreadyOnMission start 返回"已在任务中"视为成功
func TestMoveAbsorbsAlreadyOnMission(t *testing.T) {
	mock := rpc.NewMockClient()
	mock.Statuses[5] = &domain.BotSnapshot{ID: 5, Zone: domain.ZoneNone}
	mock.ErrorOnNext[rpc.OpStartActivity] = errors.New("already on a mission")
	e := testExecutor(mock)

	result := e.ExecuteBatch(context.Background(), []domain.Action{
		domain.MoveTo(5, domain.ZoneChargingStation, "测试转移"),
	})
	if result.Succeeded != 1 || len(result.Failed) != 0 {
		t.Errorf("已在任务中应该视为成功，实际 succeeded=%d failed=%v", result.Succeeded, result.Failed)
	}
}

// TestRetryExhaustion 持续失败的机器人重试耗尽后上报
func TestRetryExhaustion(t *testing.T) {
	mock := rpc.NewMockClient()
	mock.Statuses[9] = &domain.BotSnapshot{ID: 9, Zone: domain.ZoneScrapyard, IsActive: true}
	mock.FailBots[9] = errors.New("gateway timeout")
	e := testExecutor(mock)

	result := e.ExecuteBatch(context.Background(), []domain.Action{
		domain.MoveTo(9, domain.ZoneRepairBay, "测试重试"),
	})

	if result.Succeeded != 0 {
		t.Errorf("持续失败不应该有成功计数，实际 %d", result.Succeeded)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("重试耗尽后应该上报 1 个失败，实际 %v", result.Failed)
	}
	if result.Failed[0].Action.Bot != 9 {
		t.Errorf("失败记录应该归属机器人 #9，实际 #%d", result.Failed[0].Action.Bot)
	}
	if result.Failed[0].Err == nil || !strings.Contains(result.Failed[0].Err.Error(), "gateway timeout") {
		t.Errorf("失败记录应该携带最后一次错误，实际 %v", result.Failed[0].Err)
	}
	// 首轮 + 3 轮重试 = 4 次 stop 尝试
	if mock.Calls[rpc.OpStopActivity] != 4 {
		t.Errorf("stop 应该被尝试 4 次（首轮+3 轮重试），实际 %d", mock.Calls[rpc.OpStopActivity])
	}
}

// TestBusinessRejectionNotRetried 业务规则拒绝不重试也不算失败
func TestBusinessRejectionNotRetried(t *testing.T) {
	mock := rpc.NewMockClient()
	mock.FailBots[4] = errors.New("bot already entered this race")
	e := testExecutor(mock)

	result := e.ExecuteBatch(context.Background(), []domain.Action{
		{Bot: 4, Type: domain.ActionRegister, EventID: "race-1", Reason: "测试报名"},
	})

	if result.Rejected != 1 {
		t.Errorf("重复报名应该记为业务拒绝，实际 rejected=%d", result.Rejected)
	}
	if result.Succeeded != 0 || len(result.Failed) != 0 {
		t.Errorf("业务拒绝不应该计入成功或失败，实际 succeeded=%d failed=%v", result.Succeeded, result.Failed)
	}
	if mock.Calls[rpc.OpRegisterForRace] != 1 {
		t.Errorf("业务拒绝不应该重试，调用次数应该为 1，实际 %d", mock.Calls[rpc.OpRegisterForRace])
	}
}

// TestBotIsolation 单个机器人失败不阻断其余机器人
func TestBotIsolation(t *testing.T) {
	mock := rpc.NewMockClient()
	mock.Statuses[1] = &domain.BotSnapshot{ID: 1, Zone: domain.ZoneNone}
	mock.Statuses[2] = &domain.BotSnapshot{ID: 2, Zone: domain.ZoneNone}
	mock.Statuses[3] = &domain.BotSnapshot{ID: 3, Zone: domain.ZoneNone}
	mock.FailBots[2] = errors.New("connection refused")
	e := testExecutor(mock)

	result := e.ExecuteBatch(context.Background(), []domain.Action{
		domain.MoveTo(1, domain.ZoneScrapyard, "测试"),
		domain.MoveTo(2, domain.ZoneScrapyard, "测试"),
		domain.MoveTo(3, domain.ZoneScrapyard, "测试"),
	})

	if result.Succeeded != 2 {
		t.Errorf("另外两个机器人应该成功，实际 succeeded=%d", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0].Action.Bot != 2 {
		t.Errorf("只有机器人 #2 应该失败，实际 %v", result.Failed)
	}
}

// TestPaidCostAccumulation 付费动作成本累计
func TestPaidCostAccumulation(t *testing.T) {
	mock := rpc.NewMockClient()
	mock.Statuses[1] = &domain.BotSnapshot{ID: 1, Battery: 80, Condition: 100}
	mock.Statuses[2] = &domain.BotSnapshot{ID: 2, Battery: 100, Condition: 90}
	e := testExecutor(mock)

	result := e.ExecuteBatch(context.Background(), []domain.Action{
		{Bot: 1, Type: domain.ActionPaidRecharge, Reason: "测试"},
		{Bot: 2, Type: domain.ActionPaidRepair, Reason: "测试"},
	})

	want := decimal.RequireFromString("1.3")
	if !result.PaidCost.Equal(want) {
		t.Errorf("付费成本应该为 %s，实际 %s", want, result.PaidCost)
	}
	if mock.Statuses[1].Battery != 100 {
		t.Errorf("付费充电后电量应该为 100，实际 %d", mock.Statuses[1].Battery)
	}
	if mock.Statuses[2].Condition != 100 {
		t.Errorf("付费维修后耐久应该为 100，实际 %d", mock.Statuses[2].Condition)
	}

	// 下一批次成本从零开始，不串批
	result = e.ExecuteBatch(context.Background(), []domain.Action{
		domain.Stop(1, "测试"),
	})
	if !result.PaidCost.IsZero() {
		t.Errorf("无付费动作的批次成本应该为零，实际 %s", result.PaidCost)
	}
}

// TestNoopActionsSkipped 待机动作不产生任何 RPC 调用
func TestNoopActionsSkipped(t *testing.T) {
	mock := rpc.NewMockClient()
	e := testExecutor(mock)

	result := e.ExecuteBatch(context.Background(), []domain.Action{
		domain.None(1, "待机"),
		domain.None(2, "待机"),
	})
	if result.Succeeded != 0 || result.Rejected != 0 || len(result.Failed) != 0 {
		t.Errorf("待机动作不应该产生任何结果计数，实际 %+v", result)
	}
	if len(mock.CallLog) != 0 {
		t.Errorf("待机动作不应该触发 RPC 调用，实际 %v", mock.CallLog)
	}
}

// TestContextCancelDuringRetry 取消上下文时待重试动作全部上报失败
func TestContextCancelDuringRetry(t *testing.T) {
	mock := rpc.NewMockClient()
	mock.Statuses[6] = &domain.BotSnapshot{ID: 6, Zone: domain.ZoneScrapyard, IsActive: true}
	mock.FailBots[6] = errors.New("gateway timeout")
	e := testExecutor(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := e.ExecuteBatch(ctx, []domain.Action{
		domain.MoveTo(6, domain.ZoneRepairBay, "测试取消"),
	})
	if len(result.Failed) != 1 {
		t.Fatalf("取消后待重试动作应该上报失败，实际 %v", result.Failed)
	}
	if !errors.Is(result.Failed[0].Err, context.Canceled) {
		t.Errorf("失败原因应该为 context.Canceled，实际 %v", result.Failed[0].Err)
	}
}
