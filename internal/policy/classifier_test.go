package policy

import (
	"testing"
	"time"

	"github.com/racebot/gorace/internal/domain"
)

func utc(hour, min int) time.Time {
	return time.Date(2026, 8, 31, hour, min, 0, 0, time.UTC)
}

func defaultProfile() Profile {
	p := Profile{}
	p.ApplyDefaults()
	return p
}

// TestClassifyWindows 测试各阶段窗口的分类
func TestClassifyWindows(t *testing.T) {
	p := defaultProfile()
	hours := []int{14} // 每天 14:00 UTC 一场

	cases := []struct {
		name  string
		now   time.Time
		phase domain.Phase
		final bool
	}{
		{"赛后30分钟", utc(14, 30), domain.PhasePostRace, false},
		{"赛后59分钟", utc(14, 59), domain.PhasePostRace, false},
		{"赛后60分钟恢复常态", utc(15, 0), domain.PhaseNormal, false},
		{"距比赛4小时为常态", utc(10, 0), domain.PhaseNormal, false},
		{"距比赛90分钟进入赛前", utc(12, 30), domain.PhasePreRace, false},
		{"距比赛89分钟仍是赛前", utc(12, 31), domain.PhasePreRace, false},
		{"距比赛15分钟进入最终窗口", utc(13, 45), domain.PhasePreRace, true},
		{"距比赛1分钟最终窗口", utc(13, 59), domain.PhasePreRace, true},
		{"比赛时刻算赛后", utc(14, 0), domain.PhasePostRace, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			info := Classify(c.now, hours, p)
			if info.Phase != c.phase {
				t.Errorf("阶段应该为 %s，实际为 %s（距比赛 %d 分钟）", c.phase, info.Phase, info.MinutesToRace)
			}
			if info.FinalWindow != c.final {
				t.Errorf("FinalWindow 应该为 %v，实际为 %v", c.final, info.FinalWindow)
			}
		})
	}
}

// TestClassifyDrainWindow 测试耗电子阶段（需显式启用）
func TestClassifyDrainWindow(t *testing.T) {
	p := defaultProfile()
	hours := []int{14}

	// 未启用时距比赛 2 小时是常态
	info := Classify(utc(12, 0), hours, p)
	if info.Phase != domain.PhaseNormal {
		t.Errorf("未启用耗电阶段时应该为 NORMAL，实际为 %s", info.Phase)
	}

	p.EnableDrain = true
	info = Classify(utc(12, 0), hours, p)
	if info.Phase != domain.PhaseDrain {
		t.Errorf("启用耗电阶段后距比赛 120 分钟应该为 DRAIN，实际为 %s", info.Phase)
	}

	// 超出耗电窗口（180 分钟）仍是常态
	info = Classify(utc(10, 0), hours, p)
	if info.Phase != domain.PhaseNormal {
		t.Errorf("距比赛 240 分钟应该为 NORMAL，实际为 %s", info.Phase)
	}
}

// TestClassifyWrapsMidnight 测试跨天回绕：23:30 对次日 00:00 的比赛应该算赛前
func TestClassifyWrapsMidnight(t *testing.T) {
	p := defaultProfile()
	info := Classify(utc(23, 30), []int{0}, p)
	if info.Phase != domain.PhasePreRace {
		t.Errorf("23:30 距 00:00 比赛 30 分钟应该为 PRE_RACE，实际为 %s", info.Phase)
	}
	if info.MinutesToRace != 30 {
		t.Errorf("距比赛应该为 30 分钟，实际为 %d", info.MinutesToRace)
	}

	// 00:30 对前日 00:00 的比赛算赛后
	info = Classify(utc(0, 30), []int{0}, p)
	if info.Phase != domain.PhasePostRace {
		t.Errorf("00:30 距 00:00 比赛 30 分钟应该为 POST_RACE，实际为 %s", info.Phase)
	}
}

// TestClassifyMultipleRaceHours 测试多场赛程取最近的一场
func TestClassifyMultipleRaceHours(t *testing.T) {
	p := defaultProfile()
	info := Classify(utc(13, 0), []int{2, 14}, p)
	if info.RaceHourUTC != 14 {
		t.Errorf("最近一场应该是 14 点，实际为 %d", info.RaceHourUTC)
	}
	if info.MinutesToRace != 60 {
		t.Errorf("距比赛应该为 60 分钟，实际为 %d", info.MinutesToRace)
	}
}

// TestClassifyEmptySchedule 空赛程恒为常态
func TestClassifyEmptySchedule(t *testing.T) {
	info := Classify(utc(12, 0), nil, defaultProfile())
	if info.Phase != domain.PhaseNormal {
		t.Errorf("空赛程应该为 NORMAL，实际为 %s", info.Phase)
	}
}

// TestPriorityCohort 测试赛前优先权归属
func TestPriorityCohort(t *testing.T) {
	infos := []domain.PhaseInfo{
		{MinutesToRace: 120},
		{MinutesToRace: 45},
	}
	if got := PriorityCohort(infos); got != 1 {
		t.Errorf("距比赛更近的车队应该持有优先权，期望 1 实际 %d", got)
	}

	// 等距平局取先声明的车队
	tied := []domain.PhaseInfo{
		{MinutesToRace: 60},
		{MinutesToRace: 60},
	}
	if got := PriorityCohort(tied); got != 0 {
		t.Errorf("等距平局应该取下标 0，实际 %d", got)
	}

	if got := PriorityCohort(nil); got != -1 {
		t.Errorf("空输入应该返回 -1，实际 %d", got)
	}
}
