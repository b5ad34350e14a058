package policy

import (
	"sort"
	"time"

	"github.com/racebot/gorace/internal/domain"
)

const minutesPerDay = 24 * 60

// Classify 阶段分类：根据当前 UTC 时间和车队的每日赛程推导运行阶段
//
// 算法：对每个比赛整点计算「距下一场的分钟数」和「距上一场的分钟数」（均跨天回绕），
// 取最小值后按窗口分类：
//   - 距上一场 < postRaceWindow  -> POST_RACE
//   - 距下一场 <= preRaceWindow  -> PRE_RACE（<= finalWindow 时标记最终窗口）
//   - 距下一场 <= drainWindow    -> DRAIN（仅在启用耗电子阶段时）
//   - 其余                       -> NORMAL
func Classify(now time.Time, raceHoursUTC []int, p Profile) domain.PhaseInfo {
	info := domain.PhaseInfo{
		Phase:            domain.PhaseNormal,
		MinutesToRace:    minutesPerDay,
		MinutesSinceRace: minutesPerDay,
		RaceHourUTC:      -1,
	}
	if len(raceHoursUTC) == 0 {
		return info
	}

	// 排序只为输出稳定，分类本身与顺序无关
	hours := append([]int(nil), raceHoursUTC...)
	sort.Ints(hours)

	nowMin := now.UTC().Hour()*60 + now.UTC().Minute()
	for _, h := range hours {
		raceMin := h * 60
		until := (raceMin - nowMin + minutesPerDay) % minutesPerDay
		since := (nowMin - raceMin + minutesPerDay) % minutesPerDay
		if until < info.MinutesToRace {
			info.MinutesToRace = until
			info.RaceHourUTC = h
		}
		if since < info.MinutesSinceRace {
			info.MinutesSinceRace = since
		}
	}

	switch {
	case info.MinutesSinceRace < p.PostRaceWindowMin:
		info.Phase = domain.PhasePostRace
	case info.MinutesToRace <= p.PreRaceWindowMin:
		info.Phase = domain.PhasePreRace
		info.FinalWindow = info.MinutesToRace <= p.FinalWindowMin
	case p.EnableDrain && info.MinutesToRace <= p.DrainWindowMin:
		info.Phase = domain.PhaseDrain
	default:
		info.Phase = domain.PhaseNormal
	}
	return info
}

// PriorityCohort 返回拥有赛前优先权的车队下标
//
// 距下一场比赛更近的车队优先；两队等距时按声明顺序取先检查的车队
// （这是显式的平局规则，调用方按配置顺序传入）
func PriorityCohort(infos []domain.PhaseInfo) int {
	if len(infos) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(infos); i++ {
		if infos[i].MinutesToRace < infos[best].MinutesToRace {
			best = i
		}
	}
	return best
}
