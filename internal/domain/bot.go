package domain

import "time"

// BotID 机器人唯一标识（链上 token id）
type BotID int64

// BotSnapshot 机器人状态快照（每个周期从远端重新拉取，只读）
type BotSnapshot struct {
	ID        BotID
	Name      string
	Battery   int  // 电量百分比 0-100
	Condition int  // 耐久百分比 0-100
	Zone      Zone // 当前所在区域（空闲为 ZoneNone）
	IsActive  bool // 是否正在执行计时任务
	FetchedAt time.Time
}

// IsValid 快照是否有效（远端返回缺失/畸形数据时为无效，跳过该机器人）
func (s *BotSnapshot) IsValid() bool {
	return s.ID > 0 && s.Battery >= 0 && s.Battery <= 100 && s.Condition >= 0 && s.Condition <= 100
}

// NeedsRepair 耐久是否低于给定阈值
func (s *BotSnapshot) NeedsRepair(floor int) bool {
	return s.Condition < floor
}

// NeedsCharge 电量是否低于给定阈值
func (s *BotSnapshot) NeedsCharge(floor int) bool {
	return s.Battery < floor
}

// Cohort 车队（共享同一赛程的固定机器人分组）
// 两个车队并存，竞争同一批共享设施容量
type Cohort struct {
	Name         string
	Bots         []BotID
	RaceHoursUTC []int // 每天的比赛整点（UTC 小时），例如 [2, 14]
}

// Contains 判断机器人是否属于该车队
func (c *Cohort) Contains(id BotID) bool {
	for _, b := range c.Bots {
		if b == id {
			return true
		}
	}
	return false
}
