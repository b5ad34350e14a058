// Package arbiter 管理容量受限区域（维修间/充电站）的名额分配
//
// 历史脚本里的做法是在遍历中随手加减一个全局计数器（currentCharging++），
// 这里替换为显式的仲裁器对象：计数器每周期从实际观测占用初始化，
// 预留只在本次规划遍历内有效，不跨进程持锁（依赖外部调度器不重叠触发）
package arbiter

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/racebot/gorace/internal/domain"
)

var log = logrus.WithField("component", "arbiter")

// occupant 当前占用受限区域的机器人
type occupant struct {
	ID        domain.BotID
	Cohort    string
	Condition int
}

// Arbiter 区域名额仲裁器（进程内，单周期有效）
type Arbiter struct {
	caps map[domain.Zone]int
	used map[domain.Zone]int
	// 观测到的当前占用者（用于抢占时挑选驱逐对象）
	occupants map[domain.Zone][]occupant
	// 本周期内被驱逐的机器人（由 CycleRunner 取走并下发 stop）
	evicted []domain.BotID
}

// New 创建仲裁器，caps 中未出现的区域视为无容量限制
func New(caps map[domain.Zone]int) *Arbiter {
	c := make(map[domain.Zone]int, len(caps))
	for z, n := range caps {
		c[z] = n
	}
	return &Arbiter{
		caps:      c,
		used:      make(map[domain.Zone]int),
		occupants: make(map[domain.Zone][]occupant),
	}
}

// Observe 用新鲜观测到的占用初始化计数器（规划开始前调用一次）
//
// cohortOf 返回机器人所属车队名（未知返回空串）
func (a *Arbiter) Observe(snapshots []domain.BotSnapshot, cohortOf func(domain.BotID) string) {
	a.used = make(map[domain.Zone]int)
	a.occupants = make(map[domain.Zone][]occupant)
	a.evicted = nil
	for _, s := range snapshots {
		if _, limited := a.caps[s.Zone]; !limited {
			continue
		}
		a.used[s.Zone]++
		a.occupants[s.Zone] = append(a.occupants[s.Zone], occupant{
			ID:        s.ID,
			Cohort:    cohortOf(s.ID),
			Condition: s.Condition,
		})
	}
}

// TryReserve 尝试预留一个名额；区域无容量限制时恒成功
func (a *Arbiter) TryReserve(zone domain.Zone) bool {
	cap, limited := a.caps[zone]
	if !limited {
		return true
	}
	if a.used[zone] >= cap {
		return false
	}
	a.used[zone]++
	return true
}

// Release 释放指定机器人占用的名额（计划离开受限区域时调用）
//
// 计数器严格跟随占用者名单：只有确实在名单里的机器人才减计数。
// 被抢占驱逐的机器人名额已转移给抢占方，它随后被规划离开时
// 不能再放出一个幻影名额，否则本轮会超容量放人
func (a *Arbiter) Release(zone domain.Zone, bot domain.BotID) {
	if _, limited := a.caps[zone]; !limited {
		return
	}
	occ := a.occupants[zone]
	for i, o := range occ {
		if o.ID == bot {
			a.occupants[zone] = append(occ[:i], occ[i+1:]...)
			if a.used[zone] > 0 {
				a.used[zone]--
			}
			return
		}
	}
}

// ReserveWithPreempt 预留名额，容量不足时驱逐一个非 requesting 车队的占用者
//
// 驱逐规则：只驱逐其他车队的机器人，优先驱逐耐久最高（最不需要名额）的一个；
// 每次调用最多驱逐一个，保证总驱逐数恰好等于缺口数
func (a *Arbiter) ReserveWithPreempt(zone domain.Zone, requesting string) bool {
	if a.TryReserve(zone) {
		return true
	}

	victim := a.pickVictim(zone, requesting)
	if victim < 0 {
		// 占用者全是本队机器人，无人可驱逐
		return false
	}

	occ := a.occupants[zone]
	ev := occ[victim]
	a.occupants[zone] = append(occ[:victim], occ[victim+1:]...)
	a.evicted = append(a.evicted, ev.ID)
	log.Warnf("⚔️ 抢占 %s：驱逐 %s 车队机器人 #%d（耐久 %d%%），让位给 %s",
		zone, ev.Cohort, ev.ID, ev.Condition, requesting)
	// 名额从被驱逐者转移给请求方，used 不变
	return true
}

// pickVictim 挑选驱逐对象的下标，无候选返回 -1
func (a *Arbiter) pickVictim(zone domain.Zone, requesting string) int {
	occ := a.occupants[zone]
	victim := -1
	for i, o := range occ {
		if o.Cohort == requesting {
			continue
		}
		if victim < 0 || o.Condition > occ[victim].Condition ||
			(o.Condition == occ[victim].Condition && o.ID > occ[victim].ID) {
			victim = i
		}
	}
	return victim
}

// Evicted 返回本周期被驱逐的机器人（去重、稳定排序）
// 被驱逐者只下发 stop 待机，不立即安置新区域，下周期重新评估
func (a *Arbiter) Evicted() []domain.BotID {
	out := append([]domain.BotID(nil), a.evicted...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Used 返回区域当前已用名额（测试/观测用）
func (a *Arbiter) Used(zone domain.Zone) int {
	return a.used[zone]
}

// Cap 返回区域容量，无限制返回 0 和 false
func (a *Arbiter) Cap(zone domain.Zone) (int, bool) {
	c, ok := a.caps[zone]
	return c, ok
}
