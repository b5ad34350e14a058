package policy

import (
	"fmt"

	"github.com/racebot/gorace/internal/domain"
)

// Slots 规划过程中的容量预留接口（由 ResourceArbiter 实现）
//
// 规划遍历内的预留只在本周期内有效，跨进程不加锁（见仲裁器说明）
type Slots interface {
	// TryReserve 尝试预留一个区域名额，成功返回 true
	TryReserve(zone domain.Zone) bool
	// ReserveWithPreempt 预留名额，容量不足时驱逐非优先车队的占用者
	// requesting 为请求方车队名，用于保证永不驱逐本队机器人
	ReserveWithPreempt(zone domain.Zone, requesting string) bool
	// Release 释放指定机器人占用的名额（计划离开受限区域时调用）
	Release(zone domain.Zone, bot domain.BotID)
}

// unlimitedSlots 无容量限制（slots 传 nil 时使用）
type unlimitedSlots struct{}

func (unlimitedSlots) TryReserve(domain.Zone) bool                 { return true }
func (unlimitedSlots) ReserveWithPreempt(domain.Zone, string) bool { return true }
func (unlimitedSlots) Release(domain.Zone, domain.BotID)           {}

// PlanRequest 单个机器人的规划输入
type PlanRequest struct {
	Snapshot    domain.BotSnapshot
	Phase       domain.PhaseInfo
	Cohort      string // 所属车队
	HasPriority bool   // 车队是否持有赛前抢占权
	RaceEventID string // 赛前窗口内即将到来的比赛事件（可为空）
	Registered  bool   // 该机器人是否已报名该比赛
}

// Plan 纯决策函数：根据快照、阶段和当前容量占用计算下一个动作
//
// 对相同输入（含同一 slots 状态）重复调用必须产生相同动作，
// 函数本身不持有任何跨调用状态
func Plan(req PlanRequest, p Profile, slots Slots) domain.Action {
	if slots == nil {
		slots = unlimitedSlots{}
	}
	s := req.Snapshot

	switch req.Phase.Phase {
	case domain.PhaseDrain:
		return planDrain(s, p)
	case domain.PhasePreRace:
		if req.Phase.FinalWindow {
			return planFinalWindow(req, s)
		}
		return planPreRace(req, s, p, slots)
	default:
		// POST_RACE 与 NORMAL 共用恢复/拾荒决策表
		return planRecovery(s, p, slots)
	}
}

// planRecovery 常态/赛后：维修 -> 充电 -> 拾荒，按紧急程度排序
func planRecovery(s domain.BotSnapshot, p Profile, slots Slots) domain.Action {
	// 已在维修间：修到目标耐久再离开
	if s.Zone == domain.ZoneRepairBay {
		if s.Condition < p.RepairTarget {
			return domain.None(s.ID, fmt.Sprintf("维修中 %d%%/%d%%", s.Condition, p.RepairTarget))
		}
		slots.Release(domain.ZoneRepairBay, s.ID)
		if s.Battery < p.ChargeFloor && slots.TryReserve(domain.ZoneChargingStation) {
			return domain.MoveTo(s.ID, domain.ZoneChargingStation, "维修完成，转去充电")
		}
		return domain.MoveTo(s.ID, p.ScavengeZone, "维修完成，恢复拾荒")
	}

	// 耐久不足：申请维修位
	if s.NeedsRepair(p.RepairFloor) {
		if slots.TryReserve(domain.ZoneRepairBay) {
			return domain.MoveTo(s.ID, domain.ZoneRepairBay, fmt.Sprintf("耐久 %d%% 低于 %d%%，进维修间", s.Condition, p.RepairFloor))
		}
		return degradeOnFull(s, p, "维修间已满")
	}

	// 已在充电站：充到目标电量再离开
	if s.Zone == domain.ZoneChargingStation {
		if s.Battery < p.ChargeTarget {
			return domain.None(s.ID, fmt.Sprintf("充电中 %d%%/%d%%", s.Battery, p.ChargeTarget))
		}
		slots.Release(domain.ZoneChargingStation, s.ID)
		return domain.MoveTo(s.ID, p.ScavengeZone, "电量达标，恢复拾荒")
	}

	// 电量不足：申请充电位
	if s.NeedsCharge(p.ChargeFloor) {
		if slots.TryReserve(domain.ZoneChargingStation) {
			return domain.MoveTo(s.ID, domain.ZoneChargingStation, fmt.Sprintf("电量 %d%% 低于 %d%%，进充电站", s.Battery, p.ChargeFloor))
		}
		return degradeOnFull(s, p, "充电站已满")
	}

	// 状态良好：去拾荒
	if s.Zone != p.ScavengeZone {
		return domain.MoveTo(s.ID, p.ScavengeZone, "状态良好，前往拾荒区")
	}
	return domain.None(s.ID, "状态良好，继续拾荒")
}

// degradeOnFull 容量已满时的降级处理：有可容忍路径则维持现状，否则待机等下周期
func degradeOnFull(s domain.BotSnapshot, p Profile, why string) domain.Action {
	if s.Zone == p.ScavengeZone {
		return domain.None(s.ID, why+"，继续拾荒等待")
	}
	if s.IsActive {
		return domain.Stop(s.ID, why+"，停止当前任务待机")
	}
	return domain.None(s.ID, why+"，待机等待")
}

// planDrain 耗电阶段：不做任何充电/维修，电量耐久耗到硬停线就地待机
func planDrain(s domain.BotSnapshot, p Profile) domain.Action {
	if s.Battery < p.DrainStopBattery || s.Condition < p.DrainStopCondition {
		if s.IsActive || !s.Zone.IsIdle() {
			return domain.Stop(s.ID, fmt.Sprintf("耗电阶段硬停（电量 %d%%，耐久 %d%%）", s.Battery, s.Condition))
		}
		return domain.None(s.ID, "耗电阶段待机")
	}
	if s.Zone != p.ScavengeZone {
		return domain.MoveTo(s.ID, p.ScavengeZone, "耗电阶段，继续拾荒消耗电量")
	}
	return domain.None(s.ID, "耗电阶段，继续拾荒")
}

// planPreRace 赛前准备：优先修车（可抢占），状态达标则停止拾荒待机并报名
func planPreRace(req PlanRequest, s domain.BotSnapshot, p Profile, slots Slots) domain.Action {
	if s.Zone == domain.ZoneRepairBay {
		if s.Condition < p.RepairTarget {
			return domain.None(s.ID, fmt.Sprintf("赛前维修中 %d%%/%d%%", s.Condition, p.RepairTarget))
		}
		slots.Release(domain.ZoneRepairBay, s.ID)
		return domain.Stop(s.ID, "赛前维修完成，待机等待比赛")
	}

	if s.NeedsRepair(p.PreRaceRepairFloor) {
		ok := false
		if req.HasPriority {
			ok = slots.ReserveWithPreempt(domain.ZoneRepairBay, req.Cohort)
		} else {
			ok = slots.TryReserve(domain.ZoneRepairBay)
		}
		if ok {
			return domain.MoveTo(s.ID, domain.ZoneRepairBay, fmt.Sprintf("赛前耐久 %d%% 低于 %d%%，进维修间", s.Condition, p.PreRaceRepairFloor))
		}
		if s.IsActive {
			return domain.Stop(s.ID, "维修间已满，赛前停止任务待机")
		}
		return domain.None(s.ID, "维修间已满，赛前待机等待")
	}

	// 耐久达标：停止拾荒，满电则报名
	if s.IsActive || !s.Zone.IsIdle() {
		return domain.Stop(s.ID, "赛前停止拾荒待机")
	}
	if s.Battery == 100 && !req.Registered && req.RaceEventID != "" {
		return domain.Action{
			Bot:     s.ID,
			Type:    domain.ActionRegister,
			EventID: req.RaceEventID,
			Reason:  "满电待机，报名比赛",
		}
	}
	return domain.None(s.ID, "赛前待机等待比赛")
}

// planFinalWindow 赛前最终窗口：付费补满电量/耐久（无容量限制），补满后报名
// 满耐久参赛可获得 Perfect Tune 加成，所以耐久必须付费修到 100
func planFinalWindow(req PlanRequest, s domain.BotSnapshot) domain.Action {
	if s.Battery < 100 {
		return domain.Action{Bot: s.ID, Type: domain.ActionPaidRecharge,
			Reason: fmt.Sprintf("最终窗口电量 %d%%，付费充满", s.Battery)}
	}
	if s.Condition < 100 {
		return domain.Action{Bot: s.ID, Type: domain.ActionPaidRepair,
			Reason: fmt.Sprintf("最终窗口耐久 %d%%，付费修满（Perfect Tune）", s.Condition)}
	}
	if !req.Registered && req.RaceEventID != "" {
		return domain.Action{Bot: s.ID, Type: domain.ActionRegister, EventID: req.RaceEventID,
			Reason: "满电满耐久，报名比赛"}
	}
	if s.IsActive || !s.Zone.IsIdle() {
		return domain.Stop(s.ID, "最终窗口停止任务待机")
	}
	return domain.None(s.ID, "最终窗口就绪")
}
