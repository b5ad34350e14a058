package policy

import (
	"fmt"

	"github.com/racebot/gorace/internal/domain"
)

// 默认阈值（来自各部署实测调参，均可按车队配置覆盖）
const (
	DefaultRepairFloor        = 70  // 常态维修触发线（耐久 %）
	DefaultRepairTarget       = 95  // 维修完成线（耐久 %）
	DefaultChargeFloor        = 80  // 常态充电触发线（电量 %）
	DefaultChargeTarget       = 95  // 充电完成线（电量 %）
	DefaultPreRaceRepairFloor = 70  // 赛前维修触发线（耐久 %）
	DefaultDrainStopBattery   = 20  // 耗电阶段硬停线（电量 %）
	DefaultDrainStopCondition = 30  // 耗电阶段硬停线（耐久 %）
	DefaultPostRaceWindowMin  = 60  // 赛后窗口（分钟）
	DefaultPreRaceWindowMin   = 90  // 赛前窗口（分钟）
	DefaultFinalWindowMin     = 15  // 赛前最终窗口（分钟，付费补满）
	DefaultDrainWindowMin     = 180 // 耗电窗口上界（距比赛分钟数）
)

// Profile 单个车队的策略配置
// 近似重复的阈值分散在多个历史脚本变体里（auto-scavenge-loop / auto-scavenge-v2 /
// team-race-manager），它们是按部署独立调参的，这里统一为可配置结构，变体通过配置选择
type Profile struct {
	// ===== 常态阈值 =====
	RepairFloor  int `yaml:"repairFloor" json:"repairFloor"`   // 耐久低于该值请求维修间
	RepairTarget int `yaml:"repairTarget" json:"repairTarget"` // 耐久达到该值离开维修间
	ChargeFloor  int `yaml:"chargeFloor" json:"chargeFloor"`   // 电量低于该值请求充电站
	ChargeTarget int `yaml:"chargeTarget" json:"chargeTarget"` // 电量达到该值离开充电站

	// ===== 赛前阈值 =====
	PreRaceRepairFloor int `yaml:"preRaceRepairFloor" json:"preRaceRepairFloor"` // 赛前维修触发线

	// ===== 耗电阶段 =====
	EnableDrain        bool `yaml:"enableDrain" json:"enableDrain"`               // 是否启用赛前耗电子阶段
	DrainStopBattery   int  `yaml:"drainStopBattery" json:"drainStopBattery"`     // 电量低于该值停止拾荒待机
	DrainStopCondition int  `yaml:"drainStopCondition" json:"drainStopCondition"` // 耐久低于该值停止拾荒待机

	// ===== 阶段窗口（分钟）=====
	PostRaceWindowMin int `yaml:"postRaceWindowMin" json:"postRaceWindowMin"` // 赛后窗口
	PreRaceWindowMin  int `yaml:"preRaceWindowMin" json:"preRaceWindowMin"`   // 赛前窗口
	FinalWindowMin    int `yaml:"finalWindowMin" json:"finalWindowMin"`       // 赛前最终窗口
	DrainWindowMin    int `yaml:"drainWindowMin" json:"drainWindowMin"`       // 耗电窗口上界

	// ===== 区域 =====
	ScavengeZone domain.Zone `yaml:"scavengeZone" json:"scavengeZone"` // 拾荒目标区域
}

// ApplyDefaults 应用默认配置
func (p *Profile) ApplyDefaults() {
	if p.RepairFloor == 0 {
		p.RepairFloor = DefaultRepairFloor
	}
	if p.RepairTarget == 0 {
		p.RepairTarget = DefaultRepairTarget
	}
	if p.ChargeFloor == 0 {
		p.ChargeFloor = DefaultChargeFloor
	}
	if p.ChargeTarget == 0 {
		p.ChargeTarget = DefaultChargeTarget
	}
	if p.PreRaceRepairFloor == 0 {
		p.PreRaceRepairFloor = DefaultPreRaceRepairFloor
	}
	if p.DrainStopBattery == 0 {
		p.DrainStopBattery = DefaultDrainStopBattery
	}
	if p.DrainStopCondition == 0 {
		p.DrainStopCondition = DefaultDrainStopCondition
	}
	if p.PostRaceWindowMin == 0 {
		p.PostRaceWindowMin = DefaultPostRaceWindowMin
	}
	if p.PreRaceWindowMin == 0 {
		p.PreRaceWindowMin = DefaultPreRaceWindowMin
	}
	if p.FinalWindowMin == 0 {
		p.FinalWindowMin = DefaultFinalWindowMin
	}
	if p.DrainWindowMin == 0 {
		p.DrainWindowMin = DefaultDrainWindowMin
	}
	if p.ScavengeZone == "" {
		p.ScavengeZone = domain.ZoneScrapyard
	}
}

// Validate 验证配置有效性
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("profile不能为空")
	}
	checkPct := func(name string, v int) error {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s必须在0-100之间，当前值: %d", name, v)
		}
		return nil
	}
	for name, v := range map[string]int{
		"repairFloor":        p.RepairFloor,
		"repairTarget":       p.RepairTarget,
		"chargeFloor":        p.ChargeFloor,
		"chargeTarget":       p.ChargeTarget,
		"preRaceRepairFloor": p.PreRaceRepairFloor,
		"drainStopBattery":   p.DrainStopBattery,
		"drainStopCondition": p.DrainStopCondition,
	} {
		if err := checkPct(name, v); err != nil {
			return err
		}
	}
	if p.RepairTarget < p.RepairFloor {
		return fmt.Errorf("repairTarget(%d)不能小于repairFloor(%d)", p.RepairTarget, p.RepairFloor)
	}
	if p.ChargeTarget < p.ChargeFloor {
		return fmt.Errorf("chargeTarget(%d)不能小于chargeFloor(%d)", p.ChargeTarget, p.ChargeFloor)
	}
	if p.PostRaceWindowMin <= 0 || p.PostRaceWindowMin >= 720 {
		return fmt.Errorf("postRaceWindowMin必须在(0,720)之间，当前值: %d", p.PostRaceWindowMin)
	}
	if p.PreRaceWindowMin <= 0 || p.PreRaceWindowMin >= 720 {
		return fmt.Errorf("preRaceWindowMin必须在(0,720)之间，当前值: %d", p.PreRaceWindowMin)
	}
	if p.FinalWindowMin <= 0 || p.FinalWindowMin > p.PreRaceWindowMin {
		return fmt.Errorf("finalWindowMin必须在(0,preRaceWindowMin]之间，当前值: %d", p.FinalWindowMin)
	}
	if p.EnableDrain && p.DrainWindowMin <= p.PreRaceWindowMin {
		return fmt.Errorf("drainWindowMin(%d)必须大于preRaceWindowMin(%d)", p.DrainWindowMin, p.PreRaceWindowMin)
	}
	if p.ScavengeZone == domain.ZoneChargingStation || p.ScavengeZone == domain.ZoneRepairBay {
		return fmt.Errorf("scavengeZone不能是维护设施: %s", p.ScavengeZone)
	}
	return nil
}
