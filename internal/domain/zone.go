package domain

// Zone 场地区域（机器人同一时刻只能处于一个区域）
type Zone string

const (
	// ZoneNone 空闲（不在任何区域）
	ZoneNone Zone = ""
	// ZoneChargingStation 充电站（随时间恢复电量，有并发容量上限）
	ZoneChargingStation Zone = "ChargingStation"
	// ZoneRepairBay 维修间（随时间恢复耐久，有并发容量上限）
	ZoneRepairBay Zone = "RepairBay"
	// ZoneScrapyard 默认拾荒区（消耗电量/耐久，产出游戏内奖励）
	ZoneScrapyard Zone = "Scrapyard"
)

// IsIdle 是否空闲（未处于任何区域）
func (z Zone) IsIdle() bool {
	return z == ZoneNone
}

// DefaultZoneCaps 默认区域容量（0 表示无限制）
// 实际容量以配置为准，这里只是观测到的游戏默认值
func DefaultZoneCaps() map[Zone]int {
	return map[Zone]int{
		ZoneRepairBay:       4,
		ZoneChargingStation: 5,
	}
}
