package domain

// Phase 运行阶段（由当前时间相对车队赛程推导）
type Phase string

const (
	// PhasePostRace 赛后恢复窗口
	PhasePostRace Phase = "POST_RACE"
	// PhaseNormal 常态（恢复/自由拾荒）
	PhaseNormal Phase = "NORMAL"
	// PhaseDrain 耗电阶段（赛前中段，禁止充电/维修，让电量自然消耗）
	PhaseDrain Phase = "DRAIN"
	// PhasePreRace 赛前准备（拥有设施抢占权）
	PhasePreRace Phase = "PRE_RACE"
)

// PhaseInfo 阶段分类结果
type PhaseInfo struct {
	Phase            Phase
	MinutesToRace    int  // 距最近一场未来比赛的分钟数（跨天回绕）
	MinutesSinceRace int  // 距最近一场过去比赛的分钟数（跨天回绕）
	RaceHourUTC      int  // 最近一场未来比赛的整点
	FinalWindow      bool // 是否处于赛前最终窗口（付费补满电量/耐久）
}

// ActionType 计划动作类型
type ActionType string

const (
	ActionNone         ActionType = "none"
	ActionMove         ActionType = "move"          // 转移区域（stop 当前任务后 start 新任务）
	ActionStop         ActionType = "stop"          // 停止当前任务并待机
	ActionPaidRecharge ActionType = "paid_recharge" // 付费充电（无容量限制）
	ActionPaidRepair   ActionType = "paid_repair"   // 付费维修（满耐久参赛可获得 Perfect Tune 加成）
	ActionRegister     ActionType = "register"      // 报名比赛
)

// Action 单个机器人的计划动作（每周期重新计算，不持久化）
type Action struct {
	Bot        BotID
	Type       ActionType
	TargetZone Zone   // ActionMove 的目标区域
	EventID    string // ActionRegister 的比赛事件 ID
	Reason     string // 决策原因（仅用于观测，不属于契约）
}

// IsNoop 是否无需远端调用
func (a Action) IsNoop() bool {
	return a.Type == ActionNone
}

// None 构造空动作
func None(bot BotID, reason string) Action {
	return Action{Bot: bot, Type: ActionNone, Reason: reason}
}

// MoveTo 构造转移动作
func MoveTo(bot BotID, zone Zone, reason string) Action {
	return Action{Bot: bot, Type: ActionMove, TargetZone: zone, Reason: reason}
}

// Stop 构造停止待机动作
func Stop(bot BotID, reason string) Action {
	return Action{Bot: bot, Type: ActionStop, Reason: reason}
}
