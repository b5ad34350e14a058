package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BotFailure 单个机器人的执行失败记录
type BotFailure struct {
	Bot    BotID  `json:"bot"`
	Action string `json:"action"`
	Error  string `json:"error"`
}

// CycleReport 单周期执行报告（供日志/上游告警消费，核心自身不持久化）
type CycleReport struct {
	ID          string            `json:"id"` // uuid
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration"`
	Phases      map[string]string `json:"phases"` // cohort -> phase
	BotsTotal   int               `json:"bots_total"`
	BotsOK      int               `json:"bots_ok"`
	BotsFailed  int               `json:"bots_failed"`
	BotsSkipped int               `json:"bots_skipped"` // 快照无效被跳过的机器人数
	// 按动作类型统计
	Actions map[ActionType]int `json:"actions"`
	// 执行失败明细（重试耗尽后仍失败的机器人）
	Failures []BotFailure `json:"failures"`
	// 本周期付费动作累计成本（RACE 代币）
	PaidCost decimal.Decimal `json:"paid_cost"`
	// 被抢占驱逐的机器人
	Evicted []BotID `json:"evicted,omitempty"`
}

// NewCycleReport 创建周期报告
func NewCycleReport(id string) *CycleReport {
	return &CycleReport{
		ID:        id,
		StartedAt: time.Now().UTC(),
		Phases:    make(map[string]string),
		Actions:   make(map[ActionType]int),
		PaidCost:  decimal.Zero,
	}
}

// RecordAction 记录一个已计划的动作
func (r *CycleReport) RecordAction(a Action) {
	r.Actions[a.Type]++
}

// RecordFailure 记录重试耗尽后的失败
func (r *CycleReport) RecordFailure(bot BotID, action ActionType, err error) {
	r.BotsFailed++
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.Failures = append(r.Failures, BotFailure{Bot: bot, Action: string(action), Error: msg})
}

// AddCost 累加付费成本（付费动作一旦成功即视为沉没成本，不回滚）
func (r *CycleReport) AddCost(c decimal.Decimal) {
	r.PaidCost = r.PaidCost.Add(c)
}
