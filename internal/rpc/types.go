package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/racebot/gorace/internal/domain"
)

// 远端 RPC 操作名（单一 invoke 原语的 op 取值）
const (
	OpGetStatus          = "get_status"
	OpStopActivity       = "stop_activity"
	OpStartActivity      = "start_activity"
	OpPaidRecharge       = "paid_recharge"
	OpPaidRepair         = "paid_repair"
	OpListUpcomingRaces  = "list_upcoming_races"
	OpGetMyRegistrations = "get_my_registrations"
	OpRegisterForRace    = "register_for_race"
)

// Result 远端调用的统一返回包
type Result struct {
	IsError bool            `json:"isError"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RaceEvent 即将开始的比赛
type RaceEvent struct {
	EventID     string    `json:"eventId"`
	RaceTimeUTC time.Time `json:"raceTimeUTC"`
	Track       string    `json:"track,omitempty"`
	EntryFee    string    `json:"entryFee,omitempty"`
}

// Registration 已提交的比赛报名
type Registration struct {
	EventID string       `json:"eventId"`
	BotID   domain.BotID `json:"botId"`
}

// statusPayload get_status 的结构化返回（新版网关）
type statusPayload struct {
	Battery   int    `json:"battery"`
	Condition int    `json:"condition"`
	Zone      string `json:"zone"`
	IsActive  bool   `json:"isActive"`
	Name      string `json:"name"`
}

// API 核心消费的远端操作集合
//
// 实现：Client（resty + 钱包签名认证）；测试用 MockClient
type API interface {
	GetStatus(ctx context.Context, bot domain.BotID) (*domain.BotSnapshot, error)
	StopActivity(ctx context.Context, bot domain.BotID) error
	StartActivity(ctx context.Context, bot domain.BotID, zone domain.Zone) error
	PaidRecharge(ctx context.Context, bot domain.BotID) error
	PaidRepair(ctx context.Context, bot domain.BotID) error
	ListUpcomingRaces(ctx context.Context) ([]RaceEvent, error)
	GetMyRegistrations(ctx context.Context) ([]Registration, error)
	RegisterForRace(ctx context.Context, eventID string, bot domain.BotID) error
}
