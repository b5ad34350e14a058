package rpc

import (
	"context"

	"github.com/racebot/gorace/internal/domain"
	"github.com/racebot/gorace/pkg/logger"
)

// DryRunAPI 干跑包装：读操作透传，写操作只打日志不上链
type DryRunAPI struct {
	inner API
}

// NewDryRunAPI 包装一个真实客户端为干跑模式
func NewDryRunAPI(inner API) *DryRunAPI {
	return &DryRunAPI{inner: inner}
}

var _ API = (*DryRunAPI)(nil)

func (d *DryRunAPI) GetStatus(ctx context.Context, bot domain.BotID) (*domain.BotSnapshot, error) {
	return d.inner.GetStatus(ctx, bot)
}

func (d *DryRunAPI) ListUpcomingRaces(ctx context.Context) ([]RaceEvent, error) {
	return d.inner.ListUpcomingRaces(ctx)
}

func (d *DryRunAPI) GetMyRegistrations(ctx context.Context) ([]Registration, error) {
	return d.inner.GetMyRegistrations(ctx)
}

func (d *DryRunAPI) StopActivity(ctx context.Context, bot domain.BotID) error {
	logger.Infof("🧪 [dry-run] stop_activity bot=%d", bot)
	return nil
}

func (d *DryRunAPI) StartActivity(ctx context.Context, bot domain.BotID, zone domain.Zone) error {
	logger.Infof("🧪 [dry-run] start_activity bot=%d zone=%s", bot, zone)
	return nil
}

func (d *DryRunAPI) PaidRecharge(ctx context.Context, bot domain.BotID) error {
	logger.Infof("🧪 [dry-run] paid_recharge bot=%d", bot)
	return nil
}

func (d *DryRunAPI) PaidRepair(ctx context.Context, bot domain.BotID) error {
	logger.Infof("🧪 [dry-run] paid_repair bot=%d", bot)
	return nil
}

func (d *DryRunAPI) RegisterForRace(ctx context.Context, eventID string, bot domain.BotID) error {
	logger.Infof("🧪 [dry-run] register_for_race bot=%d event=%s", bot, eventID)
	return nil
}
