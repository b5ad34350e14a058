// Package executor 把计划动作落成远端 RPC 调用
//
// 关键契约：
//   - 区域转移 = 先 stop 再 start，两步之间留出让远端状态沉淀的固定延迟
//     （这是启发式的节拍控制，不是正确性同步；若网关将来下发显式限流信号
//     应换成真正的背压）
//   - 每个机器人的执行互相隔离，单个失败不阻断批次
//   - 并行首轮失败的机器人按序重试，轮数有上限，耗尽后上报不静默丢弃
//   - 付费动作一旦成功即为沉没成本，不做部分回滚
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/racebot/gorace/internal/domain"
	"github.com/racebot/gorace/internal/rpc"
	"github.com/racebot/gorace/pkg/syncgroup"
)

var log = logrus.WithField("component", "executor")

// Config 执行器配置
type Config struct {
	SettleDelay  time.Duration   // stop 与 start 之间的沉淀延迟
	RetryRounds  int             // 重试轮数上限（不含首轮）
	RechargeCost decimal.Decimal // 单次付费充电成本（RACE）
	RepairCost   decimal.Decimal // 单次付费维修成本（RACE）
}

// ApplyDefaults 应用默认配置
func (c *Config) ApplyDefaults() {
	if c.SettleDelay == 0 {
		c.SettleDelay = 1500 * time.Millisecond
	}
	if c.RetryRounds == 0 {
		c.RetryRounds = 3
	}
}

// FailedAction 重试耗尽后仍失败的动作
type FailedAction struct {
	Action domain.Action
	Err    error
}

// BatchResult 批次执行结果
type BatchResult struct {
	Succeeded int
	Rejected  int // 业务规则拒绝（已知限制，不算失败也不重试）
	Failed    []FailedAction
	PaidCost  decimal.Decimal
}

// Executor 动作执行器
type Executor struct {
	api rpc.API
	cfg Config

	mu   sync.Mutex
	cost decimal.Decimal
}

// New 创建执行器
func New(api rpc.API, cfg Config) *Executor {
	cfg.ApplyDefaults()
	return &Executor{api: api, cfg: cfg, cost: decimal.Zero}
}

// ExecuteBatch 执行一批动作：并行首轮，失败的按序重试有限轮
func (e *Executor) ExecuteBatch(ctx context.Context, actions []domain.Action) BatchResult {
	result := BatchResult{PaidCost: decimal.Zero}
	e.mu.Lock()
	e.cost = decimal.Zero
	e.mu.Unlock()

	type outcome struct {
		action   domain.Action
		err      error
		rejected bool
	}
	outcomes := make([]outcome, 0, len(actions))
	var outMu sync.Mutex

	// 首轮：并行下发，每个机器人独立 goroutine，互不阻断
	sg := syncgroup.NewSyncGroup()
	for _, a := range actions {
		a := a
		if a.IsNoop() {
			continue
		}
		sg.Add(func() {
			err, rejected := e.executeOne(ctx, a)
			outMu.Lock()
			outcomes = append(outcomes, outcome{action: a, err: err, rejected: rejected})
			outMu.Unlock()
		})
	}
	sg.Run()
	sg.Wait()

	var pending []domain.Action
	for _, o := range outcomes {
		switch {
		case o.rejected:
			result.Rejected++
		case o.err != nil:
			pending = append(pending, o.action)
		default:
			result.Succeeded++
		}
	}

	// 重试轮：失败的机器人按序单个重试，避免并行时的竞态再次触发
	lastErr := make(map[domain.BotID]error)
	for round := 1; round <= e.cfg.RetryRounds && len(pending) > 0; round++ {
		log.Warnf("🔁 第 %d 轮重试，待重试 %d 个机器人", round, len(pending))
		var still []domain.Action
		for _, a := range pending {
			select {
			case <-ctx.Done():
				for _, rest := range pending {
					result.Failed = append(result.Failed, FailedAction{Action: rest, Err: ctx.Err()})
				}
				result.PaidCost = e.takeCost()
				return result
			default:
			}
			err, rejected := e.executeOne(ctx, a)
			switch {
			case rejected:
				result.Rejected++
			case err != nil:
				lastErr[a.Bot] = err
				still = append(still, a)
			default:
				result.Succeeded++
			}
		}
		pending = still
	}

	for _, a := range pending {
		err := lastErr[a.Bot]
		log.Errorf("❌ 机器人 #%d 动作 %s 重试耗尽: %v", a.Bot, a.Type, err)
		result.Failed = append(result.Failed, FailedAction{Action: a, Err: err})
	}

	result.PaidCost = e.takeCost()
	return result
}

// executeOne 执行单个动作；rejected 表示业务规则拒绝（不可重试）
func (e *Executor) executeOne(ctx context.Context, a domain.Action) (err error, rejected bool) {
	defer func() {
		// 单个机器人的任何意外都不能带崩批次
		if r := recover(); r != nil {
			err = fmt.Errorf("panic executing bot %d: %v", a.Bot, r)
		}
	}()

	switch a.Type {
	case domain.ActionStop:
		return e.stop(ctx, a.Bot), false

	case domain.ActionMove:
		return e.move(ctx, a.Bot, a.TargetZone), false

	case domain.ActionPaidRecharge:
		if err := e.api.PaidRecharge(ctx, a.Bot); err != nil {
			if rpc.IsBusinessRejection(err) {
				log.Warnf("⛔ 机器人 #%d 付费充电被拒（业务规则）: %v", a.Bot, err)
				return nil, true
			}
			return err, false
		}
		e.addCost(e.cfg.RechargeCost)
		log.Infof("💰 机器人 #%d 付费充电完成（成本 %s RACE）", a.Bot, e.cfg.RechargeCost)
		return nil, false

	case domain.ActionPaidRepair:
		if err := e.api.PaidRepair(ctx, a.Bot); err != nil {
			if rpc.IsBusinessRejection(err) {
				log.Warnf("⛔ 机器人 #%d 付费维修被拒（业务规则）: %v", a.Bot, err)
				return nil, true
			}
			return err, false
		}
		e.addCost(e.cfg.RepairCost)
		log.Infof("💰 机器人 #%d 付费维修完成（成本 %s RACE）", a.Bot, e.cfg.RepairCost)
		return nil, false

	case domain.ActionRegister:
		if err := e.api.RegisterForRace(ctx, a.EventID, a.Bot); err != nil {
			if rpc.IsBusinessRejection(err) {
				// 已报名/报名关闭属于已知限制，与真实错误区分记录，不重试
				log.Warnf("⛔ 机器人 #%d 报名 %s 被拒（业务规则）: %v", a.Bot, a.EventID, err)
				return nil, true
			}
			return err, false
		}
		log.Infof("🏁 机器人 #%d 已报名比赛 %s", a.Bot, a.EventID)
		return nil, false

	default:
		return nil, false
	}
}

// stop 停止当前任务；"无进行中任务" 等价于成功（本来就空闲）
func (e *Executor) stop(ctx context.Context, bot domain.BotID) error {
	if err := e.api.StopActivity(ctx, bot); err != nil {
		if rpc.IsNoActiveMission(err) {
			log.Debugf("机器人 #%d 本就空闲，stop 视为成功", bot)
			return nil
		}
		return err
	}
	return nil
}

// move 区域转移：严格先 stop 后 start，中间留沉淀延迟
//
// 两步之间进程崩溃会把机器人留在空闲态，下个周期重新观测后自愈
func (e *Executor) move(ctx context.Context, bot domain.BotID, zone domain.Zone) error {
	if err := e.stop(ctx, bot); err != nil {
		return fmt.Errorf("stop before move: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.cfg.SettleDelay):
	}

	if err := e.api.StartActivity(ctx, bot, zone); err != nil {
		if rpc.IsAlreadyOnMission(err) {
			// 与远端状态的竞态：已在任务中视为成功
			log.Debugf("机器人 #%d 已在任务中，start 视为成功", bot)
			return nil
		}
		return fmt.Errorf("start in %s: %w", zone, err)
	}
	log.Infof("🚚 机器人 #%d 已转移至 %s", bot, zone)
	return nil
}

func (e *Executor) addCost(c decimal.Decimal) {
	e.mu.Lock()
	e.cost = e.cost.Add(c)
	e.mu.Unlock()
}

func (e *Executor) takeCost() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cost
}
