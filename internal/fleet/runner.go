// Package fleet 车队周期编排：拉取快照 -> 阶段分类 -> 规划 -> 仲裁 -> 执行 -> 报告
//
// 单次调用内各阶段严格串行，阶段内部（快照拉取、动作执行）并发扇出后汇合。
// 周期之间不并发：核心自身无跨周期状态，依赖外部调度器保证不重叠触发
package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/racebot/gorace/internal/arbiter"
	"github.com/racebot/gorace/internal/domain"
	"github.com/racebot/gorace/internal/executor"
	"github.com/racebot/gorace/internal/policy"
	"github.com/racebot/gorace/internal/rpc"
	"github.com/racebot/gorace/pkg/syncgroup"
)

var log = logrus.WithField("component", "fleet")

// Cohort 车队运行时配置（成员 + 赛程 + 策略）
type Cohort struct {
	domain.Cohort
	Profile policy.Profile
}

// Runner 周期执行器
type Runner struct {
	api     rpc.API
	exec    *executor.Executor
	cohorts []Cohort
	caps    map[domain.Zone]int

	mu            sync.RWMutex
	lastSnapshots []domain.BotSnapshot // 最近一次周期的快照（控制面板展示用）
}

// NewRunner 创建周期执行器
func NewRunner(api rpc.API, exec *executor.Executor, cohorts []Cohort, caps map[domain.Zone]int) *Runner {
	if caps == nil {
		caps = domain.DefaultZoneCaps()
	}
	return &Runner{
		api:     api,
		exec:    exec,
		cohorts: cohorts,
		caps:    caps,
	}
}

// LastSnapshots 返回最近一次周期观测到的快照副本
func (r *Runner) LastSnapshots() []domain.BotSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.BotSnapshot(nil), r.lastSnapshots...)
}

// RunCycle 执行一个完整周期
//
// 初始化失败（够不到远端）返回 error 中止整个周期；
// 单个机器人的失败只进报告，永不中止批次
func (r *Runner) RunCycle(ctx context.Context) (*domain.CycleReport, error) {
	report := domain.NewCycleReport(uuid.NewString())
	start := time.Now()
	log.Infof("🏁 周期开始 id=%s", report.ID)

	// 周期起点健康检查：赛程和报名拉不到就整体中止，交给外部调度器告警
	races, err := r.api.ListUpcomingRaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("周期初始化失败（拉取赛程）: %w", err)
	}
	regs, err := r.api.GetMyRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("周期初始化失败（拉取报名）: %w", err)
	}

	registered := make(map[domain.BotID]map[string]bool)
	for _, g := range regs {
		if registered[g.BotID] == nil {
			registered[g.BotID] = make(map[string]bool)
		}
		registered[g.BotID][g.EventID] = true
	}

	// 阶段分类（按配置顺序，等距平局取先声明的车队）
	now := time.Now().UTC()
	infos := make([]domain.PhaseInfo, len(r.cohorts))
	for i, c := range r.cohorts {
		infos[i] = policy.Classify(now, c.RaceHoursUTC, c.Profile)
		report.Phases[c.Name] = string(infos[i].Phase)
		log.Infof("📅 车队 %s 阶段=%s 距比赛 %d 分钟", c.Name, infos[i].Phase, infos[i].MinutesToRace)
	}
	priority := policy.PriorityCohort(infos)

	// 并发拉取全部快照
	snapshots, skipped := r.fetchSnapshots(ctx)
	report.BotsSkipped = skipped
	r.mu.Lock()
	r.lastSnapshots = snapshots
	r.mu.Unlock()

	cohortOf := r.cohortIndex()
	arb := arbiter.New(r.caps)
	arb.Observe(snapshots, func(id domain.BotID) string {
		if i, ok := cohortOf[id]; ok {
			return r.cohorts[i].Name
		}
		return ""
	})

	byBot := make(map[domain.BotID]domain.BotSnapshot, len(snapshots))
	for _, s := range snapshots {
		byBot[s.ID] = s
	}

	// 规划：持有抢占权的车队先处理，车队内按电量升序（电量最低的优先拿稀缺名额）
	order := planOrder(len(r.cohorts), priority)
	var actions []domain.Action
	planned := make(map[domain.BotID]int) // bot -> actions 下标
	for _, ci := range order {
		c := r.cohorts[ci]
		info := infos[ci]
		eventID := nextRaceEventID(races, info)

		members := make([]domain.BotSnapshot, 0, len(c.Bots))
		for _, id := range c.Bots {
			if s, ok := byBot[id]; ok {
				members = append(members, s)
			}
		}
		sort.Slice(members, func(i, j int) bool {
			if members[i].Battery != members[j].Battery {
				return members[i].Battery < members[j].Battery
			}
			return members[i].ID < members[j].ID
		})

		for _, s := range members {
			a := policy.Plan(policy.PlanRequest{
				Snapshot:    s,
				Phase:       info,
				Cohort:      c.Name,
				HasPriority: ci == priority && info.Phase == domain.PhasePreRace,
				RaceEventID: eventID,
				Registered:  registered[s.ID][eventID],
			}, c.Profile, arb)
			log.Debugf("🧠 #%d -> %s %s（%s）", s.ID, a.Type, a.TargetZone, a.Reason)
			planned[s.ID] = len(actions)
			actions = append(actions, a)
		}
	}

	// 被抢占驱逐的机器人强制改为 stop 待机（不立即安置，下周期重新评估）
	for _, id := range arb.Evicted() {
		report.Evicted = append(report.Evicted, id)
		ev := domain.Stop(id, "维修位被优先车队抢占，停止待机")
		if i, ok := planned[id]; ok {
			actions[i] = ev
		} else {
			actions = append(actions, ev)
		}
	}

	for _, a := range actions {
		report.RecordAction(a)
	}

	// 执行
	batch := r.exec.ExecuteBatch(ctx, actions)
	for _, f := range batch.Failed {
		report.RecordFailure(f.Action.Bot, f.Action.Type, f.Err)
	}
	report.AddCost(batch.PaidCost)

	report.BotsTotal = r.totalBots()
	report.BotsOK = report.BotsTotal - report.BotsFailed - report.BotsSkipped
	report.Duration = time.Since(start)

	log.Infof("✅ 周期完成 id=%s 机器人 %d/%d 失败 %d 跳过 %d 成本 %s RACE 用时 %s",
		report.ID, report.BotsOK, report.BotsTotal, report.BotsFailed,
		report.BotsSkipped, report.PaidCost, report.Duration.Round(time.Millisecond))
	return report, nil
}

// fetchSnapshots 并发拉取全部机器人的快照
// 拉取失败或载荷畸形的机器人记为跳过（"无数据"），不影响其他机器人
func (r *Runner) fetchSnapshots(ctx context.Context) ([]domain.BotSnapshot, int) {
	var mu sync.Mutex
	var snapshots []domain.BotSnapshot
	skipped := 0

	sg := syncgroup.NewSyncGroup()
	for _, c := range r.cohorts {
		for _, id := range c.Bots {
			id := id
			sg.Add(func() {
				s, err := r.api.GetStatus(ctx, id)
				mu.Lock()
				defer mu.Unlock()
				if err != nil || s == nil || !s.IsValid() {
					log.Warnf("⚠️ 机器人 #%d 快照不可用，本周期跳过: %v", id, err)
					skipped++
					return
				}
				snapshots = append(snapshots, *s)
			})
		}
	}
	sg.Run()
	sg.Wait()

	// 稳定排序，保证同样输入下规划顺序可复现
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ID < snapshots[j].ID })
	return snapshots, skipped
}

// cohortIndex 机器人 -> 车队下标
func (r *Runner) cohortIndex() map[domain.BotID]int {
	idx := make(map[domain.BotID]int)
	for i, c := range r.cohorts {
		for _, id := range c.Bots {
			idx[id] = i
		}
	}
	return idx
}

func (r *Runner) totalBots() int {
	n := 0
	for _, c := range r.cohorts {
		n += len(c.Bots)
	}
	return n
}

// planOrder 车队处理顺序：优先车队在前，其余按配置顺序
func planOrder(n, priority int) []int {
	order := make([]int, 0, n)
	if priority >= 0 && priority < n {
		order = append(order, priority)
	}
	for i := 0; i < n; i++ {
		if i != priority {
			order = append(order, i)
		}
	}
	return order
}

// nextRaceEventID 找到与车队下一个比赛整点匹配的最近赛事
func nextRaceEventID(races []rpc.RaceEvent, info domain.PhaseInfo) string {
	if info.RaceHourUTC < 0 {
		return ""
	}
	now := time.Now().UTC()
	bestID := ""
	var bestAt time.Time
	for _, rc := range races {
		at := rc.RaceTimeUTC.UTC()
		if at.Before(now) || at.Hour() != info.RaceHourUTC {
			continue
		}
		if bestID == "" || at.Before(bestAt) {
			bestID = rc.EventID
			bestAt = at
		}
	}
	return bestID
}
