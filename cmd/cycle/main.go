package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/racebot/gorace/internal/fleet"
	"github.com/racebot/gorace/pkg/config"
	"github.com/racebot/gorace/pkg/lease"
	"github.com/racebot/gorace/pkg/logger"
)

func main() {
	// os.Exit 不跑 defer，租约释放必须在 run 里完成
	os.Exit(run())
}

func run() int {
	// 加载 .env（尽力而为，不存在就用真实环境变量）
	_ = godotenv.Load()

	configPath := flag.String("config", "yml/fleet.yaml", "配置文件路径（支持 .yaml, .yml, .json）")
	dryRun := flag.Bool("dry-run", false, "干跑模式：只计算动作，不调用链上写操作")
	noLease := flag.Bool("no-lease", false, "跳过周期互斥租约（仅调试用）")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}

	if err := logger.Init(logger.Config{
		Level:         cfg.LogLevel,
		OutputFile:    cfg.LogFile,
		LogByCycle:    cfg.LogByCycle,
		CycleDuration: cfg.Daemon.Interval(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}

	// 周期互斥租约：防止 cron 重叠执行
	if !*noLease {
		l, err := lease.Acquire(cfg.Daemon.LeaseFile, cfg.Daemon.LeaseTTL())
		if err != nil {
			logrus.Errorf("获取周期租约失败: %v", err)
			return 1
		}
		defer func() { _ = l.Release() }()
	}

	runner, err := fleet.BuildRunner(cfg, *dryRun || cfg.DryRun)
	if err != nil {
		logrus.Errorf("初始化失败: %v", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := runner.RunCycle(ctx)
	if err != nil {
		logrus.Errorf("周期执行失败: %v", err)
		return 1
	}

	logrus.Infof("✅ 周期完成 id=%s 机器人=%d 成功=%d 失败=%d 跳过=%d 成本=%s",
		report.ID, report.BotsTotal, report.BotsOK, report.BotsFailed, report.BotsSkipped, report.PaidCost.String())
	if len(report.Failures) > 0 {
		// 部分失败：退出码区分，便于 cron 告警
		return 2
	}
	return 0
}
