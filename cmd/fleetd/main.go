package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/racebot/gorace/internal/controlplane/server"
	"github.com/racebot/gorace/internal/fleet"
	"github.com/racebot/gorace/internal/history"
	"github.com/racebot/gorace/pkg/config"
	"github.com/racebot/gorace/pkg/lease"
	"github.com/racebot/gorace/pkg/logger"
	"github.com/racebot/gorace/pkg/persistence"
	"github.com/racebot/gorace/pkg/shutdown"
	"github.com/racebot/gorace/pkg/sigchan"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "yml/fleet.yaml", "配置文件路径（支持 .yaml, .yml, .json）")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:         cfg.LogLevel,
		OutputFile:    cfg.LogFile,
		LogByCycle:    cfg.LogByCycle,
		CycleDuration: cfg.Daemon.Interval(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Daemon.HistoryDB), 0o755); err != nil {
		logrus.Errorf("创建数据目录失败: %v", err)
		os.Exit(1)
	}
	store, err := history.Open(cfg.Daemon.HistoryDB)
	if err != nil {
		logrus.Errorf("打开周期报告库失败: %v", err)
		os.Exit(1)
	}

	runner, err := fleet.BuildRunner(cfg, cfg.DryRun)
	if err != nil {
		logrus.Errorf("初始化失败: %v", err)
		os.Exit(1)
	}

	// 状态快照落盘（fleet-tui 和重启恢复用）
	stateStore := persistence.NewJSONFileService(filepath.Dir(cfg.Daemon.StateFile)).
		NewStore("fleet", "state", "snapshots")

	trigger := sigchan.New(1)
	srv := server.New(server.Config{Listen: cfg.Daemon.Listen}, runner, store, trigger)

	httpSrv := &http.Server{
		Addr:              cfg.Daemon.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logrus.Infof("🌐 控制面监听 %s", cfg.Daemon.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("控制面服务异常: %v", err)
		}
	}()

	manager := shutdown.NewManager()
	manager.OnShutdown(func(ctx context.Context) { _ = httpSrv.Shutdown(ctx) })
	manager.OnShutdown(func(ctx context.Context) { _ = srv.Close() })
	manager.OnShutdown(func(ctx context.Context) { _ = store.Close() })

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	logrus.Infof("🤖 车队守护进程启动，巡检间隔 %s", cfg.Daemon.Interval())

	ticker := time.NewTicker(cfg.Daemon.Interval())
	defer ticker.Stop()

	runOnce := func() {
		// 与 cron 模式共用租约，避免两种部署方式并跑
		l, err := lease.Acquire(cfg.Daemon.LeaseFile, cfg.Daemon.LeaseTTL())
		if err != nil {
			logrus.Warnf("⚠️ 本轮跳过：%v", err)
			return
		}
		defer func() { _ = l.Release() }()

		report, err := runner.RunCycle(ctx)
		if err != nil {
			logrus.Errorf("周期执行失败: %v", err)
			return
		}

		if err := store.SaveReport(ctx, report); err != nil {
			logrus.Errorf("保存周期报告失败: %v", err)
		}
		srv.BroadcastReport(report)
		if err := stateStore.Save(runner.LastSnapshots()); err != nil {
			logrus.Warnf("⚠️ 保存车队状态快照失败: %v", err)
		}

		logrus.Infof("✅ 周期完成 id=%s 机器人=%d 成功=%d 失败=%d 成本=%s",
			report.ID, report.BotsTotal, report.BotsOK, report.BotsFailed, report.PaidCost.String())
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("收到退出信号，开始优雅关闭")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			manager.Shutdown(shutdownCtx)
			shutdownCancel()
			return
		case <-ticker.C:
			runOnce()
		case <-trigger.C():
			logrus.Info("🔔 收到手动触发，立即执行一轮巡检")
			runOnce()
		}
	}
}
