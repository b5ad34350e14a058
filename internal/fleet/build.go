package fleet

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/racebot/gorace/internal/domain"
	"github.com/racebot/gorace/internal/executor"
	"github.com/racebot/gorace/internal/rpc"
	"github.com/racebot/gorace/pkg/config"
	"github.com/racebot/gorace/pkg/secretstore"
)

// BuildRunner 按配置组装 RPC 客户端、执行器和周期执行器
func BuildRunner(cfg *config.FleetConfig, dryRun bool) (*Runner, error) {
	signer, err := loadSigner(cfg)
	if err != nil {
		return nil, err
	}

	var api rpc.API = rpc.NewClient(cfg.RPC.Endpoint, signer, rpc.ClientOptions{
		Timeout:    cfg.RPC.Timeout(),
		RetryCount: cfg.RPC.Retries,
	})
	if dryRun {
		log.Info("🧪 干跑模式已启用，所有写操作只打日志")
		api = rpc.NewDryRunAPI(api)
	}

	exec := executor.New(api, executor.Config{
		SettleDelay:  cfg.Executor.SettleDelay(),
		RetryRounds:  cfg.Executor.RetryRounds,
		RechargeCost: parseCost(cfg.Executor.RechargeCost),
		RepairCost:   parseCost(cfg.Executor.RepairCost),
	})

	return NewRunner(api, exec, buildCohorts(cfg), cfg.ZoneCaps), nil
}

func buildCohorts(cfg *config.FleetConfig) []Cohort {
	cohorts := make([]Cohort, 0, len(cfg.Cohorts))
	for _, co := range cfg.Cohorts {
		bots := make([]domain.BotID, 0, len(co.Bots))
		for _, id := range co.Bots {
			bots = append(bots, domain.BotID(id))
		}
		cohorts = append(cohorts, Cohort{
			Cohort: domain.Cohort{
				Name:         co.Name,
				Bots:         bots,
				RaceHoursUTC: co.RaceHoursUTC,
			},
			Profile: *co.Profile,
		})
	}
	return cohorts
}

// loadSigner 加载签名私钥：环境变量优先，其次密钥库
func loadSigner(cfg *config.FleetConfig) (*rpc.Signer, error) {
	if hex := strings.TrimSpace(os.Getenv("RACE_PRIVATE_KEY")); hex != "" {
		return rpc.NewSignerFromHex(hex)
	}

	masterKey, err := secretstore.ParseKey(os.Getenv("FLEET_MASTER_KEY"))
	if err != nil {
		return nil, fmt.Errorf("解析 FLEET_MASTER_KEY 失败: %w", err)
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.Daemon.SecretStoreDir,
		EncryptionKey: masterKey,
		ReadOnly:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("打开密钥库失败: %w", err)
	}
	defer store.Close()

	hex, found, err := store.GetString(secretstore.KeyWalletPrivateKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("未找到钱包私钥：请设置 RACE_PRIVATE_KEY 或先运行 wallet-init")
	}
	return rpc.NewSignerFromHex(hex)
}

func parseCost(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Warnf("⚠️ 无法解析成本配置 %q，按 0 处理", s)
		return decimal.Zero
	}
	return d
}
