package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/racebot/gorace/internal/domain"
)

func validConfig() *FleetConfig {
	cfg := &FleetConfig{
		Cohorts: []CohortConfig{
			{Name: "alpha", Bots: []int64{9101, 9102}, RaceHoursUTC: []int{2, 14}},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// TestConfigDefaults 测试配置默认值
func TestConfigDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.RPC.Endpoint != "http://127.0.0.1:8545" {
		t.Errorf("RPC.Endpoint 默认值应该为本地网关，实际为 %s", cfg.RPC.Endpoint)
	}
	if cfg.RPC.TimeoutSec != 15 {
		t.Errorf("RPC.TimeoutSec 默认值应该为 15，实际为 %d", cfg.RPC.TimeoutSec)
	}
	if cfg.Executor.SettleDelayMs != 1500 {
		t.Errorf("SettleDelayMs 默认值应该为 1500，实际为 %d", cfg.Executor.SettleDelayMs)
	}
	if cfg.Executor.RetryRounds != 3 {
		t.Errorf("RetryRounds 默认值应该为 3，实际为 %d", cfg.Executor.RetryRounds)
	}
	if cfg.Daemon.IntervalMin != 30 {
		t.Errorf("IntervalMin 默认值应该为 30，实际为 %d", cfg.Daemon.IntervalMin)
	}
	if cfg.Daemon.Listen != ":8787" {
		t.Errorf("Listen 默认值应该为 :8787，实际为 %s", cfg.Daemon.Listen)
	}
	if cfg.ZoneCaps[domain.ZoneChargingStation] != 5 || cfg.ZoneCaps[domain.ZoneRepairBay] != 4 {
		t.Errorf("区域容量默认值应该为充电站 5 / 维修间 4，实际为 %v", cfg.ZoneCaps)
	}

	// 未覆盖策略的分组继承全局默认
	if cfg.Cohorts[0].Profile == nil {
		t.Fatal("分组策略应该被填充为全局默认")
	}
	if cfg.Cohorts[0].Profile.RepairFloor != cfg.Profile.RepairFloor {
		t.Errorf("分组策略应该继承全局 RepairFloor=%d，实际为 %d",
			cfg.Profile.RepairFloor, cfg.Cohorts[0].Profile.RepairFloor)
	}
}

// TestConfigValidation 测试配置验证
func TestConfigValidation(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("有效配置验证失败: %v", err)
	}

	// 无分组
	empty := &FleetConfig{}
	empty.ApplyDefaults()
	if err := empty.Validate(); err == nil {
		t.Error("无分组的配置应该验证失败")
	}

	// 机器人跨分组重复
	dup := &FleetConfig{
		Cohorts: []CohortConfig{
			{Name: "alpha", Bots: []int64{1, 2}, RaceHoursUTC: []int{2}},
			{Name: "beta", Bots: []int64{2, 3}, RaceHoursUTC: []int{14}},
		},
	}
	dup.ApplyDefaults()
	if err := dup.Validate(); err == nil {
		t.Error("机器人跨分组重复的配置应该验证失败")
	}

	// 比赛整点越界
	badHour := &FleetConfig{
		Cohorts: []CohortConfig{
			{Name: "alpha", Bots: []int64{1}, RaceHoursUTC: []int{24}},
		},
	}
	badHour.ApplyDefaults()
	if err := badHour.Validate(); err == nil {
		t.Error("比赛整点 24 应该验证失败")
	}

	// 区域容量为负
	badCap := validConfig()
	badCap.ZoneCaps[domain.ZoneRepairBay] = -1
	if err := badCap.Validate(); err == nil {
		t.Error("负容量应该验证失败")
	}
}

// TestLoadFromYAMLFile 测试从 YAML 文件加载
func TestLoadFromYAMLFile(t *testing.T) {
	content := `
rpc:
  endpoint: http://gateway.test:8545
  timeout_sec: 20
cohorts:
  - name: alpha
    bots: [9101, 9102, 9103]
    race_hours_utc: [2, 14]
  - name: beta
    bots: [9201]
    race_hours_utc: [8]
    profile:
      repairFloor: 60
zone_caps:
  RepairBay: 6
executor:
  settle_delay_ms: 800
dry_run: true
`
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入测试配置失败: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.RPC.Endpoint != "http://gateway.test:8545" {
		t.Errorf("Endpoint 应该为 http://gateway.test:8545，实际为 %s", cfg.RPC.Endpoint)
	}
	if cfg.RPC.TimeoutSec != 20 {
		t.Errorf("TimeoutSec 应该为 20，实际为 %d", cfg.RPC.TimeoutSec)
	}
	if len(cfg.Cohorts) != 2 {
		t.Fatalf("应该解析出 2 个分组，实际 %d 个", len(cfg.Cohorts))
	}
	if len(cfg.Cohorts[0].Bots) != 3 || cfg.Cohorts[0].Bots[0] != 9101 {
		t.Errorf("alpha 分组机器人解析错误: %v", cfg.Cohorts[0].Bots)
	}
	// beta 覆盖了 repair_floor，其余参数回落到默认
	if cfg.Cohorts[1].Profile.RepairFloor != 60 {
		t.Errorf("beta 的 RepairFloor 应该为 60，实际为 %d", cfg.Cohorts[1].Profile.RepairFloor)
	}
	if cfg.Cohorts[1].Profile.ChargeFloor != cfg.Profile.ChargeFloor {
		t.Errorf("beta 未覆盖的 ChargeFloor 应该回落到默认 %d，实际为 %d",
			cfg.Profile.ChargeFloor, cfg.Cohorts[1].Profile.ChargeFloor)
	}
	if cfg.ZoneCaps[domain.ZoneRepairBay] != 6 {
		t.Errorf("维修间容量覆盖应该为 6，实际为 %d", cfg.ZoneCaps[domain.ZoneRepairBay])
	}
	if cfg.Executor.SettleDelayMs != 800 {
		t.Errorf("SettleDelayMs 应该为 800，实际为 %d", cfg.Executor.SettleDelayMs)
	}
	if !cfg.DryRun {
		t.Error("dry_run 应该为 true")
	}
}

// TestLoadRejectsUnknownFormat 不支持的扩展名应该报错
func TestLoadRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("写入测试配置失败: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("加载 .toml 配置应该报错")
	}
}
