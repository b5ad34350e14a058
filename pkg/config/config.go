package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/racebot/gorace/internal/domain"
	"github.com/racebot/gorace/internal/policy"
)

// RPCConfig 链上游戏 RPC 配置
type RPCConfig struct {
	Endpoint   string `yaml:"endpoint" json:"endpoint"`       // JSON-RPC 网关地址
	TimeoutSec int    `yaml:"timeout_sec" json:"timeout_sec"` // 单次请求超时（秒），默认15
	Retries    int    `yaml:"retries" json:"retries"`         // 传输层重试次数，默认3
}

// CohortConfig 车队分组配置（同一分组共享比赛时刻表和策略参数）
type CohortConfig struct {
	Name         string          `yaml:"name" json:"name"`
	Bots         []int64         `yaml:"bots" json:"bots"`                     // 机器人 ID 列表
	RaceHoursUTC []int           `yaml:"race_hours_utc" json:"race_hours_utc"` // 每日比赛整点（UTC 小时）
	Profile      *policy.Profile `yaml:"profile" json:"profile"`               // 策略参数覆盖（为空则用全局默认）
}

// ExecutorConfig 执行器配置
type ExecutorConfig struct {
	SettleDelayMs int    `yaml:"settle_delay_ms" json:"settle_delay_ms"` // 停止后等待结算的毫秒数，默认1500
	RetryRounds   int    `yaml:"retry_rounds" json:"retry_rounds"`       // 失败重试轮数上限，默认3
	RechargeCost  string `yaml:"recharge_cost" json:"recharge_cost"`     // 付费快充单价（游戏币）
	RepairCost    string `yaml:"repair_cost" json:"repair_cost"`         // 付费维修单价（游戏币）
}

// DaemonConfig 常驻守护进程配置
type DaemonConfig struct {
	IntervalMin    int    `yaml:"interval_min" json:"interval_min"`         // 巡检周期间隔（分钟），默认30
	Listen         string `yaml:"listen" json:"listen"`                     // 控制面监听地址，默认 :8787
	HistoryDB      string `yaml:"history_db" json:"history_db"`             // 周期报告 SQLite 路径
	StateFile      string `yaml:"state_file" json:"state_file"`             // 车队状态快照 JSON 路径
	LeaseFile      string `yaml:"lease_file" json:"lease_file"`             // 周期互斥租约文件
	LeaseTTLMin    int    `yaml:"lease_ttl_min" json:"lease_ttl_min"`       // 租约过期时间（分钟），默认45
	SecretStoreDir string `yaml:"secret_store_dir" json:"secret_store_dir"` // 密钥库目录
}

// FleetConfig 车队应用配置
type FleetConfig struct {
	RPC      RPCConfig           `yaml:"rpc" json:"rpc"`
	Cohorts  []CohortConfig      `yaml:"cohorts" json:"cohorts"`
	ZoneCaps map[domain.Zone]int `yaml:"zone_caps" json:"zone_caps"` // 区域容量覆盖（为空用链上默认值）
	Profile  policy.Profile      `yaml:"profile" json:"profile"`     // 全局默认策略参数
	Executor ExecutorConfig      `yaml:"executor" json:"executor"`
	Daemon   DaemonConfig        `yaml:"daemon" json:"daemon"`

	LogLevel   string `yaml:"log_level" json:"log_level"`
	LogFile    string `yaml:"log_file" json:"log_file"`
	LogByCycle bool   `yaml:"log_by_cycle" json:"log_by_cycle"` // 按巡检周期切分日志文件
	DryRun     bool   `yaml:"dry_run" json:"dry_run"`           // 干跑模式：只计算动作，不调用链上写操作
}

var globalConfig *FleetConfig
var configFilePath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// Load 加载配置
func Load() (*FleetConfig, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置（支持 YAML 和 JSON）
func LoadFromFile(filePath string) (*FleetConfig, error) {
	if globalConfig != nil && configFilePath == filePath {
		return globalConfig, nil
	}

	var cfg FleetConfig
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
		}

		switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
			}
		case ".json":
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
			}
		default:
			return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	globalConfig = &cfg
	configFilePath = filePath
	return &cfg, nil
}

// Get 获取全局配置（如果已加载）
func Get() *FleetConfig {
	return globalConfig
}

// ApplyDefaults 填充未设置的配置项（环境变量优先于内置默认值）
func (c *FleetConfig) ApplyDefaults() {
	if c.RPC.Endpoint == "" {
		c.RPC.Endpoint = getEnv("RACE_RPC_ENDPOINT", "http://127.0.0.1:8545")
	}
	if c.RPC.TimeoutSec <= 0 {
		c.RPC.TimeoutSec = parseIntEnv("RACE_RPC_TIMEOUT_SEC", 15)
	}
	if c.RPC.Retries <= 0 {
		c.RPC.Retries = parseIntEnv("RACE_RPC_RETRIES", 3)
	}

	if c.ZoneCaps == nil {
		c.ZoneCaps = domain.DefaultZoneCaps()
	}
	c.Profile.ApplyDefaults()
	for i := range c.Cohorts {
		if c.Cohorts[i].Profile == nil {
			p := c.Profile
			c.Cohorts[i].Profile = &p
		} else {
			c.Cohorts[i].Profile.ApplyDefaults()
		}
	}

	if c.Executor.SettleDelayMs <= 0 {
		c.Executor.SettleDelayMs = 1500
	}
	if c.Executor.RetryRounds <= 0 {
		c.Executor.RetryRounds = 3
	}

	if c.Daemon.IntervalMin <= 0 {
		c.Daemon.IntervalMin = 30
	}
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = getEnv("FLEET_LISTEN", ":8787")
	}
	if c.Daemon.HistoryDB == "" {
		c.Daemon.HistoryDB = "data/cycles.db"
	}
	if c.Daemon.StateFile == "" {
		c.Daemon.StateFile = "data/fleet_state.json"
	}
	if c.Daemon.LeaseFile == "" {
		c.Daemon.LeaseFile = "data/cycle.lease"
	}
	if c.Daemon.LeaseTTLMin <= 0 {
		c.Daemon.LeaseTTLMin = 45
	}
	if c.Daemon.SecretStoreDir == "" {
		c.Daemon.SecretStoreDir = getEnv("FLEET_SECRET_DIR", "data/secrets")
	}

	if c.LogLevel == "" {
		c.LogLevel = getEnv("LOG_LEVEL", "info")
	}
	if c.LogFile == "" {
		c.LogFile = getEnv("LOG_FILE", "logs/fleet.log")
	}
}

// Validate 验证配置
func (c *FleetConfig) Validate() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("rpc.endpoint 未配置")
	}
	if len(c.Cohorts) == 0 {
		return fmt.Errorf("至少需要配置一个车队分组 cohorts")
	}

	seen := make(map[int64]string)
	for _, co := range c.Cohorts {
		if co.Name == "" {
			return fmt.Errorf("分组名称不能为空")
		}
		if len(co.Bots) == 0 {
			return fmt.Errorf("分组 %s 的机器人列表不能为空", co.Name)
		}
		if len(co.RaceHoursUTC) == 0 {
			return fmt.Errorf("分组 %s 的比赛时刻表 race_hours_utc 不能为空", co.Name)
		}
		for _, h := range co.RaceHoursUTC {
			if h < 0 || h > 23 {
				return fmt.Errorf("分组 %s 的比赛整点 %d 超出 0-23 范围", co.Name, h)
			}
		}
		for _, id := range co.Bots {
			if prev, ok := seen[id]; ok {
				return fmt.Errorf("机器人 %d 同时出现在分组 %s 和 %s 中", id, prev, co.Name)
			}
			seen[id] = co.Name
		}
		if err := co.Profile.Validate(); err != nil {
			return fmt.Errorf("分组 %s 策略参数无效: %w", co.Name, err)
		}
	}

	for zone, cap := range c.ZoneCaps {
		if cap < 0 {
			return fmt.Errorf("区域 %s 的容量不能为负数", zone)
		}
	}
	return nil
}

// Timeout RPC 请求超时时长
func (c *RPCConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// SettleDelay 停止后的结算等待时长
func (c *ExecutorConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// Interval 巡检周期间隔
func (c *DaemonConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMin) * time.Minute
}

// LeaseTTL 租约过期时长
func (c *DaemonConfig) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLMin) * time.Minute
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
