package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// baseLogFile 基础日志文件路径（配置中的原始路径）
	baseLogFile string
	// savedConfig 保存的日志配置（用于按周期轮转）
	savedConfig Config
	// currentPeriod 当前周期起点时间戳
	currentPeriod int64
	// logMu 日志文件切换锁
	logMu sync.Mutex
	// cycleDuration 周期时长（默认30分钟，对齐车队巡检周期）
	cycleDuration = 30 * time.Minute
)

// Config 日志配置
type Config struct {
	Level         string        // 日志级别: debug, info, warn, error
	OutputFile    string        // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize       int           // 日志文件最大大小（MB）
	MaxBackups    int           // 保留的旧日志文件数量
	MaxAge        int           // 保留旧日志文件的天数
	Compress      bool          // 是否压缩旧日志文件
	LogByCycle    bool          // 是否按巡检周期切分日志文件
	CycleDuration time.Duration // 周期时长（默认30分钟）
}

// currentPeriodStart 当前周期的对齐起点
func currentPeriodStart(d time.Duration) int64 {
	return time.Now().Truncate(d).Unix()
}

// cycleLogFileName 按周期生成日志文件名，如 logs/fleet_2026-08-31_14-00.log
func cycleLogFileName(basePath string, period int64) string {
	periodStr := time.Unix(period, 0).UTC().Format("2006-01-02_15-04")

	dir := filepath.Dir(basePath)
	baseName := filepath.Base(basePath)
	ext := filepath.Ext(baseName)
	nameWithoutExt := baseName[:len(baseName)-len(ext)]

	name := fmt.Sprintf("%s_%s%s", nameWithoutExt, periodStr, ext)
	if dir == "." || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// Init 初始化日志系统
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
		ForceColors:     true,
	})

	writers := []io.Writer{os.Stdout}

	if config.OutputFile != "" {
		baseLogFile = config.OutputFile
		savedConfig = config

		logFilePath := config.OutputFile
		if config.LogByCycle {
			if config.CycleDuration == 0 {
				config.CycleDuration = cycleDuration
			}
			cycleDuration = config.CycleDuration
			currentPeriod = currentPeriodStart(config.CycleDuration)
			logFilePath = cycleLogFileName(config.OutputFile, currentPeriod)
		}

		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
			return err
		}

		fileWriter := &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    maxOr(config.MaxSize, 100),
			MaxBackups: maxOr(config.MaxBackups, 10),
			MaxAge:     maxOr(config.MaxAge, 30),
			Compress:   config.Compress,
		}
		writers = append(writers, fileWriter)
	}

	logger.SetOutput(io.MultiWriter(writers...))
	Logger = logger
	return nil
}

// InitDefault 用默认配置初始化（仅控制台输出，info 级别）
func InitDefault() error {
	return Init(Config{Level: "info"})
}

// maybeRotate 周期切换时换到新的日志文件
func maybeRotate() {
	if baseLogFile == "" || !savedConfig.LogByCycle {
		return
	}

	logMu.Lock()
	defer logMu.Unlock()

	period := currentPeriodStart(cycleDuration)
	if period == currentPeriod {
		return
	}
	currentPeriod = period

	logFilePath := cycleLogFileName(baseLogFile, period)
	fileWriter := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    maxOr(savedConfig.MaxSize, 100),
		MaxBackups: maxOr(savedConfig.MaxBackups, 10),
		MaxAge:     maxOr(savedConfig.MaxAge, 30),
		Compress:   savedConfig.Compress,
	}
	Logger.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
}

func maxOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func get() *logrus.Logger {
	if Logger == nil {
		_ = InitDefault()
	}
	maybeRotate()
	return Logger
}

// Debug 输出 debug 级别日志
func Debug(args ...interface{}) {
	get().Debug(args...)
}

// Debugf 输出 debug 级别格式化日志
func Debugf(format string, args ...interface{}) {
	get().Debugf(format, args...)
}

// Info 输出 info 级别日志
func Info(args ...interface{}) {
	get().Info(args...)
}

// Infof 输出 info 级别格式化日志
func Infof(format string, args ...interface{}) {
	get().Infof(format, args...)
}

// Warn 输出 warn 级别日志
func Warn(args ...interface{}) {
	get().Warn(args...)
}

// Warnf 输出 warn 级别格式化日志
func Warnf(format string, args ...interface{}) {
	get().Warnf(format, args...)
}

// Error 输出 error 级别日志
func Error(args ...interface{}) {
	get().Error(args...)
}

// Errorf 输出 error 级别格式化日志
func Errorf(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

// WithField 创建带字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return get().WithField(key, value)
}

// WithFields 创建带多个字段的日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return get().WithFields(fields)
}
