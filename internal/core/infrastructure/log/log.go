// Package log 提供基于 zap 的日志实现
// 支持控制台输出、文件轮转以及按模块打标
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	logconfig "github.com/weisyn/esg-registry/internal/config/log"
)

var (
	// 全局日志实例
	globalLogger *Logger
	mu           sync.RWMutex
)

// Logger 日志记录器
type Logger struct {
	zapLogger *zap.Logger
	sugar     *zap.SugaredLogger
}

func init() {
	ResetDefault()
}

// ResetDefault 重置全局日志记录器为默认配置
func ResetDefault() {
	logger, err := New(logconfig.New(nil))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize default logger: %v\n", err)
		return
	}
	SetLogger(logger)
}

// createFileWriter 创建带轮转的文件写入器
func createFileWriter(path string, options *logconfig.LogOptions) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    options.MaxSize,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAge,
		Compress:   options.Compress,
		LocalTime:  true,
	})
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

// New 根据配置创建日志记录器
//
// 控制台输出写 stderr，避免干扰命令的表格与 JSON 输出。
func New(config *logconfig.Config) (*Logger, error) {
	if config == nil {
		config = logconfig.New(nil)
	}
	options := config.GetOptions()
	level := zap.NewAtomicLevelAt(config.GetZapLevel())

	var cores []zapcore.Core

	if options.ToConsole {
		consoleCfg := encoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	if options.FilePath != "" {
		absPath, err := filepath.Abs(options.FilePath)
		if err != nil {
			return nil, fmt.Errorf("获取日志文件绝对路径失败: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig()),
			createFileWriter(absPath, options),
			level,
		))
	}

	if len(cores) == 0 {
		return &Logger{zapLogger: zap.NewNop(), sugar: zap.NewNop().Sugar()}, nil
	}

	var zapOptions []zap.Option
	if options.EnableCaller {
		zapOptions = append(zapOptions, zap.AddCaller())
	}
	if options.EnableStacktrace {
		zapOptions = append(zapOptions, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), zapOptions...)
	return &Logger{
		zapLogger: zapLogger,
		sugar:     zapLogger.Sugar(),
	}, nil
}

// GetZapLogger 获取底层的zap日志记录器
func (l *Logger) GetZapLogger() *zap.Logger {
	return l.zapLogger
}

// With 返回附带键值对的日志记录器
func (l *Logger) With(args ...interface{}) *Logger {
	sugar := l.sugar.With(args...)
	return &Logger{zapLogger: sugar.Desugar(), sugar: sugar}
}

// Named 返回带 module 字段的日志记录器
func (l *Logger) Named(module string) *Logger {
	z := l.zapLogger.With(zap.String("module", module))
	return &Logger{zapLogger: z, sugar: z.Sugar()}
}

func (l *Logger) Debug(msg string) {
	l.sugar.Debug(msg)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(msg string) {
	l.sugar.Info(msg)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(msg string) {
	l.sugar.Warn(msg)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(msg string) {
	l.sugar.Error(msg)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync 刷新缓冲
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}

// SetLogger 设置全局日志记录器
func SetLogger(logger *Logger) {
	if logger == nil {
		return
	}
	mu.Lock()
	globalLogger = logger
	mu.Unlock()
}

// GetLogger 获取全局日志记录器
func GetLogger() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// L 返回全局 zap 日志记录器
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger.zapLogger
}

// Infof 使用全局日志记录器记录信息级别日志
func Infof(format string, args ...interface{}) {
	if l := GetLogger(); l != nil {
		l.Infof(format, args...)
	}
}

// Warnf 使用全局日志记录器记录警告级别日志
func Warnf(format string, args ...interface{}) {
	if l := GetLogger(); l != nil {
		l.Warnf(format, args...)
	}
}

// Errorf 使用全局日志记录器记录错误级别日志
func Errorf(format string, args ...interface{}) {
	if l := GetLogger(); l != nil {
		l.Errorf(format, args...)
	}
}
