package log

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// LogOptions 日志配置选项
type LogOptions struct {
	// === 基础配置 ===
	Level     string `json:"level"`               // 日志级别 (debug, info, warn, error, fatal)
	ToConsole bool   `json:"to_console"`          // 是否输出到控制台
	FilePath  string `json:"file_path,omitempty"` // 日志文件路径，空表示不写文件

	// === 基础轮转配置 ===
	MaxSize    int  `json:"max_size"`    // 单个日志文件最大大小(MB)
	MaxBackups int  `json:"max_backups"` // 最大备份文件数
	MaxAge     int  `json:"max_age"`     // 日志文件最大保留天数
	Compress   bool `json:"compress"`    // 是否压缩历史日志文件

	// === 调试配置 ===
	EnableCaller     bool `json:"enable_caller"`     // 是否启用调用者信息
	EnableStacktrace bool `json:"enable_stacktrace"` // 是否启用堆栈跟踪
}

// Config 日志配置实现
type Config struct {
	options *LogOptions
}

// New 创建日志配置，user 中的零值字段使用默认值
func New(user *LogOptions) *Config {
	options := DefaultOptions()
	if user != nil {
		if user.Level != "" {
			options.Level = strings.ToLower(user.Level)
		}
		if user.FilePath != "" {
			options.FilePath = user.FilePath
			options.ToConsole = user.ToConsole
			options.Compress = user.Compress
		}
		if user.MaxSize > 0 {
			options.MaxSize = user.MaxSize
		}
		if user.MaxBackups > 0 {
			options.MaxBackups = user.MaxBackups
		}
		if user.MaxAge > 0 {
			options.MaxAge = user.MaxAge
		}
		options.EnableCaller = user.EnableCaller
		options.EnableStacktrace = user.EnableStacktrace
	}
	return &Config{options: options}
}

// DefaultOptions 默认日志配置
func DefaultOptions() *LogOptions {
	return &LogOptions{
		Level:            defaultLogLevel,
		ToConsole:        defaultToConsole,
		MaxSize:          defaultMaxSize,
		MaxBackups:       defaultMaxBackups,
		MaxAge:           defaultMaxAge,
		Compress:         defaultCompress,
		EnableCaller:     defaultEnableCaller,
		EnableStacktrace: defaultEnableStacktrace,
	}
}

// GetOptions 获取完整的日志配置选项
func (c *Config) GetOptions() *LogOptions {
	return c.options
}

// GetZapLevel 获取zap日志级别
func (c *Config) GetZapLevel() zapcore.Level {
	if level, exists := defaultLevelMap[c.options.Level]; exists {
		return level
	}
	return zapcore.InfoLevel
}
