// Package logger 基于 zap 的结构化日志封装。级别、格式与输出目标由配置
// 决定；使用方在构造时注入 *Logger，不依赖全局单例。
package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 结构化日志器，内嵌 zap.Logger。
type Logger struct {
	*zap.Logger
}

// Config 日志配置。
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Format     string   `yaml:"format"`      // json 或 console
	Outputs    []string `yaml:"outputs"`     // stdout, file
	OutputFile string   `yaml:"output_file"` // Outputs 含 file 时写入的路径
	ErrorFile  string   `yaml:"error_file"`  // error 及以上级别另写一份，空则关闭
}

// DefaultConfig 默认向 stdout 输出 json。
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Outputs: []string{"stdout"}}
}

// New 按配置构建 Logger。
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	var cores []zapcore.Core
	for _, out := range cfg.Outputs {
		switch out {
		case "stdout":
			cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(os.Stdout), level))
		case "file":
			if cfg.OutputFile == "" {
				return nil, fmt.Errorf("output_file is required for file output")
			}
			f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return nil, fmt.Errorf("open log file: %w", err)
			}
			// 文件输出固定用 json，便于采集
			cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(f), level))
		default:
			return nil, fmt.Errorf("unknown log output %q", out)
		}
	}
	if cfg.ErrorFile != "" {
		f, err := os.OpenFile(cfg.ErrorFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open error log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(f), zapcore.ErrorLevel))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{Logger: z}, nil
}

func newEncoder(format string) zapcore.Encoder {
	if format == "console" {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(ec)
}

// LogOrder 记录挂单生命周期事件（placed、cancelled）。
func (l *Logger) LogOrder(event, orderID string, fields map[string]interface{}) {
	zf := eventFields(event, fields)
	zf = append(zf, zap.String("order_id", orderID))
	l.Info("order_event", zf...)
}

// LogTrade 记录成交事件。
func (l *Logger) LogTrade(event string, fields map[string]interface{}) {
	l.Info("trade_event", eventFields(event, fields)...)
}

func eventFields(event string, fields map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, len(fields)+3)
	zf = append(zf,
		zap.String("event", event),
		zap.String("ts", time.Now().UTC().Format(time.RFC3339Nano)))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}

// Close 刷新缓冲的日志。
func (l *Logger) Close() error {
	return l.Sync()
}
