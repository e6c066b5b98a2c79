package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config describes how a zap logger is assembled. It is embedded in the main YAML
// configuration under `logging`.
type Config struct {
	Level        string       `yaml:"level"`
	OutputPaths  []string     `yaml:"output_paths"`
	Development  bool         `yaml:"development"`
	LogToConsole bool         `yaml:"log_to_console"`
	Encoding     Encoding     `yaml:"encoding"`
	LogRotation  LogRotation  `yaml:"log_rotation"`
	Sanitization Sanitization `yaml:"sanitization"`
}

type Encoding struct {
	TimeEncoder     string `yaml:"time_encoder"`
	DurationEncoder string `yaml:"duration_encoder"`
	CallerEncoder   string `yaml:"caller_encoder"`
}

type LogRotation struct {
	Enabled    bool `yaml:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// Sanitization configures sensitive field sanitization.
type Sanitization struct {
	SensitiveFields []string `yaml:"sensitive_fields"`
	Mask            string   `yaml:"mask"`
}

// New builds the application logger from cfg. A nil cfg uses DefaultConfig.
func New(name string, cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		c := DefaultConfig
		cfg = &c
	}
	assignDefaultValues(cfg)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     getZapTimeEncoder(cfg.Encoding.TimeEncoder),
		EncodeDuration: getZapDurationEncoder(cfg.Encoding.DurationEncoder),
		EncodeCaller:   getZapCallerEncoder(cfg.Encoding.CallerEncoder),
	}

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)
	atomicLevel := zap.NewAtomicLevelAt(getZapLevel(cfg.Level))

	var cores []zapcore.Core
	if cfg.Development || cfg.LogToConsole {
		consoleEncoderConfig := encoderConfig
		consoleEncoderConfig.EncodeLevel = coloredLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig),
			zapcore.Lock(os.Stdout),
			atomicLevel,
		))
	}

	for _, path := range cfg.OutputPaths {
		var ws zapcore.WriteSyncer
		switch {
		case path == "stdout":
			if cfg.Development || cfg.LogToConsole {
				continue // already covered by the console core
			}
			ws = zapcore.Lock(os.Stdout)
		case path == "stderr":
			ws = zapcore.Lock(os.Stderr)
		case cfg.LogRotation.Enabled:
			ws = zapcore.AddSync(ljLogger(path, cfg.LogRotation))
		default:
			file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file '%s': %w", path, err)
			}
			ws = zapcore.AddSync(file)
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, ws, atomicLevel))
	}

	core := zapcore.NewTee(cores...)
	if len(cfg.Sanitization.SensitiveFields) > 0 {
		core = NewSanitizerCore(core, cfg.Sanitization.SensitiveFields, cfg.Sanitization.Mask)
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	).Named(name), nil
}

// maps string levels to zapcore.Level.
func getZapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func getZapTimeEncoder(encoder string) zapcore.TimeEncoder {
	switch strings.ToLower(encoder) {
	case "epoch":
		return zapcore.EpochTimeEncoder
	case "millis":
		return zapcore.EpochMillisTimeEncoder
	case "rfc3339":
		return zapcore.RFC3339TimeEncoder
	default:
		return zapcore.ISO8601TimeEncoder
	}
}

func getZapDurationEncoder(encoder string) zapcore.DurationEncoder {
	switch strings.ToLower(encoder) {
	case "seconds":
		return zapcore.SecondsDurationEncoder
	case "millis":
		return zapcore.MillisDurationEncoder
	case "nanos":
		return zapcore.NanosDurationEncoder
	default:
		return zapcore.StringDurationEncoder
	}
}

func getZapCallerEncoder(encoder string) zapcore.CallerEncoder {
	if strings.ToLower(encoder) == "full" {
		return zapcore.FullCallerEncoder
	}
	return zapcore.ShortCallerEncoder
}

// adds color codes to log levels for console output - this is a bit slow so only in dev
func coloredLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var level string
	switch l {
	case zapcore.DebugLevel:
		level = "\x1b[36m" + l.String() + "\x1b[0m" // Cyan
	case zapcore.InfoLevel:
		level = "\x1b[32m" + l.String() + "\x1b[0m" // Green
	case zapcore.WarnLevel:
		level = "\x1b[33m" + l.String() + "\x1b[0m" // Yellow
	case zapcore.ErrorLevel:
		level = "\x1b[31m" + l.String() + "\x1b[0m" // Red
	default:
		level = "\x1b[35m" + l.String() + "\x1b[0m" // Magenta
	}
	enc.AppendString(level)
}

// creates a new Lumberjack logger with the given path and configuration.
func ljLogger(path string, l LogRotation) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAgeDays,
		Compress:   l.Compress,
	}
}
