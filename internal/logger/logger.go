package logger

import (
	"fmt"
	"os"
	"sync/atomic"

	"quizierra/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// log is swapped atomically because the CLI re-initializes it per command.
var log atomic.Pointer[zap.Logger]

var nop = zap.NewNop()

// Initialize sets up the logger with the given configuration
func Initialize(loggerCfg config.LoggerConfig) error {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if loggerCfg.Level != "" {
		if err := level.UnmarshalText([]byte(loggerCfg.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", loggerCfg.Level, err)
		}
	}

	sink, err := outputSink(loggerCfg.Output)
	if err != nil {
		return err
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	if loggerCfg.Env == "production" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, sink, level)
	log.Store(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
	return nil
}

func outputSink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	default:
		return nil, fmt.Errorf("unsupported log output %q", output)
	}
}

// Get returns the global logger instance, or a no-op logger before Initialize has run.
func Get() *zap.Logger {
	if l := log.Load(); l != nil {
		return l
	}
	return nop
}

// Sync flushes any buffered log entries
func Sync() error {
	if l := log.Load(); l != nil {
		return l.Sync()
	}
	return nil
}
