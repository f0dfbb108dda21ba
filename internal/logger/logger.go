package logger

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "estateshare"

// root holds the process logger once Init has run
var root atomic.Pointer[zap.Logger]

// Init builds the process logger for the given level and format ("json" or
// "text"), installs it as the global and returns it.
func Init(level, format string) (*zap.Logger, error) {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	config := baseConfig(format)
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.InitialFields = map[string]interface{}{"service": serviceName}

	l, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	root.Store(l)
	return l, nil
}

func baseConfig(format string) zap.Config {
	var config zap.Config
	if format == "json" {
		config = zap.NewProductionConfig()
		// share access logs must not be dropped
		config.Sampling = nil
	} else {
		config = zap.NewDevelopmentConfig()
		config.Encoding = "console"
	}

	enc := &config.EncoderConfig
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.LevelKey = "level"
	enc.MessageKey = "msg"
	enc.CallerKey = "caller"
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	return config
}

// parseLevel accepts the levels exposed in configuration
func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// Sync flushes any buffered log entries
func Sync() error {
	if l := root.Load(); l != nil {
		return l.Sync()
	}
	return nil
}

// Named returns a child of the process logger for a component.
// Before Init it returns a no-op logger.
func Named(name string) *zap.Logger {
	l := root.Load()
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(name)
}
