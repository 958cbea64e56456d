// Package log builds the process-wide zap logger.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LevelEnvironmentVariable overrides the level passed to Init.
	LevelEnvironmentVariable = "AUTOQA_LOG_LEVEL"
	DefaultLevel             = "info"
	componentKey             = "component"
)

var (
	logger *zap.Logger
	mu     sync.Mutex
)

// Init builds the logger with a plain text format at the given level.
func Init(level string) error {
	if env := os.Getenv(LevelEnvironmentVariable); env != "" {
		level = env
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	mu.Lock()
	logger = build(lvl)
	mu.Unlock()
	return nil
}

// GetLogger returns the process logger, initializing it at info level if
// Init was never called.
func GetLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = build(zapcore.InfoLevel)
	}
	return logger
}

func build(lvl zapcore.Level) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// stderr keeps stdout free for JSON output
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core, zap.AddCaller())
}

// Component returns a logger tagged with a component name
func Component(name string) *zap.Logger {
	return GetLogger().With(zap.String(componentKey, name))
}

// Sync flushes any buffered log entries.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		_ = logger.Sync()
	}
}

func parseLevel(level string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}
