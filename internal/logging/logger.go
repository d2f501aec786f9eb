// Package logging hands out category-scoped zap loggers for the engine.
// The library is silent by default (nop logger); binaries call Initialize
// once at startup to turn on structured output.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a subsystem for log scoping.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryStore     Category = "store"
	CategoryEvidence  Category = "evidence"
	CategoryRanking   Category = "ranking"
	CategoryRetrieval Category = "retrieval"
	CategoryPolicy    Category = "policy"
	CategorySlice     Category = "slice"
	CategoryPack      Category = "pack"
	CategoryDecision  Category = "decision"
	CategoryEnvelope  Category = "envelope"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Initialize builds the process-wide logger. Level is one of
// debug/info/warn/error; format is json or console.
func Initialize(level, format string) error {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "", "info":
		lvl = zapcore.InfoLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	SetLogger(logger)
	return nil
}

// SetLogger swaps the process-wide logger. Tests use this to install
// zaptest loggers or reset to nop.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	base = l
}

// Get returns the logger scoped to a category.
func Get(cat Category) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(string(cat))
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

// Timer measures the duration of an operation and logs it on Stop.
type Timer struct {
	log   *zap.Logger
	op    string
	start time.Time
}

// StartTimer begins timing an operation in the given category.
func StartTimer(cat Category, op string) *Timer {
	return &Timer{log: Get(cat), op: op, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns the duration.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.log.Debug("operation complete",
		zap.String("op", t.op),
		zap.Duration("elapsed", elapsed))
	return elapsed
}
