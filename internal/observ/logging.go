package observ

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu  sync.RWMutex
	logger = mustProductionLogger("info")
)

// Init replaces the process logger. Level is one of debug|info|warn|error.
func Init(level string, development bool) error {
	var (
		l   *zap.Logger
		err error
	)
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
		l, err = cfg.Build()
	} else {
		l, err = productionConfig(level).Build()
	}
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger swaps the underlying zap logger (tests use zaptest/observer or zap.NewNop).
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logMu.Lock()
	logger = l
	logMu.Unlock()
}

// Logger returns the current zap logger.
func Logger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger().Sync()
}

// Log emits an info-level event with the given key/values.
func Log(event string, kv map[string]any) {
	Logger().Info(event, fields(kv)...)
}

func Debug(event string, kv map[string]any) {
	Logger().Debug(event, fields(kv)...)
}

func Warn(event string, kv map[string]any) {
	Logger().Warn(event, fields(kv)...)
}

func Error(event string, kv map[string]any) {
	Logger().Error(event, fields(kv)...)
}

// fields converts a kv map into zap fields with stable key order.
func fields(kv map[string]any) []zap.Field {
	if len(kv) == 0 {
		return nil
	}
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, kv[k]))
	}
	return out
}

func productionConfig(level string) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "event"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	return cfg
}

func mustProductionLogger(level string) *zap.Logger {
	l, err := productionConfig(level).Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
