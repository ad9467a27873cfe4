package logging

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Logger is the canonical structured logging interface used by the project.
// Keep it small and focused on key/value structured events.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Sync() error
}

type noopLogger struct{}

func (n noopLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (n noopLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (n noopLogger) Warnw(msg string, keysAndValues ...interface{})  {}
func (n noopLogger) Errorw(msg string, keysAndValues ...interface{}) {}
func (n noopLogger) Sync() error                                     { return nil }

var (
	mu      sync.RWMutex
	current Logger = noopLogger{}
)

// Options controls how Init builds the logger. Zero values fall back to
// LOG_LEVEL from the environment and stdout output.
type Options struct {
	Level string
	// File enables a size-rotated log file in addition to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Stderr sends console output to stderr, for tools whose stdout is data.
	Stderr bool
}

// Init initializes the global sugared logger and redirects the standard
// library logger into zap. Callers must invoke this in main() to enable
// structured logging. It's safe to call multiple times; only the first call
// configures the logger.
func Init(opts Options) *zap.SugaredLogger {
	once.Do(func() {
		level := strings.ToLower(strings.TrimSpace(opts.Level))
		if level == "" {
			level = strings.ToLower(os.Getenv("LOG_LEVEL"))
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.CallerKey = "caller"

		lvl := parseLevel(level)
		console := os.Stdout
		if opts.Stderr {
			console = os.Stderr
		}
		sinks := []zapcore.WriteSyncer{zapcore.Lock(console)}
		if opts.File != "" {
			maxSize := opts.MaxSizeMB
			if maxSize <= 0 {
				maxSize = 50
			}
			sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    maxSize,
				MaxBackups: opts.MaxBackups,
				LocalTime:  false,
			}))
		}
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.NewMultiWriteSyncer(sinks...), zap.NewAtomicLevelAt(lvl))
		logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
		_ = zap.RedirectStdLog(logger)
		sugar = logger.Sugar()
		SetLogger(sugar)
	})
	return sugar
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Sugar returns the initialized sugared logger (may be nil if Init not called).
func Sugar() *zap.SugaredLogger { return sugar }

// SetLogger replaces the package-level logger. Pass nil to reset to the
// sugared logger initialized by Init() (if any). Useful for tests.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l != nil {
		current = l
		return
	}
	if sugar != nil {
		current = sugar
	} else {
		current = noopLogger{}
	}
}

// GetLogger returns the current Logger.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func Infow(msg string, keysAndValues ...interface{})  { GetLogger().Infow(msg, keysAndValues...) }
func Debugw(msg string, keysAndValues ...interface{}) { GetLogger().Debugw(msg, keysAndValues...) }
func Warnw(msg string, keysAndValues ...interface{})  { GetLogger().Warnw(msg, keysAndValues...) }
func Errorw(msg string, keysAndValues ...interface{}) { GetLogger().Errorw(msg, keysAndValues...) }

// Sync flushes any buffered logs.
func Sync() error { return GetLogger().Sync() }

type ctxKeyType struct{}

// WithFields returns a context containing the provided key/value pairs. If
// the context already contains fields they are appended (preserving order).
func WithFields(ctx context.Context, kv ...interface{}) context.Context {
	if len(kv) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(ctxKeyType{}).([]interface{})
	merged := make([]interface{}, 0, len(prev)+len(kv))
	merged = append(merged, prev...)
	merged = append(merged, kv...)
	return context.WithValue(ctx, ctxKeyType{}, merged)
}

// FromContext returns any fields previously attached with WithFields.
func FromContext(ctx context.Context) []interface{} {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKeyType{}).([]interface{}); ok {
		return v
	}
	return nil
}

// InfowCtx merges fields from ctx and the provided kv and emits a structured
// log entry via the current logger.
func InfowCtx(ctx context.Context, msg string, kv ...interface{}) {
	ctxFields := FromContext(ctx)
	if len(ctxFields) == 0 {
		Infow(msg, kv...)
		return
	}
	merged := make([]interface{}, 0, len(ctxFields)+len(kv))
	merged = append(merged, ctxFields...)
	merged = append(merged, kv...)
	Infow(msg, merged...)
}

// SessionFields returns canonical fields for a recording session.
func SessionFields(sessionID, status string) []interface{} {
	if status == "" {
		return []interface{}{"session.id", sessionID}
	}
	return []interface{}{"session.id", sessionID, "session.status", status}
}

// ChunkFields describes buffered audio: chunk count, total interleaved
// samples, and the duration those samples represent at sampleRate/channels.
func ChunkFields(chunks, samples, sampleRate, channels int) []interface{} {
	durationMs := 0
	if sampleRate > 0 && channels > 0 {
		durationMs = int(time.Duration(samples/channels) * time.Second / time.Duration(sampleRate) / time.Millisecond)
	}
	return []interface{}{"chunks", chunks, "samples", samples, "duration_ms", durationMs}
}

// RoundFields describes one game round.
func RoundFields(roundID, player, computer, outcome string) []interface{} {
	return []interface{}{"round.id", roundID, "round.player", player, "round.computer", computer, "round.outcome", outcome}
}
