// Package logger wraps a zap SugaredLogger with key/value methods and secret redaction.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger logs structured key/value pairs. Values of keys that look like credentials are redacted.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a stderr logger. Mode "prod"/"production" emits JSON; anything else uses the
// development console encoder. Level is debug, info, warn or error; empty means info.
func New(mode, level string) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if m := strings.ToLower(mode); m == "prod" || m == "production" {
		cfg = zap.NewProductionConfig()
	}
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return FromZap(z), nil
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger { return &Logger{sugar: z.Sugar()} }

// Nop discards everything.
func Nop() *Logger { return FromZap(zap.NewNop()) }

func (l *Logger) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, redact(kv)...) }
func (l *Logger) Info(msg string, kv ...any)  { l.sugar.Infow(msg, redact(kv)...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.sugar.Warnw(msg, redact(kv)...) }
func (l *Logger) Error(msg string, kv ...any) { l.sugar.Errorw(msg, redact(kv)...) }

// With returns a child logger that adds kv to every entry.
func (l *Logger) With(kv ...any) *Logger { return &Logger{sugar: l.sugar.With(redact(kv)...)} }

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func (l *Logger) Sync() { _ = l.sugar.Sync() }

var secretMarkers = []string{"api_key", "apikey", "token", "secret", "password", "authorization"}

// redact copies kv, replacing values whose key names a credential. A trailing key without
// a value is passed through for zap to report.
func redact(kv []any) []any {
	if len(kv) == 0 {
		return kv
	}
	out := make([]any, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key := strings.ToLower(fmt.Sprint(out[i]))
		for _, marker := range secretMarkers {
			if strings.Contains(key, marker) {
				out[i+1] = "[REDACTED]"
				break
			}
		}
	}
	return out
}
