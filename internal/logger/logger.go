// Package logger wraps zap behind the small Logger interface every component
// accepts. Each call logs one structured object under a named key.
package logger

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/samvad-hq/samvad-newsdesk/internal/config"
)

// Logger is the structured logging surface handed to components.
type Logger interface {
	InfoObj(msg, key string, obj any)
	DebugObj(msg, key string, obj any)
	WarnObj(msg, key string, obj any)
	ErrorObj(msg, key string, obj any)
}

// Zap implements Logger on top of a *zap.Logger.
type Zap struct {
	z *zap.Logger
}

var global atomic.Pointer[Zap]

// New builds a JSON logger writing to out. Production adds stack traces on
// errors; other environments tag entries with caller only.
func New(cfg *config.Config, out zapcore.WriteSyncer) *Zap {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if cfg.IsProduction() {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(out), levelOf(cfg.LogLevel))
	z := zap.New(core, opts...).With(
		zap.String("app", cfg.AppName),
		zap.String("env", cfg.Env),
	)
	return &Zap{z: z}
}

// Init builds the stdout logger and makes it the process default.
func Init(cfg *config.Config) (*Zap, error) {
	l := New(cfg, os.Stdout)
	global.Store(l)
	return l, nil
}

// Default returns the logger installed by Init, or Nop before Init.
func Default() Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return Nop{}
}

// Close flushes the default logger.
func Close() error {
	if l := global.Load(); l != nil {
		return l.Sync()
	}
	return nil
}

// Sync flushes buffered entries.
func (l *Zap) Sync() error { return l.z.Sync() }

func (l *Zap) InfoObj(msg, key string, obj any)  { l.z.Info(msg, zap.Any(key, obj)) }
func (l *Zap) DebugObj(msg, key string, obj any) { l.z.Debug(msg, zap.Any(key, obj)) }
func (l *Zap) WarnObj(msg, key string, obj any)  { l.z.Warn(msg, zap.Any(key, obj)) }
func (l *Zap) ErrorObj(msg, key string, obj any) { l.z.Error(msg, zap.Any(key, obj)) }

func levelOf(raw string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(raw))
	if err != nil || raw == "" {
		return zapcore.InfoLevel
	}
	return lvl
}

// Nop discards everything.
type Nop struct{}

func (Nop) InfoObj(string, string, any)  {}
func (Nop) DebugObj(string, string, any) {}
func (Nop) WarnObj(string, string, any)  {}
func (Nop) ErrorObj(string, string, any) {}

// OrNop returns log, or Nop when log is nil.
func OrNop(log Logger) Logger {
	if log == nil {
		return Nop{}
	}
	return log
}
