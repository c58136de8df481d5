package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "campusmarket-be"

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// Options tune the process logger. Level is a zap level name; an empty or
// unknown value keeps the environment default.
type Options struct {
	Env   string
	Level string
}

// Init builds the process logger. Production emits JSON on stdout,
// everything else gets the colored console encoder.
func Init(opts Options) {
	l, err := build(opts)
	if err != nil {
		panic(err)
	}
	set(l)
}

func build(opts Options) (*zap.Logger, error) {
	cfg := configFor(opts.Env)
	if opts.Level != "" {
		if lvl, err := zapcore.ParseLevel(opts.Level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	return cfg.Build(
		zap.AddCaller(),
		zap.Fields(zap.String("service", serviceName), zap.String("env", envName(opts.Env))),
	)
}

func configFor(env string) zap.Config {
	if env != "production" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if env == "test" {
			cfg.DisableStacktrace = true
		}
		return cfg
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	enc := &cfg.EncoderConfig
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func envName(env string) string {
	if env == "" {
		return "development"
	}
	return env
}

func set(l *zap.Logger) {
	mu.Lock()
	global = l
	mu.Unlock()
}

// L returns the process logger, building one from APP_ENV and LOG_LEVEL on
// first use.
func L() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	Init(Options{Env: os.Getenv("APP_ENV"), Level: os.Getenv("LOG_LEVEL")})
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Replace swaps the process logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prev := global
	global = l
	mu.Unlock()
	return func() { set(prev) }
}

func Sync() {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
