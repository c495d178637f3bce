package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level    string
	Encoding string
}

// New builds a zap logger. Encoding "console" selects the development
// layout; anything else logs JSON.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(cfg.Level)))); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}

	zcfg := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Encoding, "console") {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	zcfg.DisableStacktrace = true

	return zcfg.Build()
}
