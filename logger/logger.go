package logger

import (
	"carshop/config"

	"go.uber.org/zap"
)

// NewZapLog builds a production zap logger writing to cfg.Output at cfg.Level.
func NewZapLog(cfg config.LogConfig) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zapcfg := zap.NewProductionConfig()
	zapcfg.Level = lvl
	if cfg.Output != "" {
		zapcfg.OutputPaths = []string{cfg.Output}
	}
	// keep the interactive console free of sampled stack traces
	zapcfg.DisableStacktrace = true
	return zapcfg.Build()
}
