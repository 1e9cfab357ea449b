package config

import (
	"fmt"

	"go.uber.org/zap"
)

// setLogger builds the zap logger for the given environment. local logs at debug,
// development at info, production as JSON.
func setLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "local", "":
		cfg = zap.NewDevelopmentConfig()
	case "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "production":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown app_env %q", env)
	}
	return cfg.Build()
}
