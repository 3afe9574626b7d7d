// Package logging builds the zap.Logger used throughout the module,
// switching between development and production encoder configs by level.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// Build returns a *zap.Logger configured for level ("debug", "info", "warn",
// "error"; "" is treated as "info", and any other value returns an error).
// debug uses zap's
// development config (console encoder, caller, stack traces on warn);
// everything else uses the production config (JSON encoder).
func Build(level string) (*zap.Logger, error) {
	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	atomicLevel, err := levelFor(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = atomicLevel

	return cfg.Build()
}

func levelFor(level string) (zap.AtomicLevel, error) {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel), nil
	case "info", "":
		return zap.NewAtomicLevelAt(zap.InfoLevel), nil
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel), nil
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel), nil
	default:
		return zap.AtomicLevel{}, fmt.Errorf("logging: unrecognized level %q", level)
	}
}

// GORMLevel maps the application log level string to a GORM logger level,
// so SQL tracing verbosity tracks the application's own verbosity.
func GORMLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "info":
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}
