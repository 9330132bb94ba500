// Package observability provides structured logging for the relay.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/gomoku-relay/internal/config"
)

// InstanceField is the key tagging every entry with the relay instance name.
const InstanceField = "relay"

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg, err := buildConfig(cfg)
	if err != nil {
		return nil, err
	}
	return build(zapCfg)
}

// NewServiceLogger builds the process logger. Every entry carries the relay
// instance name under InstanceField.
//
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewServiceLogger(cfg config.Config) (*zap.Logger, error) {
	zapCfg, err := buildConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zapCfg.InitialFields = map[string]any{InstanceField: cfg.Server.Name}
	return build(zapCfg)
}

func buildConfig(cfg config.LoggingConfig) (zap.Config, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.Sampling = nil

	output := cfg.Output
	if output == "" {
		output = "stderr"
	}
	zapCfg.OutputPaths = []string{output}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	return zapCfg, nil
}

func build(zapCfg zap.Config) (*zap.Logger, error) {
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
