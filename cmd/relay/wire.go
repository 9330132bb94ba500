//go:build wireinject

package main

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gomoku-relay/internal/config"
)

// InitializeApp wires the relay's components.
func InitializeApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
