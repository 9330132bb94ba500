package main

import (
	"github.com/google/wire"

	"github.com/cory-johannsen/gomoku-relay/internal/config"
	"github.com/cory-johannsen/gomoku-relay/internal/frontend/ws"
	"github.com/cory-johannsen/gomoku-relay/internal/health"
	"github.com/cory-johannsen/gomoku-relay/internal/relay"
)

// ProviderSet builds the relay process from a loaded Config and a logger.
var ProviderSet = wire.NewSet(
	wire.FieldsOf(new(config.Config), "Relay", "Health"),
	ws.NewHub,
	wire.Bind(new(relay.Transport), new(*ws.Hub)),
	provideRelayOptions,
	relay.New,
	wire.Bind(new(ws.Handler), new(*relay.Relay)),
	ws.NewServer,
	health.NewServer,
	NewApp,
)

func provideRelayOptions(cfg config.RelayConfig) relay.Options {
	return relay.Options{WaitingRoomTTL: cfg.WaitingRoomTTL}
}
