// Package main runs the Gomoku relay: a WebSocket server that pairs two
// players per room and relays their moves.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gomoku-relay/internal/config"
	"github.com/cory-johannsen/gomoku-relay/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file (defaults and environment only when empty)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Initialize logger
	logger, err := observability.NewServiceLogger(cfg)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	for _, notice := range cfg.Notices {
		logger.Warn("configuration adjusted", zap.String("notice", notice))
	}

	app, err := InitializeApp(cfg, logger)
	if err != nil {
		logger.Fatal("wiring relay", zap.Error(err))
	}

	logger.Info("relay initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("ws_addr", cfg.Relay.Addr()),
		zap.String("ws_path", cfg.Relay.Path),
		zap.Bool("health", cfg.Health.Enabled),
		zap.Duration("waiting_room_ttl", cfg.Relay.WaitingRoomTTL),
	)

	if err := app.Lifecycle().Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
