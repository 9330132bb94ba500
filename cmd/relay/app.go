package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gomoku-relay/internal/config"
	"github.com/cory-johannsen/gomoku-relay/internal/frontend/ws"
	"github.com/cory-johannsen/gomoku-relay/internal/health"
	"github.com/cory-johannsen/gomoku-relay/internal/relay"
	"github.com/cory-johannsen/gomoku-relay/internal/server"
)

// App holds the relay's wired components.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Hub    *ws.Hub
	Relay  *relay.Relay
	WS     *ws.Server
	Health *health.Server
}

// NewApp bundles the components built by InitializeApp.
func NewApp(cfg config.Config, logger *zap.Logger, hub *ws.Hub, r *relay.Relay, srv *ws.Server, hs *health.Server) *App {
	return &App{
		Config: cfg,
		Logger: logger,
		Hub:    hub,
		Relay:  r,
		WS:     srv,
		Health: hs,
	}
}

// Lifecycle registers the websocket server, the idle-room janitor and, when
// enabled, the health endpoint.
func (a *App) Lifecycle() *server.Lifecycle {
	lifecycle := server.NewLifecycle(a.Logger, a.Config.Server.ShutdownTimeout)

	if a.Config.Health.Enabled {
		lifecycle.Add("health", &server.FuncService{
			StartFn: func(ctx context.Context) error {
				go a.markServingWhenReady(ctx)
				// The relay keeps serving without its health endpoint.
				if err := a.Health.ListenAndServe(); err != nil {
					a.Logger.Warn("health endpoint unavailable",
						zap.String("addr", a.Config.Health.Addr()),
						zap.Error(err),
					)
				}
				return nil
			},
			StopFn: a.Health.Stop,
		})
	}

	lifecycle.Add("websocket", &server.FuncService{
		StartFn: func(context.Context) error {
			return a.WS.ListenAndServe()
		},
		StopFn: func(ctx context.Context) {
			if a.Config.Health.Enabled {
				a.Health.SetServing(false)
			}
			a.WS.Stop(ctx)
		},
	})

	if a.Config.Relay.WaitingRoomTTL > 0 {
		lifecycle.Add("janitor", &server.FuncService{
			StartFn: func(ctx context.Context) error {
				return a.Relay.RunJanitor(ctx, a.Config.Relay.SweepInterval)
			},
		})
	}

	return lifecycle
}

// markServingWhenReady reports SERVING once the websocket listener is up.
func (a *App) markServingWhenReady(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.WS.IsRunning() {
				a.Health.SetServing(true)
				a.Logger.Info("relay ready", zap.String("addr", a.WS.Addr()))
				return
			}
		}
	}
}
