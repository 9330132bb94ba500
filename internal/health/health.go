// Package health exposes the standard gRPC health checking service so
// orchestrators can probe the relay without speaking WebSocket.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/gomoku-relay/internal/config"
)

// Service is the health service name reported alongside the overall ("") status.
const Service = "gomoku.relay"

// Server serves grpc.health.v1.Health on its own listener.
type Server struct {
	cfg        config.HealthConfig
	logger     *zap.Logger
	grpcServer *grpc.Server
	health     *grpchealth.Server

	mu       sync.Mutex
	listener net.Listener
	stopping bool
}

// NewServer creates a health server that reports NOT_SERVING until SetServing is called.
//
// Precondition: logger must be non-nil.
func NewServer(cfg config.HealthConfig, logger *zap.Logger) *Server {
	grpcServer := grpc.NewServer()
	healthServer := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		grpcServer: grpcServer,
		health:     healthServer,
	}
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the relay service status.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(Service, status)
}

// ListenAndServe binds the health listener and serves until Stop is called.
//
// Postcondition: Returns nil after a clean Stop.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("health server listening", zap.String("addr", listener.Addr().String()))
	if err := s.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving health: %w", err)
	}
	return nil
}

// Stop marks the relay NOT_SERVING and stops the gRPC server, forcing it
// closed if ctx expires first.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	s.mu.Unlock()

	start := time.Now()
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}
	s.logger.Info("health server stopped", zap.Duration("duration", time.Since(start)))
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
