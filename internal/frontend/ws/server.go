package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gomoku-relay/internal/config"
)

// Handler consumes client traffic. Implementations must be safe for
// concurrent use; every connection calls in from its own goroutine.
type Handler interface {
	// HandleMessage processes one inbound frame from connID.
	HandleMessage(connID string, frame []byte)
	// HandleDisconnect is called once after connID has left every group.
	HandleDisconnect(connID string)
}

// Server accepts WebSocket connections on an HTTP listener, registers them
// with the Hub and pumps frames between the socket and the Handler.
type Server struct {
	cfg      config.RelayConfig
	hub      *Hub
	handler  Handler
	logger   *zap.Logger
	upgrader websocket.Upgrader

	httpSrv  *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopping bool
}

// NewServer creates a WebSocket server with the given configuration.
//
// Precondition: hub, handler and logger must be non-nil.
// Postcondition: Returns a Server ready to be started with ListenAndServe.
func NewServer(cfg config.RelayConfig, hub *Hub, handler Handler, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		hub:     hub,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Game clients are served from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ListenAndServe binds the listener and serves until Stop is called.
// This method blocks until the server is stopped.
//
// Precondition: The server must not already be running.
// Postcondition: The listener is closed when this method returns.
func (s *Server) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s)

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}
	s.running = true
	srv := s.httpSrv
	s.mu.Unlock()

	s.logger.Info("websocket server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.cfg.Path),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket: %w", err)
	}
	return nil
}

// ServeHTTP upgrades the request and runs the connection's pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		s.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn := NewConn(uuid.NewString(), raw, ConnOptions{
		ReadTimeout:     s.cfg.ReadTimeout,
		WriteTimeout:    s.cfg.WriteTimeout,
		PingInterval:    s.cfg.PingInterval,
		MaxMessageBytes: s.cfg.MaxMessageBytes,
		SendBuffer:      s.cfg.SendBuffer,
	})
	if err := s.hub.Register(conn); err != nil {
		s.logger.Error("registering connection", zap.Error(err))
		_ = raw.Close()
		return
	}
	// Stop may have swept the hub between the check above and Register.
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		s.hub.Unregister(conn.ID())
		_ = raw.Close()
		return
	}
	s.serveConn(conn, r.RemoteAddr)
}

// serveConn runs the pumps for one connection and reports the disconnect.
func (s *Server) serveConn(conn *Conn, remoteAddr string) {
	start := time.Now()
	s.logger.Info("client connected",
		zap.String("conn_id", conn.ID()),
		zap.String("remote_addr", remoteAddr),
	)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		conn.writePump(s.logger)
	}()

	err := conn.readPump(func(frame []byte) {
		s.handler.HandleMessage(conn.ID(), frame)
	})

	s.hub.Unregister(conn.ID())
	s.handler.HandleDisconnect(conn.ID())
	<-writerDone

	fields := []zap.Field{
		zap.String("conn_id", conn.ID()),
		zap.String("remote_addr", remoteAddr),
		zap.Duration("duration", time.Since(start)),
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.logger.Debug("client disconnected", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("client disconnected cleanly", fields...)
	}
}

// Stop closes the listener and every client connection, then waits for all
// connection goroutines to finish or ctx to expire.
//
// Postcondition: No new connections are accepted.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	s.running = false
	srv := s.httpSrv
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}
	// Hijacked websocket connections are not tracked by http.Server.
	s.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("websocket server stopped")
	case <-ctx.Done():
		s.logger.Warn("websocket server stop timed out",
			zap.Int("open_conns", s.hub.ConnCount()),
		)
	}
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

// IsRunning returns whether the server is currently accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
