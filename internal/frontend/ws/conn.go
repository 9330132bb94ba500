// Package ws is the relay's transport: it accepts WebSocket clients,
// groups them by room label for fan-out and reports disconnects.
package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Push when the client is not draining its queue.
	ErrQueueFull = errors.New("outbound queue full")
	// ErrConnClosed is returned by Push after Close.
	ErrConnClosed = errors.New("connection closed")
)

// ConnOptions holds per-connection timing and sizing.
type ConnOptions struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
	SendBuffer      int
}

// Conn is one client connection with a bounded outbound queue drained by a
// dedicated write pump.
type Conn struct {
	id   string
	ws   *websocket.Conn
	opts ConnOptions

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewConn wraps ws. A nil ws is allowed for queue-only use in tests.
//
// Precondition: id must be non-empty.
// Postcondition: Returns a Conn with an open outbound queue of opts.SendBuffer frames.
func NewConn(id string, ws *websocket.Conn, opts ConnOptions) *Conn {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	return &Conn{
		id:   id,
		ws:   ws,
		opts: opts,
		send: make(chan []byte, opts.SendBuffer),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// Push enqueues a frame for the write pump.
//
// Postcondition: The frame is queued, or ErrConnClosed / ErrQueueFull is returned.
func (c *Conn) Push(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("conn %s: %w", c.id, ErrConnClosed)
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("conn %s: %w", c.id, ErrQueueFull)
	}
}

// Close closes the outbound queue. The write pump then sends a close frame
// and shuts the socket, which ends the read pump.
//
// Postcondition: Further Push calls return ErrConnClosed. Close is idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readPump delivers inbound frames to onMessage until the socket fails.
//
// Postcondition: Returns the error that ended the loop.
func (c *Conn) readPump(onMessage func([]byte)) error {
	c.ws.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		onMessage(data)
	}
}

// writePump drains the outbound queue and keeps the connection alive with
// pings. It owns all writes to the socket and closes it on exit.
func (c *Conn) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("write failed",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("ping failed",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
				return
			}
		}
	}
}
