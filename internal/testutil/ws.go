// Package testutil provides test helpers for driving the relay over a real
// WebSocket connection.
package testutil

import (
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/cory-johannsen/gomoku-relay/internal/game/room"
	"github.com/cory-johannsen/gomoku-relay/internal/protocol"
)

// WSClient is a minimal game client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials ws://addr<path> and returns a test client.
//
// Precondition: addr must be a "host:port" string with a listening relay.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, addr, path string) *WSClient {
	t.Helper()
	start := time.Now()

	u := url.URL{Scheme: "ws", Host: addr, Path: path}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", u.String(), err, time.Since(start))
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("ws client connected to %s [%s]", u.String(), time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// SendRaw writes a text frame verbatim.
func (c *WSClient) SendRaw(frame []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.t.Fatalf("sending %s: %v", frame, err)
	}
}

// Join sends join_room.
func (c *WSClient) Join(roomID string) {
	c.t.Helper()
	c.SendRaw(c.must(protocol.EncodeJoin(roomID)))
}

// Move sends make_move.
func (c *WSClient) Move(roomID string, x, y int, color room.Role) {
	c.t.Helper()
	c.SendRaw(c.must(protocol.EncodeMove(roomID, x, y, color)))
}

// GameOver sends game_over.
func (c *WSClient) GameOver(roomID, winner string) {
	c.t.Helper()
	c.SendRaw(c.must(protocol.EncodeGameOver(roomID, winner)))
}

func (c *WSClient) must(frame []byte, err error) []byte {
	c.t.Helper()
	if err != nil {
		c.t.Fatalf("encoding frame: %v", err)
	}
	return frame
}

// Next reads the next frame and returns its event name and payload.
//
// Postcondition: Returns the frame, or fails the test on timeout or error.
func (c *WSClient) Next(timeout time.Duration) (string, gjson.Result) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, frame, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	return protocol.EventOf(frame), protocol.DataOf(frame)
}

// Expect reads the next frame and fails unless it carries the given event.
func (c *WSClient) Expect(event string, timeout time.Duration) gjson.Result {
	c.t.Helper()
	got, data := c.Next(timeout)
	if got != event {
		c.t.Fatalf("expected event %q, got %q (data %s)", event, got, data.Raw)
	}
	return data
}

// ExpectSilence fails if any frame arrives within d.
func (c *WSClient) ExpectSilence(d time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(d))
	_, frame, err := c.conn.ReadMessage()
	if err == nil {
		c.t.Fatalf("expected no frame, got %s", frame)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		c.t.Fatalf("expected read timeout, got %v", err)
	}
}

// ExpectClosed fails unless the server closes the connection within timeout.
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.t.Fatalf("connection still open after %s", timeout)
		}
		return
	}
}

// Close closes the connection without a close handshake, like a dropped client.
func (c *WSClient) Close() {
	c.conn.Close()
}
