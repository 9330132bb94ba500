package ws

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gomoku-relay/internal/game/room"
	"github.com/cory-johannsen/gomoku-relay/internal/protocol"
)

// Hub tracks live connections and the broadcast groups they belong to.
// All methods are safe for concurrent use and never block on network I/O.
type Hub struct {
	mu          sync.RWMutex
	conns       map[string]*Conn               // connID → conn
	groups      map[string]map[string]struct{} // roomID → set of connIDs
	memberships map[string]map[string]struct{} // connID → set of roomIDs
	logger      *zap.Logger
}

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:       make(map[string]*Conn),
		groups:      make(map[string]map[string]struct{}),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger,
	}
}

// Register adds a connection.
//
// Postcondition: Returns an error if the id is already registered.
func (h *Hub) Register(c *Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.conns[c.ID()]; exists {
		return fmt.Errorf("conn %q already registered", c.ID())
	}
	h.conns[c.ID()] = c
	return nil
}

// Unregister removes a connection from the hub and from every group, then
// closes its outbound queue.
//
// Postcondition: Returns false if the connection was not registered.
func (h *Hub) Unregister(connID string) bool {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
		for roomID := range h.memberships[connID] {
			if members, ok := h.groups[roomID]; ok {
				delete(members, connID)
				if len(members) == 0 {
					delete(h.groups, roomID)
				}
			}
		}
		delete(h.memberships, connID)
	}
	h.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// JoinGroup adds connID to roomID's broadcast group. Unknown connections are
// ignored: the client may have gone away after its join was accepted.
func (h *Hub) JoinGroup(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		h.logger.Debug("join group for unknown conn",
			zap.String("conn_id", connID),
			zap.String("room_id", roomID),
		)
		return
	}
	if h.groups[roomID] == nil {
		h.groups[roomID] = make(map[string]struct{})
	}
	h.groups[roomID][connID] = struct{}{}
	if h.memberships[connID] == nil {
		h.memberships[connID] = make(map[string]struct{})
	}
	h.memberships[connID][roomID] = struct{}{}
}

// DisbandGroup empties roomID's broadcast group.
func (h *Hub) DisbandGroup(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.groups[roomID] {
		if rooms, ok := h.memberships[connID]; ok {
			delete(rooms, roomID)
			if len(rooms) == 0 {
				delete(h.memberships, connID)
			}
		}
	}
	delete(h.groups, roomID)
}

// Broadcast encodes p once and queues it for every member of roomID.
func (h *Hub) Broadcast(roomID string, p room.Payload) {
	frame, err := protocol.Encode(p)
	if err != nil {
		h.logger.Error("encoding broadcast", zap.String("room_id", roomID), zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.groups[roomID]))
	for connID := range h.groups[roomID] {
		if c, ok := h.conns[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, p.EventName(), frame)
	}
}

// Unicast queues p for a single connection.
func (h *Hub) Unicast(connID string, p room.Payload) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		h.logger.Debug("unicast to unknown conn",
			zap.String("conn_id", connID),
			zap.String("event", p.EventName()),
		)
		return
	}

	frame, err := protocol.Encode(p)
	if err != nil {
		h.logger.Error("encoding unicast", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	h.deliver(c, p.EventName(), frame)
}

// deliver queues a frame. A client that cannot keep up is closed: a dropped
// move would leave its board out of sync for the rest of the game.
func (h *Hub) deliver(c *Conn, event string, frame []byte) {
	err := c.Push(frame)
	switch {
	case err == nil:
	case errors.Is(err, ErrQueueFull):
		h.logger.Warn("closing slow client",
			zap.String("conn_id", c.ID()),
			zap.String("event", event),
		)
		c.Close()
	default:
		h.logger.Debug("dropping frame for closed conn",
			zap.String("conn_id", c.ID()),
			zap.String("event", event),
		)
	}
}

// CloseAll closes every registered connection's outbound queue.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

// ConnCount returns the number of registered connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// GroupMembers returns the sorted connection ids in roomID's group.
func (h *Hub) GroupMembers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]string, 0, len(h.groups[roomID]))
	for connID := range h.groups[roomID] {
		members = append(members, connID)
	}
	slices.Sort(members)
	return members
}
