package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gomoku-relay/internal/game/room"
	"github.com/cory-johannsen/gomoku-relay/internal/protocol"
)

// Transport delivers outbound events and manages broadcast groups keyed by
// room id. Implementations must not block: Relay calls them while holding
// its lock.
type Transport interface {
	// JoinGroup adds connID to roomID's broadcast group.
	JoinGroup(connID, roomID string)
	// DisbandGroup empties roomID's broadcast group.
	DisbandGroup(roomID string)
	// Broadcast delivers p to every member of roomID's group.
	Broadcast(roomID string, p room.Payload)
	// Unicast delivers p to a single connection.
	Unicast(connID string, p room.Payload)
}

// Options tunes a Relay.
type Options struct {
	// WaitingRoomTTL evicts rooms still waiting for a second player after
	// this long. Zero disables eviction.
	WaitingRoomTTL time.Duration
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Relay is the room registry and event relay. All transitions run under a
// single lock so events from different connections are applied one at a
// time in arrival order.
type Relay struct {
	mu        sync.Mutex
	registry  *Registry
	transport Transport
	logger    *zap.Logger
	ttl       time.Duration
	now       func() time.Time
}

// New creates a Relay with an empty registry.
//
// Precondition: logger and transport must be non-nil.
// Postcondition: Returns a Relay with no rooms.
func New(logger *zap.Logger, transport Transport, opts Options) *Relay {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Relay{
		registry:  NewRegistry(),
		transport: transport,
		logger:    logger,
		ttl:       opts.WaitingRoomTTL,
		now:       now,
	}
}

// Join seats connID in roomID, creating the room if needed.
func (r *Relay) Join(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	memberOf, _ := r.registry.RoomOf(connID)
	r.apply(room.Join(roomID, connID, memberOf))
}

// Move relays a stone placement to every member of a started room.
func (r *Relay) Move(connID, roomID string, x, y int, color room.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(room.Move(roomID, connID, x, y, color))
}

// GameOver announces the winner and removes the room.
func (r *Relay) GameOver(connID, roomID, winner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(room.GameOver(roomID, connID, winner))
}

// Disconnect tears down the room connID was seated in, if any.
func (r *Relay) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, ok := r.registry.RoomOf(connID)
	if !ok {
		r.logger.Debug("disconnect outside any room",
			zap.String("conn_id", connID),
		)
		return
	}
	r.apply(room.Disconnect(roomID, connID))
}

// HandleMessage decodes a client frame and applies it. Bad frames are logged
// and dropped.
func (r *Relay) HandleMessage(connID string, frame []byte) {
	in, err := protocol.Decode(frame)
	if err != nil {
		level := zap.DebugLevel
		if errors.Is(err, protocol.ErrUnknownEvent) {
			level = zap.WarnLevel
		}
		r.logger.Log(level, "dropping client frame",
			zap.String("conn_id", connID),
			zap.String("event", in.Event),
			zap.Error(err),
		)
		return
	}

	switch in.Event {
	case protocol.EventJoinRoom:
		r.Join(connID, in.RoomID)
	case protocol.EventMakeMove:
		r.Move(connID, in.RoomID, in.X, in.Y, in.Color)
	case protocol.EventGameOver:
		r.GameOver(connID, in.RoomID, in.Winner)
	}
}

// HandleDisconnect is the transport's disconnect callback.
func (r *Relay) HandleDisconnect(connID string) {
	r.Disconnect(connID)
}

// EvictIdle removes waiting rooms older than the configured TTL.
//
// Postcondition: Returns the number of rooms evicted; zero when eviction is disabled.
func (r *Relay) EvictIdle() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for _, id := range r.registry.Expired(r.now().Add(-r.ttl)) {
		if res := r.apply(room.Evict(id)); res.Deleted {
			evicted++
		}
	}
	return evicted
}

// RunJanitor calls EvictIdle every interval until ctx is cancelled.
//
// Precondition: interval must be > 0.
func (r *Relay) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.EvictIdle(); n > 0 {
				r.logger.Info("evicted idle rooms",
					zap.Int("count", n),
					zap.Duration("ttl", r.ttl),
				)
			}
		}
	}
}

// Room returns a copy of the room registered under roomID.
func (r *Relay) Room(roomID string) (*room.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.registry.Lookup(roomID)
	return rm.Clone(), ok
}

// RoomCount returns the number of live rooms.
func (r *Relay) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Len()
}

// Rooms returns copies of all live rooms ordered by id.
func (r *Relay) Rooms() []*room.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Snapshot()
}

// apply runs one transition and delivers its output.
//
// Precondition: r.mu is held.
func (r *Relay) apply(ev room.Event) room.Result {
	current, _ := r.registry.Lookup(ev.RoomID)
	res := room.Step(current, ev, r.now())
	r.registry.Apply(ev.RoomID, res)

	// The joiner must be in the group before the first broadcast reaches it.
	if res.Seated != "" {
		r.transport.JoinGroup(res.Seated, ev.RoomID)
	}
	for _, m := range res.Outbound {
		switch m.Target {
		case room.ToRoom:
			r.transport.Broadcast(m.RoomID, m.Payload)
		case room.ToConn:
			r.transport.Unicast(m.ConnID, m.Payload)
		}
	}
	if res.Deleted {
		r.transport.DisbandGroup(ev.RoomID)
	}

	r.logTransition(ev, current.State(), res)
	return res
}

func (r *Relay) logTransition(ev room.Event, from room.State, res room.Result) {
	fields := []zap.Field{
		zap.String("event", ev.Kind.String()),
		zap.String("room_id", ev.RoomID),
		zap.String("conn_id", ev.ConnID),
		zap.Stringer("from", from),
		zap.Stringer("to", res.Next.State()),
	}
	switch {
	case errors.Is(res.Reason, room.ErrRoomFull), errors.Is(res.Reason, room.ErrAlreadyInRoom):
		r.logger.Info("join rejected", append(fields, zap.Error(res.Reason))...)
	case res.Reason != nil:
		r.logger.Debug("event dropped", append(fields, zap.Error(res.Reason))...)
	case res.Created, res.Deleted, from != res.Next.State():
		r.logger.Info("room transition", fields...)
	default:
		r.logger.Debug("event relayed", fields...)
	}
}
