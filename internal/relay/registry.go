// Package relay owns the room registry and turns client events into room
// transitions and outbound deliveries.
package relay

import (
	"slices"
	"strings"
	"time"

	"github.com/cory-johannsen/gomoku-relay/internal/game/room"
)

// Registry maps room ids to rooms and connection ids to the room they sit in.
// It is not safe for concurrent use; Relay serializes access.
//
// Invariant: byConn[c] == id iff rooms[id].Has(c).
type Registry struct {
	rooms  map[string]*room.Room // roomID → room
	byConn map[string]string     // connID → roomID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]*room.Room),
		byConn: make(map[string]string),
	}
}

// Lookup returns the room registered under roomID.
//
// Postcondition: Returns (nil, false) when the room is absent.
func (g *Registry) Lookup(roomID string) (*room.Room, bool) {
	r, ok := g.rooms[roomID]
	return r, ok
}

// RoomOf returns the id of the room connID is seated in.
func (g *Registry) RoomOf(connID string) (string, bool) {
	id, ok := g.byConn[connID]
	return id, ok
}

// Apply stores the outcome of a transition on roomID.
//
// Postcondition: the room is removed when res.Deleted, replaced when res.Next is non-nil,
// and the connection index matches the stored room's members.
func (g *Registry) Apply(roomID string, res room.Result) {
	if old, ok := g.rooms[roomID]; ok {
		for _, c := range old.Players {
			delete(g.byConn, c)
		}
	}
	if res.Deleted || res.Next == nil {
		delete(g.rooms, roomID)
		return
	}
	g.rooms[roomID] = res.Next
	for _, c := range res.Next.Players {
		g.byConn[c] = roomID
	}
}

// Len returns the number of registered rooms.
func (g *Registry) Len() int {
	return len(g.rooms)
}

// Expired returns the ids of waiting rooms created before cutoff, sorted.
func (g *Registry) Expired(cutoff time.Time) []string {
	var ids []string
	for id, r := range g.rooms {
		if r.State() == room.StateWaiting && r.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Snapshot returns copies of all rooms ordered by id.
func (g *Registry) Snapshot() []*room.Room {
	out := make([]*room.Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b *room.Room) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
