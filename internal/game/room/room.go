// Package room models a two-player Gomoku room and the state machine that
// drives it. Nothing in this package performs I/O; callers apply the
// returned messages through their own transport.
package room

import (
	"slices"
	"time"
)

// Capacity is the number of players a room seats.
const Capacity = 2

// Role is a player's stone color.
type Role string

const (
	RoleBlack Role = "black"
	RoleWhite Role = "white"
)

// Valid reports whether r is one of the two stone colors.
func (r Role) Valid() bool {
	return r == RoleBlack || r == RoleWhite
}

// RoleAt returns the role seated at the given join position.
//
// Postcondition: Returns (RoleBlack, true) for 0, (RoleWhite, true) for 1, and ("", false) otherwise.
func RoleAt(index int) (Role, bool) {
	switch index {
	case 0:
		return RoleBlack, true
	case 1:
		return RoleWhite, true
	default:
		return "", false
	}
}

// State is the lifecycle phase of a room.
type State int8

const (
	// StateAbsent means no room is registered under the id.
	StateAbsent State = iota
	// StateWaiting means one player has joined and the room awaits a second.
	StateWaiting
	// StateStarted means both seats are taken and moves are relayed.
	StateStarted
)

// String returns a human-readable representation of the State.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateWaiting:
		return "waiting"
	case StateStarted:
		return "started"
	default:
		return "unknown"
	}
}

// Room is the registry record for one game session.
//
// Invariant: len(Players) <= Capacity.
// Invariant: Started == (len(Players) == Capacity).
type Room struct {
	// ID is the client-supplied room label.
	ID string
	// Players holds member connection ids in join order; position determines role.
	Players []string
	// Started is set once the second player joins and never cleared.
	Started bool
	// CreatedAt is when the first player joined.
	CreatedAt time.Time
}

// New creates an empty room.
//
// Postcondition: Returns a room with no players that is not started.
func New(id string, now time.Time) *Room {
	return &Room{
		ID:        id,
		Players:   make([]string, 0, Capacity),
		CreatedAt: now,
	}
}

// State reports the lifecycle phase. A nil room is absent.
func (r *Room) State() State {
	switch {
	case r == nil:
		return StateAbsent
	case r.Started:
		return StateStarted
	default:
		return StateWaiting
	}
}

// Has reports whether connID is seated in the room.
func (r *Room) Has(connID string) bool {
	return r != nil && slices.Contains(r.Players, connID)
}

// RoleOf returns the role of a seated connection.
//
// Postcondition: Returns ("", false) when connID is not a member.
func (r *Room) RoleOf(connID string) (Role, bool) {
	if r == nil {
		return "", false
	}
	return RoleAt(slices.Index(r.Players, connID))
}

// Clone returns a deep copy so transitions never alias registry state.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = slices.Clone(r.Players)
	return &c
}
