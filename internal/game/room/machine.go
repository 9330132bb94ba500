package room

import (
	"errors"
	"time"
)

// Reasons a transition leaves the registry unchanged. They are informational:
// callers log them and never surface them to clients as failures.
var (
	ErrRoomAbsent    = errors.New("room does not exist")
	ErrNotStarted    = errors.New("room has not started")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyMember = errors.New("connection already seated in room")
	ErrAlreadyInRoom = errors.New("connection seated in another room")
	ErrNotMember     = errors.New("connection not seated in room")
	ErrNotWaiting    = errors.New("room is not waiting for a player")
)

// Kind identifies an event fed to the state machine.
type Kind int8

const (
	KindJoin Kind = iota + 1
	KindMove
	KindGameOver
	KindDisconnect
	KindEvict
)

// String returns the event kind for logging.
func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindMove:
		return "move"
	case KindGameOver:
		return "game_over"
	case KindDisconnect:
		return "disconnect"
	case KindEvict:
		return "evict"
	default:
		return "unknown"
	}
}

// Event is one input to Step.
type Event struct {
	Kind   Kind
	RoomID string
	ConnID string
	// MemberOf is the room the connection is already seated in, if any.
	// Only consulted for joins.
	MemberOf string
	X, Y     int
	Color    Role
	Winner   string
}

// Join seats connID in roomID.
func Join(roomID, connID, memberOf string) Event {
	return Event{Kind: KindJoin, RoomID: roomID, ConnID: connID, MemberOf: memberOf}
}

// Move relays a stone placement.
func Move(roomID, connID string, x, y int, color Role) Event {
	return Event{Kind: KindMove, RoomID: roomID, ConnID: connID, X: x, Y: y, Color: color}
}

// GameOver ends the session with the reported winner.
func GameOver(roomID, connID, winner string) Event {
	return Event{Kind: KindGameOver, RoomID: roomID, ConnID: connID, Winner: winner}
}

// Disconnect tears down the room connID was seated in.
func Disconnect(roomID, connID string) Event {
	return Event{Kind: KindDisconnect, RoomID: roomID, ConnID: connID}
}

// Evict removes a room that waited too long for its second player.
func Evict(roomID string) Event {
	return Event{Kind: KindEvict, RoomID: roomID}
}

// Result is the outcome of applying one event to one room.
type Result struct {
	// Next is the room after the transition; nil means absent.
	Next *Room
	// Created is set when the event brought the room into existence.
	Created bool
	// Deleted is set when an existing room was torn down.
	Deleted bool
	// Seated is the connection that must join the room's broadcast group
	// before Outbound is delivered. Empty when nobody was seated.
	Seated string
	// Outbound lists the deliveries in order.
	Outbound []Message
	// Reason explains why the event changed nothing, or is nil.
	Reason error
}

// Step applies ev to current and returns the next room and the messages to
// deliver. current is never modified.
//
// Precondition: current is nil or current.ID == ev.RoomID.
// Postcondition: Result.Next satisfies the Room invariants.
func Step(current *Room, ev Event, now time.Time) Result {
	switch ev.Kind {
	case KindJoin:
		return stepJoin(current, ev, now)
	case KindMove:
		return stepMove(current, ev)
	case KindGameOver:
		return stepGameOver(current, ev)
	case KindDisconnect:
		return stepDisconnect(current, ev)
	case KindEvict:
		return stepEvict(current, ev)
	default:
		return Result{Next: current, Reason: errors.New("unknown event kind")}
	}
}

func stepJoin(current *Room, ev Event, now time.Time) Result {
	if ev.MemberOf != "" && ev.MemberOf != ev.RoomID {
		return Result{
			Next:     current,
			Outbound: []Message{unicast(ev.ConnID, AlreadyInRoom{RoomID: ev.MemberOf})},
			Reason:   ErrAlreadyInRoom,
		}
	}

	switch current.State() {
	case StateAbsent:
		next := New(ev.RoomID, now)
		next.Players = append(next.Players, ev.ConnID)
		return Result{
			Next:    next,
			Created: true,
			Seated:  ev.ConnID,
			Outbound: []Message{
				unicast(ev.ConnID, PlayerAssigned{Player: RoleBlack}),
				broadcast(ev.RoomID, StatusUpdate{Message: StatusWaiting}),
			},
		}

	case StateWaiting:
		if current.Has(ev.ConnID) {
			return Result{Next: current, Reason: ErrAlreadyMember}
		}
		next := current.Clone()
		next.Players = append(next.Players, ev.ConnID)
		next.Started = true
		return Result{
			Next:   next,
			Seated: ev.ConnID,
			Outbound: []Message{
				broadcast(ev.RoomID, GameStart{}),
				broadcast(ev.RoomID, StatusUpdate{Message: StatusStarted}),
			},
		}

	default:
		if current.Has(ev.ConnID) {
			return Result{Next: current, Reason: ErrAlreadyMember}
		}
		return Result{
			Next:     current,
			Outbound: []Message{unicast(ev.ConnID, RoomFull{RoomID: ev.RoomID})},
			Reason:   ErrRoomFull,
		}
	}
}

func stepMove(current *Room, ev Event) Result {
	switch current.State() {
	case StateAbsent:
		return Result{Reason: ErrRoomAbsent}
	case StateWaiting:
		return Result{Next: current, Reason: ErrNotStarted}
	}
	return Result{
		Next: current,
		Outbound: []Message{
			broadcast(ev.RoomID, OpponentMove{X: ev.X, Y: ev.Y, Color: ev.Color}),
		},
	}
}

func stepGameOver(current *Room, ev Event) Result {
	// An absent room still gets the broadcast; its group is empty so nobody hears it.
	res := Result{
		Outbound: []Message{broadcast(ev.RoomID, GameEnded{Winner: ev.Winner})},
		Deleted:  current != nil,
	}
	if current == nil {
		res.Reason = ErrRoomAbsent
	}
	return res
}

func stepDisconnect(current *Room, ev Event) Result {
	if !current.Has(ev.ConnID) {
		return Result{Next: current, Reason: ErrNotMember}
	}
	return Result{
		Deleted:  true,
		Outbound: []Message{broadcast(ev.RoomID, OpponentDisconnected{})},
	}
}

func stepEvict(current *Room, ev Event) Result {
	switch current.State() {
	case StateAbsent:
		return Result{Reason: ErrRoomAbsent}
	case StateStarted:
		return Result{Next: current, Reason: ErrNotWaiting}
	}
	return Result{
		Deleted:  true,
		Outbound: []Message{broadcast(ev.RoomID, RoomExpired{RoomID: ev.RoomID})},
	}
}
