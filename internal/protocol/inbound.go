// Package protocol implements the relay's JSON wire format. Every frame is an
// envelope {"event": <name>, "data": <payload>}.
package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/cory-johannsen/gomoku-relay/internal/game/room"
)

// Inbound event names.
const (
	EventJoinRoom = "join_room"
	EventMakeMove = "make_move"
	EventGameOver = "game_over"
)

// MaxRoomIDLength bounds client-supplied room labels.
const MaxRoomIDLength = 128

var (
	// ErrMalformed marks frames that are not a valid envelope or carry a bad payload.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownEvent marks well-formed frames naming an event the relay does not handle.
	ErrUnknownEvent = errors.New("unknown event")
)

// Inbound is a decoded client event.
type Inbound struct {
	Event  string
	RoomID string
	X, Y   int
	Color  room.Role
	Winner string
}

// Decode parses a client frame.
//
// Postcondition: Returns a populated Inbound, or an error wrapping ErrMalformed or ErrUnknownEvent.
func Decode(frame []byte) (Inbound, error) {
	if !gjson.ValidBytes(frame) {
		return Inbound{}, fmt.Errorf("%w: invalid json", ErrMalformed)
	}
	event := gjson.GetBytes(frame, "event")
	if event.Type != gjson.String {
		return Inbound{}, fmt.Errorf("%w: missing event name", ErrMalformed)
	}
	data := gjson.GetBytes(frame, "data")

	in := Inbound{Event: event.Str}
	var err error
	switch in.Event {
	case EventJoinRoom:
		// join_room accepts either the bare room id or {"roomId": ...}.
		if data.Type == gjson.String {
			in.RoomID, err = roomID(data)
		} else {
			in.RoomID, err = roomID(data.Get("roomId"))
		}
	case EventMakeMove:
		if in.RoomID, err = roomID(data.Get("roomId")); err != nil {
			break
		}
		if in.X, err = integer(data.Get("x"), "x"); err != nil {
			break
		}
		if in.Y, err = integer(data.Get("y"), "y"); err != nil {
			break
		}
		in.Color = room.Role(data.Get("color").String())
		if !in.Color.Valid() {
			err = fmt.Errorf("%w: color must be black or white, got %q", ErrMalformed, in.Color)
		}
	case EventGameOver:
		if in.RoomID, err = roomID(data.Get("roomId")); err != nil {
			break
		}
		winner := data.Get("winner")
		if !winner.Exists() {
			err = fmt.Errorf("%w: missing winner", ErrMalformed)
			break
		}
		in.Winner = winner.String()
	default:
		return in, fmt.Errorf("%w: %q", ErrUnknownEvent, in.Event)
	}
	if err != nil {
		return Inbound{Event: in.Event}, err
	}
	return in, nil
}

func roomID(v gjson.Result) (string, error) {
	if v.Type != gjson.String || v.Str == "" {
		return "", fmt.Errorf("%w: roomId must be a non-empty string", ErrMalformed)
	}
	if len(v.Str) > MaxRoomIDLength {
		return "", fmt.Errorf("%w: roomId longer than %d bytes", ErrMalformed, MaxRoomIDLength)
	}
	return v.Str, nil
}

func integer(v gjson.Result, field string) (int, error) {
	if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrMalformed, field)
	}
	if v.Num > math.MaxInt32 || v.Num < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s out of range", ErrMalformed, field)
	}
	return int(v.Int()), nil
}

// EncodeJoin builds a join_room frame the way browser clients send it.
func EncodeJoin(roomID string) ([]byte, error) {
	return envelope(EventJoinRoom, func(b []byte) ([]byte, error) {
		return sjson.SetBytes(b, "data", roomID)
	})
}

// EncodeMove builds a make_move frame.
func EncodeMove(roomID string, x, y int, color room.Role) ([]byte, error) {
	return envelope(EventMakeMove, func(b []byte) ([]byte, error) {
		return setAll(b,
			field{"data.roomId", roomID},
			field{"data.x", x},
			field{"data.y", y},
			field{"data.color", string(color)},
		)
	})
}

// EncodeGameOver builds a game_over frame.
func EncodeGameOver(roomID, winner string) ([]byte, error) {
	return envelope(EventGameOver, func(b []byte) ([]byte, error) {
		return setAll(b,
			field{"data.roomId", roomID},
			field{"data.winner", winner},
		)
	})
}
