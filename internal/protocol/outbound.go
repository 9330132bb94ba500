package protocol

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/cory-johannsen/gomoku-relay/internal/game/room"
)

type field struct {
	path  string
	value any
}

func setAll(b []byte, fields ...field) ([]byte, error) {
	var err error
	for _, f := range fields {
		if b, err = sjson.SetBytes(b, f.path, f.value); err != nil {
			return nil, fmt.Errorf("setting %s: %w", f.path, err)
		}
	}
	return b, nil
}

func envelope(event string, body func([]byte) ([]byte, error)) ([]byte, error) {
	b, err := sjson.SetBytes([]byte(`{}`), "event", event)
	if err != nil {
		return nil, fmt.Errorf("setting event: %w", err)
	}
	if body == nil {
		return b, nil
	}
	return body(b)
}

// Encode renders an outbound payload as a wire frame.
//
// Postcondition: Returns {"event": p.EventName(), "data": ...}; opponent_disconnected carries no data.
func Encode(p room.Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrMalformed)
	}
	var body func([]byte) ([]byte, error)
	switch v := p.(type) {
	case room.PlayerAssigned:
		body = func(b []byte) ([]byte, error) {
			return setAll(b, field{"data.player", string(v.Player)})
		}
	case room.StatusUpdate:
		body = func(b []byte) ([]byte, error) {
			return setAll(b, field{"data.message", v.Message})
		}
	case room.GameStart:
		body = func(b []byte) ([]byte, error) {
			return sjson.SetRawBytes(b, "data", []byte(`{}`))
		}
	case room.OpponentMove:
		body = func(b []byte) ([]byte, error) {
			return setAll(b,
				field{"data.x", v.X},
				field{"data.y", v.Y},
				field{"data.color", string(v.Color)},
			)
		}
	case room.GameEnded:
		// Clients read the winner as the bare payload.
		body = func(b []byte) ([]byte, error) {
			return setAll(b, field{"data", v.Winner})
		}
	case room.OpponentDisconnected:
	case room.RoomFull:
		body = roomNotice(v.RoomID)
	case room.AlreadyInRoom:
		body = roomNotice(v.RoomID)
	case room.RoomExpired:
		body = roomNotice(v.RoomID)
	default:
		return nil, fmt.Errorf("%w: no encoding for %T", ErrUnknownEvent, p)
	}
	frame, err := envelope(p.EventName(), body)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", p.EventName(), err)
	}
	return frame, nil
}

func roomNotice(roomID string) func([]byte) ([]byte, error) {
	return func(b []byte) ([]byte, error) {
		return setAll(b, field{"data.roomId", roomID})
	}
}

// EventOf returns the event name of a frame, or "" when it has none.
func EventOf(frame []byte) string {
	return gjson.GetBytes(frame, "event").String()
}

// DataOf returns the payload of a frame.
func DataOf(frame []byte) gjson.Result {
	return gjson.GetBytes(frame, "data")
}
