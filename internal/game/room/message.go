package room

// Payload is the body of an outbound event. Its event name is fixed by type.
type Payload interface {
	EventName() string
}

// PlayerAssigned tells the first joiner which color it plays.
type PlayerAssigned struct {
	Player Role
}

// StatusUpdate carries a human-readable room status line.
type StatusUpdate struct {
	Message string
}

// GameStart announces that both seats are filled.
type GameStart struct{}

// OpponentMove relays a placed stone to every room member.
type OpponentMove struct {
	X     int
	Y     int
	Color Role
}

// GameEnded announces the winner reported by a client.
type GameEnded struct {
	Winner string
}

// OpponentDisconnected tells the remaining member that the session is over.
type OpponentDisconnected struct{}

// RoomFull rejects a join to a room whose seats are taken.
type RoomFull struct {
	RoomID string
}

// AlreadyInRoom rejects a join from a connection seated in another room.
type AlreadyInRoom struct {
	RoomID string
}

// RoomExpired tells a waiting player that the room was evicted for inactivity.
type RoomExpired struct {
	RoomID string
}

func (PlayerAssigned) EventName() string       { return "player_assigned" }
func (StatusUpdate) EventName() string         { return "update_status" }
func (GameStart) EventName() string            { return "game_start" }
func (OpponentMove) EventName() string         { return "opponent_move" }
func (GameEnded) EventName() string            { return "game_ended" }
func (OpponentDisconnected) EventName() string { return "opponent_disconnected" }
func (RoomFull) EventName() string             { return "room_full" }
func (AlreadyInRoom) EventName() string        { return "already_in_room" }
func (RoomExpired) EventName() string          { return "room_expired" }

// Status lines sent with update_status.
const (
	StatusWaiting = "waiting for opponent"
	StatusStarted = "game started"
)

// Target selects who receives a Message.
type Target int8

const (
	// ToRoom fans the message out to the room's broadcast group.
	ToRoom Target = iota
	// ToConn delivers the message to a single connection.
	ToConn
)

// Message is one outbound delivery produced by a transition.
type Message struct {
	Target  Target
	RoomID  string
	ConnID  string
	Payload Payload
}

func broadcast(roomID string, p Payload) Message {
	return Message{Target: ToRoom, RoomID: roomID, Payload: p}
}

func unicast(connID string, p Payload) Message {
	return Message{Target: ToConn, ConnID: connID, Payload: p}
}
