package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func seated(t *testing.T, roomID string, conns ...string) *Room {
	t.Helper()
	var r *Room
	for _, c := range conns {
		res := Step(r, Join(roomID, c, ""), t0)
		require.NoError(t, res.Reason)
		r = res.Next
	}
	return r
}

func TestStep_FirstJoinCreatesWaitingRoom(t *testing.T) {
	res := Step(nil, Join("roomA", "c1", ""), t0)

	require.NoError(t, res.Reason)
	assert.True(t, res.Created)
	assert.Equal(t, "c1", res.Seated)
	require.NotNil(t, res.Next)
	assert.Equal(t, StateWaiting, res.Next.State())
	assert.Equal(t, []string{"c1"}, res.Next.Players)
	assert.Equal(t, t0, res.Next.CreatedAt)

	assert.Equal(t, []Message{
		{Target: ToConn, ConnID: "c1", Payload: PlayerAssigned{Player: RoleBlack}},
		{Target: ToRoom, RoomID: "roomA", Payload: StatusUpdate{Message: StatusWaiting}},
	}, res.Outbound)
}

func TestStep_SecondJoinStartsGame(t *testing.T) {
	waiting := seated(t, "roomA", "c1")
	res := Step(waiting, Join("roomA", "c2", ""), t0.Add(time.Second))

	require.NoError(t, res.Reason)
	assert.False(t, res.Created)
	assert.Equal(t, "c2", res.Seated)
	assert.Equal(t, StateStarted, res.Next.State())
	assert.Equal(t, []string{"c1", "c2"}, res.Next.Players)
	assert.Equal(t, t0, res.Next.CreatedAt)

	role, ok := res.Next.RoleOf("c2")
	require.True(t, ok)
	assert.Equal(t, RoleWhite, role)

	assert.Equal(t, []Message{
		{Target: ToRoom, RoomID: "roomA", Payload: GameStart{}},
		{Target: ToRoom, RoomID: "roomA", Payload: StatusUpdate{Message: StatusStarted}},
	}, res.Outbound)

	// The input room is untouched.
	assert.Equal(t, []string{"c1"}, waiting.Players)
	assert.False(t, waiting.Started)
}

func TestStep_ThirdJoinRejected(t *testing.T) {
	started := seated(t, "roomA", "c1", "c2")
	res := Step(started, Join("roomA", "c3", ""), t0)

	assert.ErrorIs(t, res.Reason, ErrRoomFull)
	assert.Same(t, started, res.Next)
	assert.Empty(t, res.Seated)
	assert.Equal(t, []Message{
		{Target: ToConn, ConnID: "c3", Payload: RoomFull{RoomID: "roomA"}},
	}, res.Outbound)
	assert.Len(t, started.Players, Capacity)
}

func TestStep_RejoinSameRoomIsNoop(t *testing.T) {
	waiting := seated(t, "roomA", "c1")
	res := Step(waiting, Join("roomA", "c1", "roomA"), t0)
	assert.ErrorIs(t, res.Reason, ErrAlreadyMember)
	assert.Empty(t, res.Outbound)
	assert.Same(t, waiting, res.Next)

	started := seated(t, "roomB", "c3", "c4")
	res = Step(started, Join("roomB", "c4", "roomB"), t0)
	assert.ErrorIs(t, res.Reason, ErrAlreadyMember)
	assert.Empty(t, res.Outbound)
}

func TestStep_JoinWhileSeatedElsewhere(t *testing.T) {
	res := Step(nil, Join("roomB", "c1", "roomA"), t0)
	assert.ErrorIs(t, res.Reason, ErrAlreadyInRoom)
	assert.Nil(t, res.Next)
	assert.False(t, res.Created)
	assert.Equal(t, []Message{
		{Target: ToConn, ConnID: "c1", Payload: AlreadyInRoom{RoomID: "roomA"}},
	}, res.Outbound)
}

func TestStep_MoveBeforeStartDropped(t *testing.T) {
	waiting := seated(t, "roomB", "c3")
	res := Step(waiting, Move("roomB", "c3", 7, 7, RoleBlack), t0)
	assert.ErrorIs(t, res.Reason, ErrNotStarted)
	assert.Empty(t, res.Outbound)
	assert.Same(t, waiting, res.Next)
}

func TestStep_MoveOnAbsentRoomDropped(t *testing.T) {
	res := Step(nil, Move("ghost", "c1", 0, 0, RoleWhite), t0)
	assert.ErrorIs(t, res.Reason, ErrRoomAbsent)
	assert.Empty(t, res.Outbound)
	assert.Nil(t, res.Next)
}

func TestStep_MoveBroadcastToWholeRoom(t *testing.T) {
	started := seated(t, "roomA", "c1", "c2")
	res := Step(started, Move("roomA", "c1", 3, 4, RoleBlack), t0)
	require.NoError(t, res.Reason)
	assert.Same(t, started, res.Next)
	assert.Equal(t, []Message{
		{Target: ToRoom, RoomID: "roomA", Payload: OpponentMove{X: 3, Y: 4, Color: RoleBlack}},
	}, res.Outbound)
}

func TestStep_GameOverDeletesRoom(t *testing.T) {
	started := seated(t, "roomA", "c1", "c2")
	res := Step(started, GameOver("roomA", "c1", "black"), t0)
	require.NoError(t, res.Reason)
	assert.True(t, res.Deleted)
	assert.Nil(t, res.Next)
	assert.Equal(t, []Message{
		{Target: ToRoom, RoomID: "roomA", Payload: GameEnded{Winner: "black"}},
	}, res.Outbound)
}

func TestStep_GameOverOnAbsentRoomStillBroadcasts(t *testing.T) {
	res := Step(nil, GameOver("ghost", "c1", "white"), t0)
	assert.ErrorIs(t, res.Reason, ErrRoomAbsent)
	assert.False(t, res.Deleted)
	assert.Len(t, res.Outbound, 1)
}

func TestStep_DisconnectMember(t *testing.T) {
	for _, r := range []*Room{seated(t, "roomA", "c1"), seated(t, "roomA", "c1", "c2")} {
		res := Step(r, Disconnect("roomA", "c1"), t0)
		require.NoError(t, res.Reason)
		assert.True(t, res.Deleted)
		assert.Nil(t, res.Next)
		assert.Equal(t, []Message{
			{Target: ToRoom, RoomID: "roomA", Payload: OpponentDisconnected{}},
		}, res.Outbound)
	}
}

func TestStep_DisconnectNonMemberIsNoop(t *testing.T) {
	res := Step(nil, Disconnect("", "c9"), t0)
	assert.ErrorIs(t, res.Reason, ErrNotMember)
	assert.Empty(t, res.Outbound)
	assert.False(t, res.Deleted)

	r := seated(t, "roomA", "c1")
	res = Step(r, Disconnect("roomA", "c9"), t0)
	assert.ErrorIs(t, res.Reason, ErrNotMember)
	assert.Same(t, r, res.Next)
}

func TestStep_EvictOnlyWaitingRooms(t *testing.T) {
	res := Step(seated(t, "roomA", "c1"), Evict("roomA"), t0)
	require.NoError(t, res.Reason)
	assert.True(t, res.Deleted)
	assert.Equal(t, []Message{
		{Target: ToRoom, RoomID: "roomA", Payload: RoomExpired{RoomID: "roomA"}},
	}, res.Outbound)

	started := seated(t, "roomB", "c2", "c3")
	res = Step(started, Evict("roomB"), t0)
	assert.ErrorIs(t, res.Reason, ErrNotWaiting)
	assert.False(t, res.Deleted)
	assert.Same(t, started, res.Next)

	res = Step(nil, Evict("ghost"), t0)
	assert.ErrorIs(t, res.Reason, ErrRoomAbsent)
}

func TestStep_UnknownKind(t *testing.T) {
	r := seated(t, "roomA", "c1")
	res := Step(r, Event{RoomID: "roomA"}, t0)
	assert.Error(t, res.Reason)
	assert.Same(t, r, res.Next)
}

func TestPayloadEventNames(t *testing.T) {
	cases := map[string]Payload{
		"player_assigned":       PlayerAssigned{},
		"update_status":         StatusUpdate{},
		"game_start":            GameStart{},
		"opponent_move":         OpponentMove{},
		"game_ended":            GameEnded{},
		"opponent_disconnected": OpponentDisconnected{},
		"room_full":             RoomFull{},
		"already_in_room":       AlreadyInRoom{},
		"room_expired":          RoomExpired{},
	}
	for name, p := range cases {
		assert.Equal(t, name, p.EventName())
	}
}

// Property-based tests

func TestPropertyInvariantsHoldOverRandomEvents(t *testing.T) {
	conns := []string{"c1", "c2", "c3", "c4"}
	rapid.Check(t, func(t *rapid.T) {
		var r *Room
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			conn := rapid.SampledFrom(conns).Draw(t, fmt.Sprintf("conn%d", i))
			var ev Event
			switch rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("kind%d", i)) {
			case 0, 1:
				ev = Join("room", conn, "")
			case 2:
				ev = Move("room", conn, rapid.IntRange(0, 14).Draw(t, "x"), rapid.IntRange(0, 14).Draw(t, "y"), RoleBlack)
			case 3:
				ev = Disconnect("room", conn)
			case 4:
				ev = GameOver("room", conn, "white")
			}

			before := r.State()
			res := Step(r, ev, t0)
			r = res.Next

			if r != nil {
				if len(r.Players) > Capacity {
					t.Fatalf("room holds %d players", len(r.Players))
				}
				if r.Started != (len(r.Players) == Capacity) {
					t.Fatalf("started=%v with %d players", r.Started, len(r.Players))
				}
				seen := map[string]bool{}
				for _, p := range r.Players {
					if seen[p] {
						t.Fatalf("duplicate member %q", p)
					}
					seen[p] = true
				}
			}
			// A started room never reverts to waiting.
			if before == StateStarted && r.State() == StateWaiting {
				t.Fatalf("started room reverted to waiting")
			}
			for _, m := range res.Outbound {
				if _, ok := m.Payload.(OpponentMove); ok && before != StateStarted {
					t.Fatalf("move relayed in state %s", before)
				}
			}
		}
	})
}

func TestPropertyRolesFollowJoinOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		first := rapid.StringMatching(`[a-z]{4,8}`).Draw(t, "first")
		second := rapid.StringMatching(`[A-Z]{4,8}`).Draw(t, "second")

		res := Step(nil, Join("room", first, ""), t0)
		res = Step(res.Next, Join("room", second, ""), t0)

		if role, _ := res.Next.RoleOf(first); role != RoleBlack {
			t.Fatalf("first joiner got %q", role)
		}
		if role, _ := res.Next.RoleOf(second); role != RoleWhite {
			t.Fatalf("second joiner got %q", role)
		}
		starts := 0
		for _, m := range res.Outbound {
			if _, ok := m.Payload.(GameStart); ok {
				starts++
			}
		}
		if starts != 1 {
			t.Fatalf("expected one game_start, got %d", starts)
		}
	})
}
