package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleAt(t *testing.T) {
	role, ok := RoleAt(0)
	assert.True(t, ok)
	assert.Equal(t, RoleBlack, role)

	role, ok = RoleAt(1)
	assert.True(t, ok)
	assert.Equal(t, RoleWhite, role)

	for _, i := range []int{-1, 2, 5} {
		_, ok = RoleAt(i)
		assert.False(t, ok, "index %d", i)
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleBlack.Valid())
	assert.True(t, RoleWhite.Valid())
	assert.False(t, Role("red").Valid())
	assert.False(t, Role("").Valid())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "absent", StateAbsent.String())
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "started", StateStarted.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestNilRoom(t *testing.T) {
	var r *Room
	assert.Equal(t, StateAbsent, r.State())
	assert.False(t, r.Has("c1"))
	_, ok := r.RoleOf("c1")
	assert.False(t, ok)
	assert.Nil(t, r.Clone())
}

func TestRoleOf(t *testing.T) {
	r := New("roomA", t0)
	r.Players = append(r.Players, "c1", "c2")
	r.Started = true

	role, ok := r.RoleOf("c1")
	assert.True(t, ok)
	assert.Equal(t, RoleBlack, role)

	role, ok = r.RoleOf("c2")
	assert.True(t, ok)
	assert.Equal(t, RoleWhite, role)

	_, ok = r.RoleOf("c3")
	assert.False(t, ok)
}

func TestCloneDoesNotAlias(t *testing.T) {
	r := New("roomA", t0)
	r.Players = append(r.Players, "c1")

	c := r.Clone()
	c.Players = append(c.Players, "c2")
	c.Players[0] = "changed"

	assert.Equal(t, []string{"c1"}, r.Players)
	assert.Equal(t, "roomA", c.ID)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "join", KindJoin.String())
	assert.Equal(t, "move", KindMove.String())
	assert.Equal(t, "game_over", KindGameOver.String())
	assert.Equal(t, "disconnect", KindDisconnect.String())
	assert.Equal(t, "evict", KindEvict.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
