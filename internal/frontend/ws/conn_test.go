package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestConnPushQueuesFrames(t *testing.T) {
	c := NewConn("c1", nil, ConnOptions{SendBuffer: 2})

	require.NoError(t, c.Push([]byte("a")))
	require.NoError(t, c.Push([]byte("b")))

	assert.Equal(t, []byte("a"), <-c.send)
	assert.Equal(t, []byte("b"), <-c.send)
}

func TestConnPushFullQueue(t *testing.T) {
	c := NewConn("c1", nil, ConnOptions{SendBuffer: 1})

	require.NoError(t, c.Push([]byte("a")))
	err := c.Push([]byte("b"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.False(t, c.IsClosed())
}

func TestConnPushAfterClose(t *testing.T) {
	c := NewConn("c1", nil, ConnOptions{})

	c.Close()
	assert.True(t, c.IsClosed())
	assert.ErrorIs(t, c.Push([]byte("a")), ErrConnClosed)
}

func TestConnCloseIdempotent(t *testing.T) {
	c := NewConn("c1", nil, ConnOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()

	_, ok := <-c.send
	assert.False(t, ok, "send channel must be closed")
}

func TestConnDefaultSendBuffer(t *testing.T) {
	c := NewConn("c1", nil, ConnOptions{})
	assert.Equal(t, 32, cap(c.send))
	assert.Equal(t, "c1", c.ID())
}

func TestPropertyConnQueueNeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 16).Draw(rt, "capacity")
		pushes := rapid.IntRange(0, 40).Draw(rt, "pushes")
		c := NewConn("c", nil, ConnOptions{SendBuffer: capacity})

		accepted := 0
		for i := 0; i < pushes; i++ {
			if c.Push([]byte{byte(i)}) == nil {
				accepted++
			}
		}
		if accepted != min(pushes, capacity) {
			rt.Fatalf("accepted %d of %d pushes with capacity %d", accepted, pushes, capacity)
		}
		if len(c.send) != accepted {
			rt.Fatalf("queue holds %d, accepted %d", len(c.send), accepted)
		}
	})
}
