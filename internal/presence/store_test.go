package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectDisconnect(t *testing.T) {
	s := NewStore(time.Minute)

	s.Connect(1)
	assert.True(t, s.IsOnline(1))

	s.Disconnect(1)
	assert.False(t, s.IsOnline(1))
}

func TestSecondConnectionKeepsUserOnline(t *testing.T) {
	s := NewStore(time.Minute)

	s.Connect(1)
	s.Connect(1)
	s.Disconnect(1)

	assert.True(t, s.IsOnline(1), "one tab closing must not mark the user offline")

	s.Disconnect(1)
	assert.False(t, s.IsOnline(1))
}

func TestDisconnectUnknownUserIsNoop(t *testing.T) {
	s := NewStore(time.Minute)
	s.Disconnect(42)
	assert.Empty(t, s.ListOnline())
}

func TestTTLExpiry(t *testing.T) {
	s := NewStore(time.Minute)
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	s.Connect(1)
	s.Connect(2)
	require.ElementsMatch(t, []int{1, 2}, s.ListOnline())

	// User 2 heartbeats just before the deadline; user 1 goes stale.
	current = current.Add(59 * time.Second)
	s.Heartbeat(2)

	current = current.Add(2 * time.Second)
	assert.Equal(t, []int{2}, s.ListOnline())
	assert.False(t, s.IsOnline(1))

	s.sweep()
	assert.Equal(t, []int{2}, s.ListOnline())
}

func TestHeartbeatWithoutEntryIsNoop(t *testing.T) {
	s := NewStore(time.Minute)
	s.Heartbeat(7)
	assert.False(t, s.IsOnline(7))
}
