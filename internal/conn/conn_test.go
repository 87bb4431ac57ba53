package conn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown(0)", State(0).String())
	assert.True(t, StateOpen.IsOpen())
	assert.False(t, StateClosed.IsOpen())
}

func TestInfo(t *testing.T) {
	info := &Info{ConnID: "conn_1", RemoteAddr: "127.0.0.1:1", State: StateOpen.String(), ConnectedAt: time.Now()}
	assert.False(t, info.HasPeer())
	assert.False(t, info.InRoom())

	info.PeerID = "alice"
	info.RoomID = "default"
	assert.True(t, info.HasPeer())
	assert.True(t, info.InRoom())
	assert.Contains(t, info.String(), "PeerID:alice")
}
