package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rakamoosaka/kormek/internal/domain"
)

// stubConn fails every send once failing is set.
type stubConn struct {
	name    string
	failing bool
	sent    [][]byte
	closed  bool
}

func (c *stubConn) TrySend(data []byte) error {
	if c.failing {
		return errors.New("queue full")
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *stubConn) Close() { c.closed = true }

func TestHub_JoinBuildsSnapshot(t *testing.T) {
	h := NewHub(SimplePolicy{})

	_, err := h.Join("r1", "alice", &stubConn{name: "alice"})
	require.NoError(t, err)
	h.AppendChat("r1", domain.ChatEntry{Sender: "alice", Text: "hi"})
	h.SetMeeting("r1", true)

	init, err := h.Join("r1", "bob", &stubConn{name: "bob"})
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, init.Peers, "roster is sorted and includes the joiner")
	assert.True(t, init.MeetingStarted)
	require.Len(t, init.ChatHistory, 1)
	assert.Equal(t, "hi", init.ChatHistory[0].Text)
}

func TestHub_JoinRejectsDuplicateName(t *testing.T) {
	h := NewHub(SimplePolicy{})

	_, err := h.Join("r1", "alice", &stubConn{})
	require.NoError(t, err)

	_, err = h.Join("r1", "alice", &stubConn{})
	assert.ErrorIs(t, err, ErrNameTaken)

	// Same name in a different room is fine.
	_, err = h.Join("r2", "alice", &stubConn{})
	assert.NoError(t, err)
}

func TestHub_LeaveForgetsEmptyRoom(t *testing.T) {
	h := NewHub(SimplePolicy{})
	_, err := h.Join("r1", "alice", &stubConn{})
	require.NoError(t, err)
	_, err = h.Join("r1", "bob", &stubConn{})
	require.NoError(t, err)
	h.AppendChat("r1", domain.ChatEntry{Sender: "alice", Text: "hi"})
	h.SetMeeting("r1", true)

	assert.Equal(t, []string{"bob"}, h.Leave("r1", "alice"))
	assert.Nil(t, h.Leave("r1", "bob"))

	// Rejoining an emptied room starts from a clean slate.
	init, err := h.Join("r1", "carol", &stubConn{})
	require.NoError(t, err)
	assert.Empty(t, init.ChatHistory)
	assert.False(t, init.MeetingStarted)
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	h := NewHub(SimplePolicy{})
	alice := &stubConn{name: "alice"}
	bob := &stubConn{name: "bob"}
	carol := &stubConn{name: "carol"}
	for name, conn := range map[string]*stubConn{"alice": alice, "bob": bob, "carol": carol} {
		_, err := h.Join("r1", name, conn)
		require.NoError(t, err)
	}

	kicked := h.Broadcast("r1", []byte(`{"type":"SYNC"}`), "alice")

	assert.Empty(t, kicked)
	assert.Empty(t, alice.sent)
	assert.Len(t, bob.sent, 1)
	assert.Len(t, carol.sent, 1)
}

func TestHub_BroadcastKicksOnBackpressure(t *testing.T) {
	h := NewHub(SimplePolicy{})
	alice := &stubConn{name: "alice"}
	bob := &stubConn{name: "bob", failing: true}
	_, err := h.Join("r1", "alice", alice)
	require.NoError(t, err)
	_, err = h.Join("r1", "bob", bob)
	require.NoError(t, err)

	kicked := h.Broadcast("r1", []byte(`x`), "")

	assert.Equal(t, []string{"bob"}, kicked)
	assert.True(t, bob.closed)
	assert.Equal(t, []string{"alice"}, h.Roster("r1"))
}

func TestHub_BroadcastNoActionPolicyKeepsMember(t *testing.T) {
	h := NewHub(policyFunc(func(string, string) BackpressureAction { return DropFrame }))
	bob := &stubConn{name: "bob", failing: true}
	_, err := h.Join("r1", "bob", bob)
	require.NoError(t, err)

	kicked := h.Broadcast("r1", []byte(`x`), "")

	assert.Empty(t, kicked)
	assert.False(t, bob.closed)
	assert.Equal(t, []string{"bob"}, h.Roster("r1"))
}

func TestHub_SendTo(t *testing.T) {
	h := NewHub(SimplePolicy{})
	bob := &stubConn{name: "bob"}
	_, err := h.Join("r1", "bob", bob)
	require.NoError(t, err)

	assert.True(t, h.SendTo("r1", "bob", []byte(`x`)))
	assert.Len(t, bob.sent, 1)

	assert.False(t, h.SendTo("r1", "ghost", []byte(`x`)))
	assert.False(t, h.SendTo("nope", "bob", []byte(`x`)))
}

type policyFunc func(roomID, username string) BackpressureAction

func (f policyFunc) OnBackpressure(roomID, username string) BackpressureAction {
	return f(roomID, username)
}
