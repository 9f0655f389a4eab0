package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rakamoosaka/kormek/internal/protocol"
)

// fakePlayer records calls and holds an explicit position.
type fakePlayer struct {
	pos     float64
	playing bool
	seeks   []float64
	plays   int
	pauses  int
}

func (p *fakePlayer) Position() float64 { return p.pos }
func (p *fakePlayer) Playing() bool     { return p.playing }
func (p *fakePlayer) Play()             { p.playing = true; p.plays++ }
func (p *fakePlayer) Pause()            { p.playing = false; p.pauses++ }
func (p *fakePlayer) Seek(pos float64) {
	p.pos = pos
	p.seeks = append(p.seeks, pos)
}

// fixedClock lets tests move the reconciler's clock by hand.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestReconciler(t *testing.T, isHost bool) (*Reconciler, *RoomSession, *fakeChannel, *fakePlayer, *fixedClock) {
	t.Helper()
	s, ch := joinedSession(t, "alice", isHost)
	r := NewReconciler(s)
	clock := &fixedClock{t: time.Unix(1000, 0)}
	r.now = clock.now
	p := &fakePlayer{}
	r.SetPlayer(p)
	return r, s, ch, p, clock
}

func TestReconciler_DriftBeyondThresholdForcesSeek(t *testing.T) {
	_, s, _, p, _ := newTestReconciler(t, false)
	p.pos = 10

	s.handle(protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncPlay, CurrentTime: 15})

	assert.True(t, p.playing)
	assert.Equal(t, []float64{15}, p.seeks, "5s drift exceeds the 2s threshold")
	assert.Equal(t, float64(15), p.pos)
}

func TestReconciler_SmallDriftLeftAlone(t *testing.T) {
	_, s, _, p, _ := newTestReconciler(t, false)
	p.pos = 14

	s.handle(protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncPlay, CurrentTime: 15})

	assert.True(t, p.playing)
	assert.Empty(t, p.seeks, "1s drift is within tolerance")
}

func TestReconciler_RemotePauseAppliesPosition(t *testing.T) {
	_, s, _, p, _ := newTestReconciler(t, false)
	p.pos = 20
	p.playing = true

	s.handle(protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncPause, CurrentTime: 30})

	assert.False(t, p.playing)
	assert.Equal(t, 1, p.pauses)
	assert.Equal(t, []float64{30}, p.seeks)
}

func TestReconciler_CorrectionSuppressesEchoUntilSettled(t *testing.T) {
	r, s, ch, p, clock := newTestReconciler(t, false)
	p.pos = 0

	s.handle(protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncSeek, CurrentTime: 100})
	require.Equal(t, []float64{100}, p.seeks)

	// The forced seek fires the player's native events; inside the
	// settle window they must not be rebroadcast.
	r.HandlePlay()
	r.HandlePause()
	assert.Empty(t, ch.frames())

	// The guard also holds a host back (not that a host applies remote
	// sync, but the guard check itself is time-based).
	clock.advance(600 * time.Millisecond)
	r.HandlePlay()
	assert.Empty(t, ch.frames(), "non-host gestures never broadcast")
}

func TestReconciler_HostGesturesBroadcast(t *testing.T) {
	r, _, ch, p, _ := newTestReconciler(t, true)
	p.pos = 42

	r.HandlePlay()
	p.pos = 43
	r.HandlePause()

	frames := ch.frames()
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncPlay, CurrentTime: 42}, frames[0])
	assert.Equal(t, protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncPause, CurrentTime: 43}, frames[1])
}

func TestReconciler_SeekWhilePlayingReemitsPlay(t *testing.T) {
	r, _, ch, p, _ := newTestReconciler(t, true)
	p.pos = 60
	p.playing = true

	r.HandleSeekStart()
	p.pos = 120
	r.HandleSeekEnd()

	frames := ch.frames()
	require.Len(t, frames, 2)
	assert.Equal(t, protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncSeek, CurrentTime: 120}, frames[0])
	assert.Equal(t, protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncPlay, CurrentTime: 120}, frames[1])
}

func TestReconciler_SeekWhilePausedEmitsSeekOnly(t *testing.T) {
	r, _, ch, p, _ := newTestReconciler(t, true)
	p.pos = 60

	r.HandleSeekStart()
	p.pos = 120
	r.HandleSeekEnd()

	frames := ch.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncSeek, CurrentTime: 120}, frames[0])
}

func TestReconciler_PauseDuringScrubSuppressed(t *testing.T) {
	r, _, ch, p, clock := newTestReconciler(t, true)
	p.pos = 10
	p.playing = true

	r.HandleSeekStart()
	// Scrubbing makes the element fire pause; that is not host intent.
	r.HandlePause()
	assert.Empty(t, ch.frames())

	p.pos = 50
	r.HandleSeekEnd()
	require.Len(t, ch.frames(), 2) // SEEK + PLAY

	// Shortly after the seek lands the element may fire another pause.
	r.HandlePause()
	assert.Len(t, ch.frames(), 2)

	// Once the window passes a real pause goes out.
	clock.advance(400 * time.Millisecond)
	r.HandlePause()
	frames := ch.frames()
	require.Len(t, frames, 3)
	assert.Equal(t, protocol.SyncPause, frames[2].(protocol.Sync).Action)
}

func TestReconciler_InertWithoutPlayer(t *testing.T) {
	r, s, ch, _, _ := newTestReconciler(t, true)
	r.SetPlayer(nil)

	r.HandlePlay()
	r.HandlePause()
	r.HandleSeekStart()
	r.HandleSeekEnd()
	s.handle(protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncPlay, CurrentTime: 3})

	assert.Empty(t, ch.frames())
}
