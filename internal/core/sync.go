package core

import (
	"math"
	"sync"
	"time"

	"github.com/Rakamoosaka/kormek/internal/protocol"
	"github.com/rs/zerolog/log"
)

// DriftSeconds is how far a non-host's playback may sit from the
// host-announced position before it is forcibly corrected.
const DriftSeconds = 2.0

const (
	// settleWindow suppresses the player's own notifications after a
	// forced correction, so the correction is not re-broadcast as a
	// user gesture.
	settleWindow = 500 * time.Millisecond
	// seekWindow keeps a spurious pause emitted mid-scrub from going
	// out after the seek gesture ends.
	seekWindow = 300 * time.Millisecond
)

// Player is the one physical media element a client drives.
type Player interface {
	Position() float64
	Seek(pos float64)
	Play()
	Pause()
	Playing() bool
}

// Reconciler arbitrates between the local player and the room timeline.
// On a host the player's native events become broadcast intent; on a
// non-host inbound SYNC drives the player, with drift correction and
// echo suppression. With no player attached the reconciler is inert.
type Reconciler struct {
	session *RoomSession

	mu             sync.Mutex
	player         Player
	now            func() time.Time
	syncGuardUntil time.Time
	seeking        bool
	seekGuardUntil time.Time
}

func NewReconciler(session *RoomSession) *Reconciler {
	r := &Reconciler{session: session, now: time.Now}
	session.OnSync(r.applyRemote)
	return r
}

// SetPlayer attaches the media element. Pass nil when no media is
// loaded; the reconciler then neither emits nor consumes anything.
func (r *Reconciler) SetPlayer(p Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.player = p
}

// applyRemote runs for every SYNC a non-host accepts.
func (r *Reconciler) applyRemote(action protocol.SyncAction, announced float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.player
	if p == nil {
		return
	}

	switch action {
	case protocol.SyncPlay:
		p.Play()
	case protocol.SyncPause:
		p.Pause()
	case protocol.SyncSeek:
		// position only
	}

	drift := math.Abs(p.Position() - announced)
	if drift > DriftSeconds {
		// The forced seek will echo back through the player's own
		// event handlers; keep them quiet until it settles.
		r.syncGuardUntil = r.now().Add(settleWindow)
		p.Seek(announced)
		log.Debug().Str("module", "core.sync").
			Float64("drift", drift).Float64("to", announced).Msg("drift corrected")
	}
}

// HandlePlay is wired to the player's native play event.
func (r *Reconciler) HandlePlay() {
	r.mu.Lock()
	p := r.player
	guarded := r.guardedLocked()
	r.mu.Unlock()

	if p == nil || guarded || !r.session.IsHost() {
		return
	}
	r.session.SyncPlay(p.Position())
}

// HandlePause is wired to the player's native pause event. Pauses that
// fire in the middle of a seek gesture are part of the scrub, not host
// intent.
func (r *Reconciler) HandlePause() {
	r.mu.Lock()
	p := r.player
	suppressed := r.guardedLocked() || r.seekGuardedLocked()
	r.mu.Unlock()

	if p == nil || suppressed || !r.session.IsHost() {
		return
	}
	r.session.SyncPause(p.Position())
}

// HandleSeekStart marks an in-progress scrub.
func (r *Reconciler) HandleSeekStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeking = true
}

// HandleSeekEnd broadcasts the landing position. If the player is
// still rolling the PLAY is re-emitted too, so briefly desynced peers
// reacquire position and play state together.
func (r *Reconciler) HandleSeekEnd() {
	r.mu.Lock()
	p := r.player
	guarded := r.guardedLocked()
	r.seeking = false
	r.seekGuardUntil = r.now().Add(seekWindow)
	r.mu.Unlock()

	if p == nil || guarded || !r.session.IsHost() {
		return
	}
	t := p.Position()
	r.session.SyncSeek(t)
	if p.Playing() {
		r.session.SyncPlay(t)
	}
}

func (r *Reconciler) guardedLocked() bool {
	return r.now().Before(r.syncGuardUntil)
}

func (r *Reconciler) seekGuardedLocked() bool {
	return r.seeking || r.now().Before(r.seekGuardUntil)
}
