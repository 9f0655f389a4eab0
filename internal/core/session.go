package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Rakamoosaka/kormek/internal/domain"
	"github.com/Rakamoosaka/kormek/internal/protocol"
	"github.com/rs/zerolog/log"
)

type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateJoined
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// RoomSession is the aggregate state machine for one client in one
// room: membership, chat, meeting lifecycle and the media pointer.
// It is the only writer of those fields; every other component reads
// snapshots or requests mutations through its methods.
//
// Lifecycle: a session is created on entering a room and is dead after
// its channel closes. Rejoining means a fresh session; nothing survives
// except what the relay replays via INIT.
type RoomSession struct {
	selfName string
	isHost   bool

	mu             sync.Mutex
	state          SessionState
	ch             Channel
	peers          []string
	chat           []domain.ChatEntry
	meetingStarted bool
	media          domain.MediaPointer

	router   *SignalRouter
	onSync   func(protocol.SyncAction, float64)
	onRoster func([]string)
	onMedia  func(url string)
}

func NewRoomSession(selfName string, isHost bool) *RoomSession {
	return &RoomSession{
		selfName: selfName,
		isHost:   isHost,
		router:   &SignalRouter{},
	}
}

func (s *RoomSession) SelfName() string { return s.selfName }
func (s *RoomSession) IsHost() bool     { return s.isHost }

// Router exposes the session-scoped signal fan-out point.
func (s *RoomSession) Router() *SignalRouter { return s.router }

// OnSync is invoked for every SYNC a non-host applies, after the media
// pointer has been updated. Hosts never see it.
func (s *RoomSession) OnSync(fn func(protocol.SyncAction, float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSync = fn
}

// OnRoster is invoked with the post-INIT roster and after every
// PEER_JOINED / PEER_LEFT, self already excluded.
func (s *RoomSession) OnRoster(fn func([]string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRoster = fn
}

// OnMediaChange is invoked when an inbound MEDIA_CHANGE replaces the
// media URL.
func (s *RoomSession) OnMediaChange(fn func(url string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMedia = fn
}

// Attach hands the session its channel and moves it to connecting.
// The caller keeps pumping inbound frames into HandleFrame.
func (s *RoomSession) Attach(ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = ch
	s.state = StateConnecting
	log.Info().Str("module", "core.session").Str("self", s.selfName).Msg("channel attached")
}

// HandleFrame decodes and dispatches one inbound frame. Frames are
// processed strictly in arrival order; the channel adapter calls this
// from a single goroutine.
func (s *RoomSession) HandleFrame(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "core.session").Msg("bad frame dropped")
		return
	}
	s.handle(env)
}

func (s *RoomSession) handle(env any) {
	// Hooks run after the lock is released so downstream components may
	// call back into the session.
	var after []func()

	s.mu.Lock()
	switch m := env.(type) {
	case protocol.Init:
		if s.state != StateConnecting {
			break
		}
		s.state = StateJoined
		s.peers = s.withoutSelf(m.Peers)
		s.meetingStarted = m.MeetingStarted
		s.chat = append([]domain.ChatEntry(nil), m.ChatHistory...)
		log.Info().Str("module", "core.session").Str("self", s.selfName).
			Int("peers", len(s.peers)).Bool("meeting", s.meetingStarted).Msg("joined")
		if fn, roster := s.onRoster, s.rosterCopy(); fn != nil {
			after = append(after, func() { fn(roster) })
		}

	case protocol.Chat:
		if s.state != StateJoined {
			break
		}
		s.chat = append(s.chat, domain.ChatEntry{Sender: m.Sender, Text: m.Text})

	case protocol.Sync:
		if s.state != StateJoined || s.isHost {
			// Hosts are the source of SYNC, never a consumer.
			break
		}
		switch m.Action {
		case protocol.SyncPlay:
			s.media.Playing = true
		case protocol.SyncPause:
			s.media.Playing = false
		case protocol.SyncSeek:
			// play state untouched
		}
		s.media.PositionSeconds = m.CurrentTime
		if fn := s.onSync; fn != nil {
			action, t := m.Action, m.CurrentTime
			after = append(after, func() { fn(action, t) })
		}

	case protocol.PeerEvent:
		if s.state != StateJoined {
			break
		}
		// Full-roster snapshot, not a delta: a missed event cannot
		// leave the membership drifted.
		s.peers = s.withoutSelf(m.Peers)
		if fn, roster := s.onRoster, s.rosterCopy(); fn != nil {
			after = append(after, func() { fn(roster) })
		}

	case protocol.Signal:
		if s.state != StateJoined {
			break
		}
		sig := m
		after = append(after, func() { s.router.Dispatch(sig) })

	case protocol.Meeting:
		if s.state != StateJoined {
			break
		}
		s.meetingStarted = m.Action == protocol.MeetingStart

	case protocol.MediaChange:
		if s.state != StateJoined {
			break
		}
		url := m.MediaURL
		s.media.URL = &url
		if fn := s.onMedia; fn != nil {
			after = append(after, func() { fn(url) })
		}
	}
	s.mu.Unlock()

	for _, fn := range after {
		fn()
	}
}

// HandleClose marks the session terminally disconnected. There is no
// automatic reconnect; a new session must be created to rejoin.
func (s *RoomSession) HandleClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
	s.ch = nil
	log.Info().Str("module", "core.session").Str("self", s.selfName).Msg("channel closed")
}

// Leave closes the channel and clears all room state.
func (s *RoomSession) Leave() {
	s.mu.Lock()
	ch := s.ch
	s.ch = nil
	s.state = StateDisconnected
	s.peers = nil
	s.chat = nil
	s.meetingStarted = false
	s.media = domain.MediaPointer{}
	s.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
}

// --- outbound helpers -------------------------------------------------
// Each helper is a single apply-and-broadcast step under the session
// lock: local state and wire state cannot diverge in between.

// SyncPlay broadcasts PLAY at t. Host-only by caller discipline; the
// session does not verify host status.
func (s *RoomSession) SyncPlay(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media.Playing = true
	s.media.PositionSeconds = t
	s.sendLocked(protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncPlay, CurrentTime: t})
}

func (s *RoomSession) SyncPause(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media.Playing = false
	s.media.PositionSeconds = t
	s.sendLocked(protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncPause, CurrentTime: t})
}

func (s *RoomSession) SyncSeek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media.PositionSeconds = t
	s.sendLocked(protocol.Sync{Type: protocol.KindSync, Action: protocol.SyncSeek, CurrentTime: t})
}

func (s *RoomSession) SendChat(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(protocol.Chat{Type: protocol.KindChat, Text: text})
}

// SendSignal forwards an opaque negotiation payload to one peer.
func (s *RoomSession) SendSignal(target string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("signal payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(protocol.Signal{Type: protocol.KindSignal, Target: target, Payload: raw})
	return nil
}

func (s *RoomSession) StartMeeting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetingStarted = true
	s.sendLocked(protocol.Meeting{Type: protocol.KindMeeting, Action: protocol.MeetingStart})
}

func (s *RoomSession) EndMeeting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetingStarted = false
	s.sendLocked(protocol.Meeting{Type: protocol.KindMeeting, Action: protocol.MeetingEnd})
}

// ChangeMedia points the room at a new URL. The sender resets to
// paused-at-zero; receivers only replace the URL.
func (s *RoomSession) ChangeMedia(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = domain.MediaPointer{URL: &url}
	s.sendLocked(protocol.MediaChange{Type: protocol.KindMediaChange, MediaURL: url})
}

func (s *RoomSession) sendLocked(v any) {
	if s.ch == nil {
		return
	}
	if err := s.ch.Send(v); err != nil {
		log.Warn().Err(err).Str("module", "core.session").Msg("send failed")
	}
}

// --- snapshots --------------------------------------------------------

func (s *RoomSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *RoomSession) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterCopy()
}

func (s *RoomSession) ChatLog() []domain.ChatEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatEntry(nil), s.chat...)
}

func (s *RoomSession) MeetingStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meetingStarted
}

// Media returns the media pointer as one consistent value; Playing and
// PositionSeconds are never observed half-updated.
func (s *RoomSession) Media() domain.MediaPointer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}

func (s *RoomSession) rosterCopy() []string {
	return append([]string(nil), s.peers...)
}

func (s *RoomSession) withoutSelf(roster []string) []string {
	out := make([]string, 0, len(roster))
	for _, p := range roster {
		if p != s.selfName {
			out = append(out, p)
		}
	}
	return out
}
