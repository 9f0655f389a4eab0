// Package call maintains the full-mesh set of peer media sessions for
// one room: deterministic initiator election, offer/answer/candidate
// exchange over the room's signaling channel, remote-stream
// aggregation and lifecycle cleanup.
package call

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/Rakamoosaka/kormek/internal/adapters/rtc"
	"github.com/Rakamoosaka/kormek/internal/core"
	"github.com/Rakamoosaka/kormek/internal/protocol"
)

type NegotiationState int

const (
	NegotiationNone NegotiationState = iota
	NegotiationHaveLocalOffer
	NegotiationHaveRemoteOffer
	NegotiationConnected
	NegotiationClosed
)

func (s NegotiationState) String() string {
	switch s {
	case NegotiationHaveLocalOffer:
		return "have-local-offer"
	case NegotiationHaveRemoteOffer:
		return "have-remote-offer"
	case NegotiationConnected:
		return "connected"
	case NegotiationClosed:
		return "closed"
	default:
		return "none"
	}
}

// link is one negotiating session with one remote participant.
// Exclusively owned by the Manager.
type link struct {
	peer  string
	state NegotiationState
	conn  *rtc.PeerConn
}

// RemoteStream aggregates the tracks one peer sends us. A later stream
// from the same peer replaces the entry rather than duplicating it.
type RemoteStream struct {
	Peer     string
	StreamID string
	Tracks   []*webrtc.TrackRemote
}

// Manager owns the peer-link table and the local capture handle.
// Whether a link already exists (and whether it is stable) is the
// single guard checked synchronously before any asynchronous
// negotiation step; every continuation re-validates it before touching
// shared state, so a stale continuation degrades to a no-op.
type Manager struct {
	self    string
	session *core.RoomSession
	capture rtc.CaptureFunc
	cfg     webrtc.Configuration

	mu      sync.Mutex
	active  bool
	local   rtc.MediaSource
	links   map[string]*link
	remotes map[string]*RemoteStream
}

func NewManager(session *core.RoomSession, capture rtc.CaptureFunc, cfg webrtc.Configuration) *Manager {
	m := &Manager{
		self:    session.SelfName(),
		session: session,
		capture: capture,
		cfg:     cfg,
		links:   make(map[string]*link),
		remotes: make(map[string]*RemoteStream),
	}
	session.Router().Bind(m.HandleSignal)
	session.OnRoster(m.SyncRoster)
	return m
}

// Initiates reports whether this side creates the offer toward peer.
// The lexicographically earlier name initiates; both sides compute the
// same answer from the roster alone, so simultaneous offers (glare)
// cannot happen.
func (m *Manager) Initiates(peer string) bool {
	return m.self < peer
}

// StartCall acquires the capture device and negotiates toward the
// current roster. A capture failure aborts with no partial state.
func (m *Manager) StartCall(ctx context.Context) error {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	src, err := m.capture(ctx)
	if err != nil {
		return fmt.Errorf("capture device: %w", err)
	}

	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		_ = src.Close()
		return nil
	}
	m.local = src
	m.active = true
	m.mu.Unlock()

	log.Info().Str("module", "call").Str("self", m.self).Msg("call started")
	m.SyncRoster(m.session.Peers())
	return nil
}

// EndCall tears down every link and releases the capture device.
func (m *Manager) EndCall() {
	m.mu.Lock()
	for _, l := range m.links {
		l.state = NegotiationClosed
		if l.conn != nil {
			l.conn.Close()
		}
	}
	m.links = make(map[string]*link)
	m.remotes = make(map[string]*RemoteStream)
	local := m.local
	m.local = nil
	m.active = false
	m.mu.Unlock()

	if local != nil {
		_ = local.Close()
	}
	log.Info().Str("module", "call").Str("self", m.self).Msg("call ended")
}

// SyncRoster reconciles the link table against an authoritative roster
// snapshot: departed peers are torn down, new peers we initiate toward
// get an offer.
func (m *Manager) SyncRoster(peers []string) {
	m.mu.Lock()
	if !m.active || m.local == nil {
		m.mu.Unlock()
		return
	}

	present := make(map[string]bool, len(peers))
	for _, p := range peers {
		present[p] = true
	}
	for name, l := range m.links {
		if !present[name] {
			m.closeLinkLocked(l)
		}
	}

	var initiate []string
	for _, p := range peers {
		if p == m.self || !m.Initiates(p) {
			continue
		}
		if _, ok := m.links[p]; ok {
			continue
		}
		// Reserve the slot before the asynchronous steps begin.
		m.links[p] = &link{peer: p, state: NegotiationNone}
		initiate = append(initiate, p)
	}
	local := m.local
	m.mu.Unlock()

	for _, p := range initiate {
		m.offer(p, local)
	}
}

func (m *Manager) offer(peer string, local rtc.MediaSource) {
	conn, err := m.newConn(peer, local)
	if err != nil {
		log.Error().Err(err).Str("module", "call").Str("peer", peer).Msg("peer connection")
		m.dropReservation(peer)
		return
	}

	desc, err := conn.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "call").Str("peer", peer).Msg("create offer")
		conn.Close()
		m.dropReservation(peer)
		return
	}

	m.mu.Lock()
	l, ok := m.links[peer]
	if !ok || !m.active || l.conn != nil {
		// Roster moved on while we negotiated.
		m.mu.Unlock()
		conn.Close()
		return
	}
	l.conn = conn
	l.state = NegotiationHaveLocalOffer
	m.mu.Unlock()

	if err := m.session.SendSignal(peer, protocol.SessionDesc{Type: protocol.PayloadOffer, SDP: desc.SDP}); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("peer", peer).Msg("send offer")
	}
}

// HandleSignal routes one inbound negotiation payload from sender.
func (m *Manager) HandleSignal(sender string, raw json.RawMessage) {
	kind, err := protocol.PayloadKind(raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "call").Str("peer", sender).Msg("bad signal payload")
		return
	}

	switch kind {
	case protocol.PayloadOffer:
		m.handleOffer(sender, raw)
	case protocol.PayloadAnswer:
		m.handleAnswer(sender, raw)
	case protocol.PayloadCandidate:
		m.handleCandidate(sender, raw)
	default:
		log.Warn().Str("module", "call").Str("kind", kind).Msg("unknown signal payload")
	}
}

func (m *Manager) handleOffer(sender string, raw json.RawMessage) {
	var desc protocol.SessionDesc
	if err := json.Unmarshal(raw, &desc); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("peer", sender).Msg("bad offer")
		return
	}

	m.mu.Lock()
	if !m.active || m.local == nil {
		m.mu.Unlock()
		return
	}
	l := m.links[sender]
	if l != nil && l.conn != nil && !l.conn.Stable() {
		// Conflicting offer mid-exchange: last offer wins, the old
		// session is rebuilt from scratch.
		m.closeLinkLocked(l)
		l = nil
	}
	needConn := l == nil || l.conn == nil
	if l == nil {
		l = &link{peer: sender}
		m.links[sender] = l
	}
	l.state = NegotiationHaveRemoteOffer
	conn := l.conn
	local := m.local
	m.mu.Unlock()

	if needConn {
		fresh, err := m.newConn(sender, local)
		if err != nil {
			log.Error().Err(err).Str("module", "call").Str("peer", sender).Msg("peer connection")
			m.dropReservation(sender)
			return
		}
		m.mu.Lock()
		if m.links[sender] != l || !m.active {
			m.mu.Unlock()
			fresh.Close()
			return
		}
		l.conn = fresh
		m.mu.Unlock()
		conn = fresh
	}

	answer, err := conn.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  desc.SDP,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "call").Str("peer", sender).Msg("apply offer")
		m.teardownIfCurrent(sender, l)
		return
	}

	m.mu.Lock()
	if m.links[sender] != l {
		m.mu.Unlock()
		return
	}
	l.state = NegotiationConnected
	m.mu.Unlock()

	if err := m.session.SendSignal(sender, protocol.SessionDesc{Type: protocol.PayloadAnswer, SDP: answer.SDP}); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("peer", sender).Msg("send answer")
	}
}

func (m *Manager) handleAnswer(sender string, raw json.RawMessage) {
	var desc protocol.SessionDesc
	if err := json.Unmarshal(raw, &desc); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("peer", sender).Msg("bad answer")
		return
	}

	m.mu.Lock()
	l := m.links[sender]
	if l == nil || l.conn == nil || l.state != NegotiationHaveLocalOffer {
		m.mu.Unlock()
		log.Debug().Str("module", "call").Str("peer", sender).Msg("stale answer ignored")
		return
	}
	conn := l.conn
	m.mu.Unlock()

	if err := conn.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: desc.SDP}); err != nil {
		log.Error().Err(err).Str("module", "call").Str("peer", sender).Msg("apply answer")
		m.teardownIfCurrent(sender, l)
		return
	}

	m.mu.Lock()
	if m.links[sender] == l && l.state == NegotiationHaveLocalOffer {
		l.state = NegotiationConnected
	}
	m.mu.Unlock()
}

func (m *Manager) handleCandidate(sender string, raw json.RawMessage) {
	var c protocol.Candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("peer", sender).Msg("bad candidate")
		return
	}

	m.mu.Lock()
	l := m.links[sender]
	var conn *rtc.PeerConn
	if l != nil {
		conn = l.conn
	}
	m.mu.Unlock()

	if conn == nil {
		// No buffering: a candidate racing ahead of its session is lost.
		log.Warn().Str("module", "call").Str("peer", sender).Msg("candidate without link dropped")
		return
	}
	ci := webrtc.ICECandidateInit{
		Candidate:     c.Candidate.Candidate,
		SDPMid:        c.Candidate.SDPMid,
		SDPMLineIndex: c.Candidate.SDPMLineIndex,
	}
	if err := conn.AddICECandidate(ci); err != nil {
		log.Warn().Err(err).Str("module", "call").Str("peer", sender).Msg("add candidate")
	}
}

// --- plumbing ---------------------------------------------------------

func (m *Manager) newConn(peer string, local rtc.MediaSource) (*rtc.PeerConn, error) {
	conn, err := rtc.NewPeerConn(m.cfg, peer, local.Tracks())
	if err != nil {
		return nil, err
	}
	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		payload := protocol.Candidate{
			Type: protocol.PayloadCandidate,
			Candidate: protocol.CandidateInit{
				Candidate:     ci.Candidate,
				SDPMid:        ci.SDPMid,
				SDPMLineIndex: ci.SDPMLineIndex,
			},
		}
		if err := m.session.SendSignal(peer, payload); err != nil {
			log.Warn().Err(err).Str("module", "call").Str("peer", peer).Msg("send candidate")
		}
	})
	conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.addRemoteTrack(peer, conn, track)
	})
	conn.OnBroken(func() {
		m.handleBroken(peer, conn)
	})
	conn.Start()
	return conn, nil
}

func (m *Manager) addRemoteTrack(peer string, conn *rtc.PeerConn, track *webrtc.TrackRemote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.links[peer]
	if l == nil || l.conn != conn {
		return
	}
	rs := m.remotes[peer]
	if rs == nil || rs.StreamID != track.StreamID() {
		m.remotes[peer] = &RemoteStream{
			Peer:     peer,
			StreamID: track.StreamID(),
			Tracks:   []*webrtc.TrackRemote{track},
		}
		return
	}
	for _, t := range rs.Tracks {
		if t.ID() == track.ID() {
			return
		}
	}
	rs.Tracks = append(rs.Tracks, track)
}

// handleBroken treats a failed or disconnected link as a departure:
// teardown, no retry.
func (m *Manager) handleBroken(peer string, conn *rtc.PeerConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.links[peer]; l != nil && l.conn == conn {
		log.Info().Str("module", "call").Str("peer", peer).Msg("link broken")
		m.closeLinkLocked(l)
	}
}

func (m *Manager) teardownIfCurrent(peer string, expect *link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.links[peer] == expect {
		m.closeLinkLocked(expect)
	}
}

func (m *Manager) dropReservation(peer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.links[peer]; l != nil && l.conn == nil {
		delete(m.links, peer)
	}
}

func (m *Manager) closeLinkLocked(l *link) {
	l.state = NegotiationClosed
	if l.conn != nil {
		l.conn.Close()
	}
	delete(m.links, l.peer)
	delete(m.remotes, l.peer)
}

// --- snapshots --------------------------------------------------------

func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) LinkState(peer string) (NegotiationState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[peer]; ok {
		return l.state, true
	}
	return NegotiationNone, false
}

// RemoteStreams returns the aggregated remote media, ordered by peer
// name for stable presentation.
func (m *Manager) RemoteStreams() []RemoteStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RemoteStream, 0, len(m.remotes))
	for _, rs := range m.remotes {
		out = append(out, *rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Peer < out[j].Peer })
	return out
}
