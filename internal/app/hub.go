// Package app holds the relay's room registry and fan-out: it delivers
// what one client sends to the intended recipients in the same room
// and replays the room snapshot to joiners.
package app

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Rakamoosaka/kormek/internal/domain"
	"github.com/Rakamoosaka/kormek/internal/protocol"
)

var ErrNameTaken = errors.New("username already in room")

// MemberConn is the transport endpoint of one connected member.
// Owned by the adapter; the adapter must Close it.
type MemberConn interface {
	TrySend(data []byte) error
	Close()
}

type roomState struct {
	members        map[string]MemberConn
	meetingStarted bool
	chat           []domain.ChatEntry
}

// Hub is the in-memory registry of live rooms. Chat history and the
// meeting flag live only as long as the room has members; an emptied
// room is forgotten entirely.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*roomState
	policy Policy
}

func NewHub(policy Policy) *Hub {
	return &Hub{rooms: make(map[string]*roomState), policy: policy}
}

// Join registers a member and returns the INIT snapshot to replay.
func (h *Hub) Join(roomID, username string, conn MemberConn) (protocol.Init, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		room = &roomState{members: make(map[string]MemberConn)}
		h.rooms[roomID] = room
	}
	if _, taken := room.members[username]; taken {
		return protocol.Init{}, ErrNameTaken
	}
	room.members[username] = conn
	log.Info().Str("module", "app.hub").Str("room", roomID).Str("user", username).Msg("member joined")

	return protocol.Init{
		Type:           protocol.KindInit,
		Peers:          rosterLocked(room),
		MeetingStarted: room.meetingStarted,
		ChatHistory:    append([]domain.ChatEntry(nil), room.chat...),
	}, nil
}

// Leave removes a member and returns the remaining roster.
func (h *Hub) Leave(roomID, username string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	delete(room.members, username)
	log.Info().Str("module", "app.hub").Str("room", roomID).Str("user", username).Msg("member left")
	if len(room.members) == 0 {
		delete(h.rooms, roomID)
		return nil
	}
	return rosterLocked(room)
}

func (h *Hub) Roster(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[roomID]; ok {
		return rosterLocked(room)
	}
	return nil
}

func (h *Hub) AppendChat(roomID string, entry domain.ChatEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[roomID]; ok {
		room.chat = append(room.chat, entry)
	}
}

func (h *Hub) SetMeeting(roomID string, started bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[roomID]; ok {
		room.meetingStarted = started
	}
}

// Broadcast fans data out to every member except exclude. Members the
// policy decides to kick are removed and returned so the caller can
// announce their departure.
func (h *Hub) Broadcast(roomID string, data []byte, exclude string) (kicked []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	for name, conn := range room.members {
		if name == exclude {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			switch h.policy.OnBackpressure(roomID, name) {
			case KickMember:
				log.Warn().Str("module", "app.hub").Str("room", roomID).Str("user", name).Msg("kicking slow member")
				conn.Close()
				delete(room.members, name)
				kicked = append(kicked, name)
			case DropFrame, NoAction:
			}
		}
	}
	if len(room.members) == 0 {
		delete(h.rooms, roomID)
	}
	return kicked
}

// SendTo delivers data to one member. Unknown targets are dropped.
func (h *Hub) SendTo(roomID, target string, data []byte) bool {
	h.mu.RLock()
	conn, ok := h.rooms[roomID].lookup(target)
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if err := conn.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Str("room", roomID).Str("user", target).Msg("targeted send failed")
		return false
	}
	return true
}

func (r *roomState) lookup(name string) (MemberConn, bool) {
	if r == nil {
		return nil, false
	}
	conn, ok := r.members[name]
	return conn, ok
}

func rosterLocked(room *roomState) []string {
	out := make([]string, 0, len(room.members))
	for name := range room.members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
