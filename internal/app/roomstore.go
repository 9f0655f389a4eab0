package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/Rakamoosaka/kormek/internal/domain"
)

// RoomStore keeps room metadata for the REST API. Entries expire after
// ttl of no writes; live traffic does not depend on this store, it is
// only the create/fetch/patch surface.
type RoomStore struct {
	c *cache.Cache
}

func NewRoomStore(ttl time.Duration) *RoomStore {
	return &RoomStore{c: cache.New(ttl, 10*time.Minute)}
}

func (s *RoomStore) Create(name string, hostID *string) domain.Room {
	room := domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Name:      name,
		HostID:    hostID,
		CreatedAt: time.Now().UTC(),
	}
	s.c.SetDefault(string(room.ID), room)
	return room
}

func (s *RoomStore) Get(id domain.RoomID) (domain.Room, bool) {
	v, ok := s.c.Get(string(id))
	if !ok {
		return domain.Room{}, false
	}
	return v.(domain.Room), true
}

// UpdateMedia replaces the media URL and resets the persisted playback
// hint to paused at zero.
func (s *RoomStore) UpdateMedia(id domain.RoomID, mediaURL *string) (domain.Room, bool) {
	room, ok := s.Get(id)
	if !ok {
		return domain.Room{}, false
	}
	room.MediaURL = mediaURL
	room.IsPlaying = false
	room.CurrentTime = 0
	s.c.SetDefault(string(id), room)
	return room, true
}
