package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomStore_CreateAndGet(t *testing.T) {
	s := NewRoomStore(time.Hour)
	host := "alice"

	room := s.Create("movie night", &host)
	assert.NotEmpty(t, room.ID)
	assert.Equal(t, "movie night", room.Name)
	require.NotNil(t, room.HostID)
	assert.Equal(t, "alice", *room.HostID)
	assert.Nil(t, room.MediaURL)
	assert.False(t, room.IsPlaying)

	got, ok := s.Get(room.ID)
	require.True(t, ok)
	assert.Equal(t, room, got)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestRoomStore_DistinctIDs(t *testing.T) {
	s := NewRoomStore(time.Hour)
	a := s.Create("a", nil)
	b := s.Create("b", nil)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRoomStore_UpdateMediaResetsPlayback(t *testing.T) {
	s := NewRoomStore(time.Hour)
	room := s.Create("r", nil)

	url := "https://example.com/v.mp4"
	got, ok := s.UpdateMedia(room.ID, &url)
	require.True(t, ok)
	require.NotNil(t, got.MediaURL)
	assert.Equal(t, url, *got.MediaURL)
	assert.False(t, got.IsPlaying)
	assert.Zero(t, got.CurrentTime)

	_, ok = s.UpdateMedia("missing", &url)
	assert.False(t, ok)
}

func TestRoomStore_Expiry(t *testing.T) {
	s := NewRoomStore(30 * time.Millisecond)
	room := s.Create("short", nil)

	_, ok := s.Get(room.ID)
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = s.Get(room.ID)
	assert.False(t, ok)
}
