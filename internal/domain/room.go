package domain

import "time"

type RoomID string

// Room is the metadata record served by the rooms REST API.
// Playback fields are a persisted hint only; the live timeline is
// whatever the host currently broadcasts over the relay.
type Room struct {
	ID          RoomID    `json:"id"`
	Name        string    `json:"name"`
	MediaURL    *string   `json:"media_url"`
	HostID      *string   `json:"host_id"`
	IsPlaying   bool      `json:"is_playing"`
	CurrentTime float64   `json:"current_time"`
	CreatedAt   time.Time `json:"created_at"`
}
