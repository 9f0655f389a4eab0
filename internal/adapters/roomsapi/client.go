// Package roomsapi consumes the rooms REST API: create and fetch room
// metadata and patch the media pointer.
package roomsapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carlmjohnson/requests"

	"github.com/Rakamoosaka/kormek/internal/domain"
)

type Client struct {
	base string
	http *http.Client
}

func New(base string) *Client {
	return &Client{base: base, http: http.DefaultClient}
}

// WithHTTPClient overrides the underlying http.Client (tests, timeouts).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

type createReq struct {
	Name   string  `json:"name"`
	HostID *string `json:"host_id,omitempty"`
}

func (c *Client) CreateRoom(ctx context.Context, name string, hostID *string) (*domain.Room, error) {
	var room domain.Room
	err := requests.URL(c.base).
		Client(c.http).
		Path("/api/rooms").
		BodyJSON(createReq{Name: name, HostID: hostID}).
		ToJSON(&room).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &room, nil
}

func (c *Client) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var room domain.Room
	err := requests.URL(c.base).
		Client(c.http).
		Pathf("/api/rooms/%s", id).
		ToJSON(&room).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	return &room, nil
}

type mediaReq struct {
	MediaURL *string `json:"media_url"`
}

// UpdateMedia points the room at a new URL (host action). The server
// resets the persisted playback hint to paused at zero.
func (c *Client) UpdateMedia(ctx context.Context, id domain.RoomID, mediaURL *string) (*domain.Room, error) {
	var room domain.Room
	err := requests.URL(c.base).
		Client(c.http).
		Pathf("/api/rooms/%s/media", id).
		Method(http.MethodPatch).
		BodyJSON(mediaReq{MediaURL: mediaURL}).
		ToJSON(&room).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("update room media %s: %w", id, err)
	}
	return &room, nil
}
