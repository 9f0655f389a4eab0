// Package protocol defines the JSON envelopes exchanged with the relay.
// Every frame is one JSON object with a top-level "type" discriminator.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rakamoosaka/kormek/internal/domain"
)

type Kind string

const (
	KindInit        Kind = "INIT"
	KindChat        Kind = "CHAT"
	KindSync        Kind = "SYNC"
	KindSignal      Kind = "SIGNAL"
	KindPeerJoined  Kind = "PEER_JOINED"
	KindPeerLeft    Kind = "PEER_LEFT"
	KindMeeting     Kind = "MEETING"
	KindMediaChange Kind = "MEDIA_CHANGE"
)

type SyncAction string

const (
	SyncPlay  SyncAction = "PLAY"
	SyncPause SyncAction = "PAUSE"
	SyncSeek  SyncAction = "SEEK"
)

type MeetingAction string

const (
	MeetingStart MeetingAction = "START"
	MeetingEnd   MeetingAction = "END"
)

var ErrUnknownKind = errors.New("unknown envelope kind")

// Init is sent by the relay exactly once, right after a client joins.
// It seeds the room snapshot: everything after it is incremental.
type Init struct {
	Type           Kind               `json:"type"`
	Peers          []string           `json:"peers"`
	MeetingStarted bool               `json:"meetingStarted"`
	ChatHistory    []domain.ChatEntry `json:"chatHistory"`
}

type Chat struct {
	Type   Kind   `json:"type"`
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text"`
}

type Sync struct {
	Type        Kind       `json:"type"`
	Action      SyncAction `json:"action"`
	CurrentTime float64    `json:"currentTime"`
}

// Signal carries an opaque negotiation payload between two peers.
// The relay only reads Target and stamps Sender.
type Signal struct {
	Type    Kind            `json:"type"`
	Sender  string          `json:"sender,omitempty"`
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"signal"`
}

// PeerEvent announces a join or leave together with the full roster.
// The roster is an authoritative snapshot, never a delta.
type PeerEvent struct {
	Type     Kind     `json:"type"`
	Username string   `json:"username"`
	Peers    []string `json:"peers"`
}

type Meeting struct {
	Type   Kind          `json:"type"`
	Action MeetingAction `json:"action"`
	Sender string        `json:"sender,omitempty"`
}

type MediaChange struct {
	Type     Kind   `json:"type"`
	MediaURL string `json:"mediaUrl"`
	Sender   string `json:"sender,omitempty"`
}

// Decode probes the discriminator and unmarshals the concrete envelope.
// The returned value is one of the struct types above, by value.
func Decode(data []byte) (any, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("envelope probe: %w", err)
	}

	var (
		v   any
		err error
	)
	switch probe.Type {
	case KindInit:
		var m Init
		if err = json.Unmarshal(data, &m); err == nil {
			v = m
		}
	case KindChat:
		var m Chat
		if err = json.Unmarshal(data, &m); err == nil {
			v = m
		}
	case KindSync:
		var m Sync
		if err = json.Unmarshal(data, &m); err == nil {
			v = m
		}
	case KindSignal:
		var m Signal
		if err = json.Unmarshal(data, &m); err == nil {
			v = m
		}
	case KindPeerJoined, KindPeerLeft:
		var m PeerEvent
		if err = json.Unmarshal(data, &m); err == nil {
			v = m
		}
	case KindMeeting:
		var m Meeting
		if err = json.Unmarshal(data, &m); err == nil {
			v = m
		}
	case KindMediaChange:
		var m MediaChange
		if err = json.Unmarshal(data, &m); err == nil {
			v = m
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, probe.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", probe.Type, err)
	}
	return v, nil
}

func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
