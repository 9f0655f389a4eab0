package protocol

import (
	"encoding/json"
	"fmt"
)

// Inner payloads of a SIGNAL envelope. Opaque to everything except the
// two negotiating peers.
const (
	PayloadOffer     = "offer"
	PayloadAnswer    = "answer"
	PayloadCandidate = "ice-candidate"
)

// SessionDesc mirrors a browser RTCSessionDescriptionInit.
type SessionDesc struct {
	Type string `json:"type"` // "offer" or "answer"
	SDP  string `json:"sdp"`
}

type CandidateInit struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Candidate wraps a trickled ICE candidate.
type Candidate struct {
	Type      string        `json:"type"` // always "ice-candidate"
	Candidate CandidateInit `json:"candidate"`
}

// PayloadKind peeks at the inner type of a SIGNAL payload.
func PayloadKind(raw json.RawMessage) (string, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("signal payload probe: %w", err)
	}
	return probe.Type, nil
}
