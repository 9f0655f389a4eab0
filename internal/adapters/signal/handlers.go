package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/Rakamoosaka/kormek/internal/domain"
	"github.com/Rakamoosaka/kormek/internal/protocol"
)

// dispatch applies the relay's fan-out rules to one client frame.
func (ctl *Controller) dispatch(roomID, username string, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", username).Msg("bad frame")
		return
	}

	switch m := env.(type) {
	case protocol.Chat:
		if !ctl.limiter.Allow(username) {
			log.Warn().Str("module", "signal").Str("user", username).Msg("chat rate limited")
			return
		}
		// Sender is stamped server-side; chat echoes back to the
		// sender so every client appends from the same stream.
		m.Sender = username
		ctl.Hub.AppendChat(roomID, domain.ChatEntry{Sender: username, Text: m.Text})
		ctl.broadcast(roomID, m, "")

	case protocol.Sync:
		// The host is the only expected sender; the relay does not
		// police that, it just never echoes SYNC back.
		ctl.broadcast(roomID, m, username)

	case protocol.Signal:
		if m.Target == "" {
			return
		}
		m.Sender = username
		out, err := protocol.Encode(m)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("signal marshal")
			return
		}
		if !ctl.Hub.SendTo(roomID, m.Target, out) {
			log.Warn().Str("module", "signal").Str("target", m.Target).Msg("signal target not in room")
		}

	case protocol.Meeting:
		m.Sender = username
		ctl.Hub.SetMeeting(roomID, m.Action == protocol.MeetingStart)
		ctl.broadcast(roomID, m, "")

	case protocol.MediaChange:
		m.Sender = username
		ctl.broadcast(roomID, m, username)

	default:
		// INIT and PEER events are relay-origin only.
		log.Warn().Str("module", "signal").Str("user", username).Msg("unexpected client envelope")
	}
}
