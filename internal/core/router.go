package core

import (
	"encoding/json"
	"sync"

	"github.com/Rakamoosaka/kormek/internal/protocol"
	"github.com/rs/zerolog/log"
)

// SignalRouter fans inbound SIGNAL envelopes out to the negotiation
// layer. It routes by sender only and knows nothing about media
// semantics. Scoped to a single session: no process-wide registry.
type SignalRouter struct {
	mu      sync.RWMutex
	handler func(sender string, payload json.RawMessage)
}

// Bind sets the single downstream handler. A later Bind replaces it.
func (r *SignalRouter) Bind(fn func(sender string, payload json.RawMessage)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = fn
}

// Dispatch forwards one SIGNAL envelope. Envelopes without a sender or
// without a bound handler are dropped: both are ignorable, not errors.
func (r *SignalRouter) Dispatch(env protocol.Signal) {
	r.mu.RLock()
	fn := r.handler
	r.mu.RUnlock()

	if env.Sender == "" {
		log.Warn().Str("module", "core.router").Msg("signal without sender dropped")
		return
	}
	if fn == nil {
		return
	}
	fn(env.Sender, env.Payload)
}
