package core

// Channel is the client's single connection to the relay.
// Owned exclusively by the RoomSession; one instance at a time.
// Send after close is a silent no-op, never an error: the wire is
// fire-and-forget and callers must not rely on delivery confirmation.
type Channel interface {
	Send(v any) error
	Close()
}
