package domain

// MediaPointer is the last known authoritative timeline state.
// On a host it is locally authoritative; on everyone else it is a
// replica that only inbound SYNC and MEDIA_CHANGE traffic may move.
// Playing and PositionSeconds are always updated together.
type MediaPointer struct {
	URL             *string
	Playing         bool
	PositionSeconds float64
}
