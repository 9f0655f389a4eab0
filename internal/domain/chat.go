package domain

// ChatEntry is one line of the room chat. Immutable once appended.
type ChatEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}
