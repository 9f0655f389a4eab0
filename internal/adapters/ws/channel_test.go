package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "http upgraded", base: "http://relay:8080", want: "ws://relay:8080/ws/r1/alice"},
		{name: "https upgraded", base: "https://relay", want: "wss://relay/ws/r1/alice"},
		{name: "ws passthrough", base: "ws://relay", want: "ws://relay/ws/r1/alice"},
		{name: "wss passthrough", base: "wss://relay", want: "wss://relay/ws/r1/alice"},
		{name: "trailing slash trimmed", base: "ws://relay/", want: "ws://relay/ws/r1/alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wsURL(tt.base, "r1", "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWSURL_EscapesPathSegments(t *testing.T) {
	got, err := wsURL("ws://relay", "room one", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "ws://relay/ws/room%20one/a%2Fb", got)
}

func TestWSURL_RejectsUnknownScheme(t *testing.T) {
	_, err := wsURL("ftp://relay", "r1", "alice")
	assert.Error(t, err)
}
