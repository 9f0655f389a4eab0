package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChatRateLimiter_CapsWithinWindow(t *testing.T) {
	rl := NewChatRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("alice"), "message %d should pass", i)
	}
	assert.False(t, rl.Allow("alice"))

	// Other users have their own window.
	assert.True(t, rl.Allow("bob"))
}

func TestChatRateLimiter_WindowSlides(t *testing.T) {
	rl := NewChatRateLimiter(2, 50*time.Millisecond)

	assert.True(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("alice"))
}
