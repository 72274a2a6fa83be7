package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryBackend_AllowsUpToLimitWithinWindow(t *testing.T) {
	t.Parallel()
	b := newMemoryBackend()

	for i := 0; i < 3; i++ {
		assert.True(t, b.allow("user-1", 3, time.Minute))
	}
	assert.False(t, b.allow("user-1", 3, time.Minute))
}

func TestMemoryBackend_ExpiresOldHitsOutsideWindow(t *testing.T) {
	t.Parallel()
	b := newMemoryBackend()

	assert.True(t, b.allow("user-1", 1, 20*time.Millisecond))
	assert.False(t, b.allow("user-1", 1, 20*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.allow("user-1", 1, 20*time.Millisecond))
}

func TestMemoryBackend_TracksKeysIndependently(t *testing.T) {
	t.Parallel()
	b := newMemoryBackend()

	assert.True(t, b.allow("user-1", 1, time.Minute))
	assert.False(t, b.allow("user-1", 1, time.Minute))
	assert.True(t, b.allow("user-2", 1, time.Minute))
}

func TestRateLimiter_Allow_DelegatesToBackend(t *testing.T) {
	t.Parallel()
	r := &RateLimiter{backend: newMemoryBackend(), limit: 2, window: time.Minute}

	assert.True(t, r.Allow("user-1"))
	assert.True(t, r.Allow("user-1"))
	assert.False(t, r.Allow("user-1"))
}

func TestNewInMemoryRateLimiter_UsesDefaults(t *testing.T) {
	t.Parallel()
	r := NewInMemoryRateLimiter()
	assert.Equal(t, defaultLimit, r.limit)
	assert.Equal(t, defaultWindow, r.window)
	assert.True(t, r.Allow("anyone"))
}
