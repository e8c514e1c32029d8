package vault

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(c *fakeClock) *LoginLimiter {
	rl := NewLoginLimiter()
	rl.now = c.Now
	return rl
}

func TestLoginLimiter_AllowsBeforeThreshold(t *testing.T) {
	rl := newTestLimiter(newFakeClock())

	for i := 0; i < maxFailures-1; i++ {
		rl.recordFailure("alice")
		blocked, _ := rl.check("alice")
		assert.False(t, blocked, "should not block before reaching maxFailures")
	}
}

func TestLoginLimiter_BlocksAfterThreshold(t *testing.T) {
	rl := newTestLimiter(newFakeClock())

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("alice")
	}

	blocked, retryAfter := rl.check("alice")
	require.True(t, blocked, "should block after maxFailures")
	assert.Equal(t, baseLockout, retryAfter)

	blocked, _ = rl.check("bob")
	assert.False(t, blocked, "other usernames are unaffected")
}

func TestLoginLimiter_ExponentialBackoff(t *testing.T) {
	rl := newTestLimiter(newFakeClock())

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("alice")
	}
	_, first := rl.check("alice")

	rl.recordFailure("alice")
	_, second := rl.check("alice")
	assert.Equal(t, 2*first, second, "lockout should double")

	for i := 0; i < 10; i++ {
		rl.recordFailure("alice")
	}
	_, capped := rl.check("alice")
	assert.Equal(t, maxLockout, capped)
}

func TestLoginLimiter_LockoutExpires(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(clock)

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("alice")
	}
	blocked, _ := rl.check("alice")
	require.True(t, blocked)

	clock.Advance(baseLockout + time.Second)
	blocked, _ = rl.check("alice")
	assert.False(t, blocked)
}

func TestLoginLimiter_SuccessResetsCounter(t *testing.T) {
	rl := newTestLimiter(newFakeClock())

	for i := 0; i < maxFailures; i++ {
		rl.recordFailure("alice")
	}
	rl.recordSuccess("alice")

	blocked, _ := rl.check("alice")
	assert.False(t, blocked)

	rl.recordFailure("alice")
	blocked, _ = rl.check("alice")
	assert.False(t, blocked, "counter restarts from zero")
}

func TestLoginLimiter_SweepsExpiredAtThreshold(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(clock)

	for i := 0; i < sweepThreshold; i++ {
		rl.recordFailure(fmt.Sprintf("user-%d", i))
	}
	clock.Advance(attemptExpiry - time.Minute)
	rl.recordFailure("user-0")
	clock.Advance(2 * time.Minute)

	rl.recordFailure("newcomer")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.attempts, 2, "expired records are dropped once the table is full")
	assert.Contains(t, rl.attempts, "user-0")
	assert.Contains(t, rl.attempts, "newcomer")
}

func TestLoginLimiter_NoSweepBelowThreshold(t *testing.T) {
	clock := newFakeClock()
	rl := newTestLimiter(clock)

	rl.recordFailure("alice")
	clock.Advance(attemptExpiry + time.Minute)
	rl.recordFailure("bob")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Contains(t, rl.attempts, "alice")
	assert.Contains(t, rl.attempts, "bob")
}
