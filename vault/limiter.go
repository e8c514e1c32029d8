package vault

import (
	"sync"
	"time"
)

// LoginLimiter tracks failed login attempts per username and enforces
// exponential backoff. Both password and TOTP failures count. Unknown
// usernames are tracked exactly like known ones.
type LoginLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
	now      func() time.Time
}

type attemptRecord struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

const (
	// maxFailures is the number of consecutive failures before lockout begins.
	maxFailures = 5
	// baseLockout is the initial lockout duration after maxFailures is reached.
	baseLockout = 1 * time.Minute
	// maxLockout caps the exponential backoff.
	maxLockout = 15 * time.Minute
	// attemptExpiry is how long after the last failure before the record is
	// garbage-collected.
	attemptExpiry = 1 * time.Hour
	// sweepThreshold is the table size at which recordFailure drops expired records.
	sweepThreshold = 1024
)

// NewLoginLimiter returns an empty limiter. Once handed to an Authenticator
// it follows that Authenticator's clock.
func NewLoginLimiter() *LoginLimiter {
	return &LoginLimiter{
		attempts: make(map[string]*attemptRecord),
	}
}

func (rl *LoginLimiter) clock() time.Time {
	if rl.now == nil {
		return time.Now()
	}
	return rl.now()
}

// check reports whether username is currently locked out and for how long.
func (rl *LoginLimiter) check(username string) (blocked bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[username]
	if !ok {
		return false, 0
	}
	now := rl.clock()
	if now.Sub(rec.lastFailure) > attemptExpiry {
		delete(rl.attempts, username)
		return false, 0
	}
	if now.Before(rec.lockedUntil) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

// recordFailure increments the failure counter and applies exponential
// backoff once maxFailures is reached.
func (rl *LoginLimiter) recordFailure(username string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock()
	rec, ok := rl.attempts[username]
	if !ok {
		if len(rl.attempts) >= sweepThreshold {
			rl.sweepLocked(now)
		}
		rec = &attemptRecord{}
		rl.attempts[username] = rec
	}
	rec.failures++
	rec.lastFailure = now

	if rec.failures >= maxFailures {
		// baseLockout * 2^(failures - maxFailures)
		shift := rec.failures - maxFailures
		lockout := baseLockout
		for i := 0; i < shift; i++ {
			lockout *= 2
			if lockout > maxLockout {
				lockout = maxLockout
				break
			}
		}
		rec.lockedUntil = now.Add(lockout)
	}
}

// recordSuccess resets the failure counter on a completed login.
func (rl *LoginLimiter) recordSuccess(username string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, username)
}

// sweepLocked drops records whose last failure is older than attemptExpiry.
func (rl *LoginLimiter) sweepLocked(now time.Time) {
	for id, rec := range rl.attempts {
		if now.Sub(rec.lastFailure) > attemptExpiry {
			delete(rl.attempts, id)
		}
	}
}
