package usecase

import (
	"sync"
	"time"
)

const (
	defaultMaxAttempts     = 5
	defaultLockoutDuration = 15 * time.Minute
)

type attemptEntry struct {
	failures    int
	lockedUntil time.Time
	lastFailure time.Time
}

func (e *attemptEntry) lockoutExpired(now time.Time) bool {
	return !e.lockedUntil.IsZero() && now.After(e.lockedUntil)
}

// LoginThrottle bounds brute-force guessing per client identifier. State is
// held in process memory only and resets on restart. All methods are safe
// for concurrent use from request goroutines.
type LoginThrottle struct {
	mu          sync.Mutex
	entries     map[string]*attemptEntry
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

// NewLoginThrottle constructs a throttle with the supplied limits. Zero or
// negative values fall back to 5 attempts and a 15 minute lockout.
func NewLoginThrottle(maxAttempts int, lockout time.Duration) *LoginThrottle {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = defaultLockoutDuration
	}
	return &LoginThrottle{
		entries:     make(map[string]*attemptEntry),
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (t *LoginThrottle) WithClock(now func() time.Time) *LoginThrottle {
	if now != nil {
		t.now = now
	}
	return t
}

// IsAllowed reports whether the client may attempt a login. Reading an
// entry whose lockout window has elapsed clears it as a side effect.
func (t *LoginThrottle) IsAllowed(clientKey string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[clientKey]
	if !ok {
		return true
	}

	if entry.lockoutExpired(t.now()) {
		delete(t.entries, clientKey)
		return true
	}

	return entry.failures < t.maxAttempts
}

// RecordFailure increments the failure counter for the client. The counter
// is capped at the attempt limit; the lockout window starts exactly when
// the limit is reached. Returns the current failure count and whether this
// call engaged the lockout.
func (t *LoginThrottle) RecordFailure(clientKey string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	entry, ok := t.entries[clientKey]
	if ok && entry.lockoutExpired(now) {
		delete(t.entries, clientKey)
		ok = false
	}
	if !ok {
		entry = &attemptEntry{}
		t.entries[clientKey] = entry
	}

	lockedNow := false
	if entry.failures < t.maxAttempts {
		entry.failures++
		if entry.failures == t.maxAttempts {
			entry.lockedUntil = now.Add(t.lockout)
			lockedNow = true
		}
	}
	entry.lastFailure = now

	return entry.failures, lockedNow
}

// RecordSuccess clears the client's entry entirely.
func (t *LoginThrottle) RecordSuccess(clientKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, clientKey)
}

// LockedUntil returns the end of the client's lockout window, if any.
func (t *LoginThrottle) LockedUntil(clientKey string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[clientKey]
	if !ok || entry.lockedUntil.IsZero() {
		return time.Time{}, false
	}
	return entry.lockedUntil, true
}

// CleanupStale drops entries whose lockout has elapsed and non-locked
// entries whose last failure is older than the supplied age. Run
// periodically so abandoned counters do not accumulate.
func (t *LoginThrottle) CleanupStale(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for key, entry := range t.entries {
		if entry.lockoutExpired(now) || (entry.lockedUntil.IsZero() && now.Sub(entry.lastFailure) > maxAge) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked client keys.
func (t *LoginThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
