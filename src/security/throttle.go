package security

import (
	"sync"
	"time"
)

// LoginThrottler tracks failed login attempts per client identity
// (username or remote address) and locks the identity out once the
// attempt budget is exhausted. It is injected into the handlers that
// need it rather than living in package state, so tests can construct
// and reset one deterministically.
type LoginThrottler struct {
	mu          sync.Mutex
	attempts    map[string]*attemptState
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

type attemptState struct {
	count     int
	lockUntil time.Time
}

func NewLoginThrottler(maxAttempts int, lockout time.Duration) *LoginThrottler {
	return &LoginThrottler{
		attempts:    make(map[string]*attemptState),
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

// Allow reports whether the identity may attempt a login right now.
// An expired lock clears the identity's state entirely.
func (t *LoginThrottler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.attempts[key]
	if !ok {
		return true
	}
	if !state.lockUntil.IsZero() {
		if t.now().Before(state.lockUntil) {
			return false
		}
		delete(t.attempts, key)
		return true
	}
	return true
}

// RecordFailure counts one failed attempt and starts the lockout window
// when the budget is used up.
func (t *LoginThrottler) RecordFailure(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.attempts[key]
	if !ok {
		state = &attemptState{}
		t.attempts[key] = state
	}
	state.count++
	if state.count >= t.maxAttempts {
		state.lockUntil = t.now().Add(t.lockout)
	}
}

// RecordSuccess clears the identity's failure history.
func (t *LoginThrottler) RecordSuccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, key)
}

// Reset drops all tracked state.
func (t *LoginThrottler) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts = make(map[string]*attemptState)
}
