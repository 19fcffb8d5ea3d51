// Package quota enforces per-identity scan allowances over a rolling
// window. Identities are either authenticated users or client IPs; the
// two get separate limits.
package quota

import (
	"sync"
	"time"
)

// Limits configures how many scans an identity may start per window.
type Limits struct {
	// UserLimit applies to authenticated identities.
	UserLimit int

	// IPLimit applies to anonymous identities keyed by client IP. Kept
	// lower than UserLimit: an IP is cheap to rotate.
	IPLimit int

	// Window is the rolling period the limits cover.
	Window time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		UserLimit: 10,
		IPLimit:   3,
		Window:    24 * time.Hour,
	}
}

// Identity is a quota bucket key with its kind.
type Identity struct {
	Key  string
	User bool
}

// UserIdentity keys quota by an authenticated user id.
func UserIdentity(userID string) Identity {
	return Identity{Key: "user:" + userID, User: true}
}

// IPIdentity keys quota by client IP.
func IPIdentity(ip string) Identity {
	return Identity{Key: "ip:" + ip}
}

// Store tracks consumption per identity.
type Store interface {
	// Remaining reports how many scans the identity may still start in the
	// current window.
	Remaining(id Identity) int

	// Consume takes one scan from the identity's allowance. Returns false,
	// consuming nothing, when the allowance is exhausted.
	Consume(id Identity) bool
}

// MemoryStore is a mutex-guarded in-memory Store. Timestamps older than
// the window are pruned inline on access; there is no background sweeper.
type MemoryStore struct {
	limits Limits

	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewMemoryStore(limits Limits) *MemoryStore {
	if limits.UserLimit <= 0 {
		limits.UserLimit = DefaultLimits().UserLimit
	}
	if limits.IPLimit <= 0 {
		limits.IPLimit = DefaultLimits().IPLimit
	}
	if limits.Window <= 0 {
		limits.Window = DefaultLimits().Window
	}
	return &MemoryStore{
		limits:  limits,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) limitFor(id Identity) int {
	if id.User {
		return s.limits.UserLimit
	}
	return s.limits.IPLimit
}

func (s *MemoryStore) Remaining(id Identity) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := len(s.prune(id.Key))
	remaining := s.limitFor(id) - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (s *MemoryStore) Consume(id Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamps := s.prune(id.Key)
	if len(stamps) >= s.limitFor(id) {
		return false
	}
	s.buckets[id.Key] = append(stamps, s.now())
	return true
}

// prune drops expired timestamps for key and returns the live ones.
// Caller holds the mutex.
func (s *MemoryStore) prune(key string) []time.Time {
	cutoff := s.now().Add(-s.limits.Window)

	stamps := s.buckets[key]
	live := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}

	if len(live) == 0 {
		delete(s.buckets, key)
		return nil
	}
	s.buckets[key] = live
	return live
}
