package quota

import (
	"testing"
	"time"
)

func newTestStore(limits Limits) (*MemoryStore, *time.Time) {
	s := NewMemoryStore(limits)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestMemoryStore_ConsumeUntilExhausted(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(Limits{UserLimit: 3, IPLimit: 2, Window: time.Hour})
	user := UserIdentity("alice")

	for i := 0; i < 3; i++ {
		if !s.Consume(user) {
			t.Fatalf("consume %d should succeed", i+1)
		}
	}
	if s.Consume(user) {
		t.Error("consume past the limit should fail")
	}
	if got := s.Remaining(user); got != 0 {
		t.Errorf("expected 0 remaining, got %d", got)
	}
}

func TestMemoryStore_SeparateLimitsPerKind(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(Limits{UserLimit: 5, IPLimit: 2, Window: time.Hour})

	if got := s.Remaining(UserIdentity("alice")); got != 5 {
		t.Errorf("expected user limit 5, got %d", got)
	}
	if got := s.Remaining(IPIdentity("203.0.113.9")); got != 2 {
		t.Errorf("expected ip limit 2, got %d", got)
	}
}

func TestMemoryStore_IdentitiesAreIndependent(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(Limits{UserLimit: 1, IPLimit: 1, Window: time.Hour})

	if !s.Consume(UserIdentity("alice")) {
		t.Fatal("alice's first consume should succeed")
	}
	if !s.Consume(UserIdentity("bob")) {
		t.Error("bob's allowance is separate from alice's")
	}
	if !s.Consume(IPIdentity("203.0.113.9")) {
		t.Error("ip allowance is separate from user allowances")
	}
}

func TestMemoryStore_WindowExpiry(t *testing.T) {
	t.Parallel()

	s, now := newTestStore(Limits{UserLimit: 1, IPLimit: 1, Window: time.Hour})
	user := UserIdentity("alice")

	if !s.Consume(user) {
		t.Fatal("first consume should succeed")
	}
	if s.Consume(user) {
		t.Fatal("second consume inside the window should fail")
	}

	*now = now.Add(61 * time.Minute)

	if got := s.Remaining(user); got != 1 {
		t.Errorf("expected allowance back after window, got %d", got)
	}
	if !s.Consume(user) {
		t.Error("consume after window expiry should succeed")
	}
}

func TestMemoryStore_PrunesEmptyBuckets(t *testing.T) {
	t.Parallel()

	s, now := newTestStore(Limits{UserLimit: 2, IPLimit: 2, Window: time.Hour})
	s.Consume(UserIdentity("alice"))

	*now = now.Add(2 * time.Hour)
	s.Remaining(UserIdentity("alice"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buckets) != 0 {
		t.Errorf("expected expired bucket to be dropped, got %d buckets", len(s.buckets))
	}
}
