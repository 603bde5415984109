package application

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

type mutableClock struct {
	now time.Time
}

func (c *mutableClock) Now() time.Time { return c.now }

func TestSessionManager_CreateSession(t *testing.T) {
	t.Parallel()

	t.Run("issues hex tokens expiring after the ttl", func(t *testing.T) {
		t.Parallel()

		store := newSessionStoreStub()
		manager := NewSessionManager(store, SessionManagerOptions{
			Now:    func() time.Time { return testNow },
			Logger: discardLogger(),
		})

		session, err := manager.CreateSession(context.Background(), 7)
		if err != nil {
			t.Fatalf("CreateSession returned error: %v", err)
		}
		if !hexToken.MatchString(session.Token) {
			t.Fatalf("expected 64 hex characters, got %q", session.Token)
		}
		if session.UserID != 7 || !session.ExpiresAt.Equal(testNow.Add(24*time.Hour)) {
			t.Fatalf("unexpected session %#v", session)
		}
		if _, ok := store.sessions[session.Token]; !ok {
			t.Fatalf("expected session to be persisted")
		}
	})

	t.Run("tokens depend on fresh randomness", func(t *testing.T) {
		t.Parallel()

		manager := NewSessionManager(newSessionStoreStub(), SessionManagerOptions{Logger: discardLogger()})
		first, err := manager.GenerateToken(testNow)
		if err != nil {
			t.Fatalf("GenerateToken returned error: %v", err)
		}
		second, err := manager.GenerateToken(testNow)
		if err != nil {
			t.Fatalf("GenerateToken returned error: %v", err)
		}
		if first == second {
			t.Fatalf("expected distinct tokens for the same instant")
		}

		fixed := NewSessionManager(nil, SessionManagerOptions{Random: bytes.NewReader(make([]byte, 40))})
		a, _ := fixed.GenerateToken(testNow)
		b, _ := fixed.GenerateToken(testNow)
		if a != b {
			t.Fatalf("expected identical input to produce identical digests")
		}
	})

	t.Run("fails when entropy is unavailable", func(t *testing.T) {
		t.Parallel()

		manager := NewSessionManager(newSessionStoreStub(), SessionManagerOptions{
			Random: bytes.NewReader(nil),
			Logger: discardLogger(),
		})
		if _, err := manager.CreateSession(context.Background(), 1); err == nil {
			t.Fatalf("expected error when the random source is exhausted")
		}
	})

	t.Run("propagates store failures", func(t *testing.T) {
		t.Parallel()

		store := newSessionStoreStub()
		store.err = ErrStoreUnavailable
		manager := NewSessionManager(store, SessionManagerOptions{Logger: discardLogger()})
		if _, err := manager.CreateSession(context.Background(), 1); !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}

func TestSessionManager_Validate(t *testing.T) {
	t.Parallel()

	t.Run("honours tokens until the ttl elapses", func(t *testing.T) {
		t.Parallel()

		clock := &mutableClock{now: testNow}
		store := newSessionStoreStub()
		manager := NewSessionManager(store, SessionManagerOptions{Now: clock.Now, Logger: discardLogger()})

		session, err := manager.CreateSession(context.Background(), 3)
		if err != nil {
			t.Fatalf("CreateSession returned error: %v", err)
		}

		clock.now = testNow.Add(23*time.Hour + 59*time.Minute)
		userID, err := manager.Validate(context.Background(), session.Token)
		if err != nil || userID != 3 {
			t.Fatalf("expected token to be valid at 23h59m, got %d, %v", userID, err)
		}

		clock.now = testNow.Add(24 * time.Hour)
		if _, err := manager.Validate(context.Background(), session.Token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated at 24h, got %v", err)
		}
		if _, ok := store.sessions[session.Token]; ok {
			t.Fatalf("expected expired session to be purged")
		}
	})

	t.Run("purges before looking up and reports the count", func(t *testing.T) {
		t.Parallel()

		store := newSessionStoreStub()
		store.sessions["old"] = Session{Token: "old", UserID: 1, ExpiresAt: testNow.Add(-time.Minute)}
		store.sessions["live"] = Session{Token: "live", UserID: 2, ExpiresAt: testNow.Add(time.Minute)}

		var purged int64
		manager := NewSessionManager(store, SessionManagerOptions{
			Now:     func() time.Time { return testNow },
			Logger:  discardLogger(),
			OnPurge: func(removed int64) { purged += removed },
		})

		if userID, err := manager.Validate(context.Background(), "live"); err != nil || userID != 2 {
			t.Fatalf("expected live session to validate, got %d, %v", userID, err)
		}
		if purged != 1 || len(store.purges) != 1 || !store.purges[0].Equal(testNow) {
			t.Fatalf("expected one purge at the current instant, got %d removed, purges %v", purged, store.purges)
		}
	})

	t.Run("rejects empty and unknown tokens", func(t *testing.T) {
		t.Parallel()

		store := newSessionStoreStub()
		manager := NewSessionManager(store, SessionManagerOptions{Logger: discardLogger()})

		if _, err := manager.Validate(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated for empty token, got %v", err)
		}
		if len(store.purges) != 0 {
			t.Fatalf("empty tokens should not reach the store")
		}
		if _, err := manager.Validate(context.Background(), "missing"); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated for unknown token, got %v", err)
		}
	})

	t.Run("propagates store failures", func(t *testing.T) {
		t.Parallel()

		store := newSessionStoreStub()
		store.err = ErrStoreUnavailable
		manager := NewSessionManager(store, SessionManagerOptions{Logger: discardLogger()})

		_, err := manager.Validate(context.Background(), "token")
		if !errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected store failure to surface unchanged, got %v", err)
		}
	})
}

func TestSessionManager_Invalidate(t *testing.T) {
	t.Parallel()

	store := newSessionStoreStub()
	manager := NewSessionManager(store, SessionManagerOptions{Now: func() time.Time { return testNow }, Logger: discardLogger()})

	session, err := manager.CreateSession(context.Background(), 1)
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := manager.Invalidate(context.Background(), session.Token); err != nil {
			t.Fatalf("Invalidate call %d returned error: %v", i+1, err)
		}
	}
	if _, err := manager.Validate(context.Background(), session.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}
