package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/billboard-server/internal/policy"
)

func newAuthFixture(t *testing.T) (*AuthService, *userStoreStub, *sessionStoreStub, *mutableClock) {
	t.Helper()

	users := newUserStoreStub()
	sessions := newSessionStoreStub()
	clock := &mutableClock{now: testNow}
	manager := NewSessionManager(sessions, SessionManagerOptions{Now: clock.Now, Logger: discardLogger()})
	return NewAuthServiceWithLogger(users, manager, fakeVerify, discardLogger()), users, sessions, clock
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	t.Run("issues sessions for valid credentials", func(t *testing.T) {
		t.Parallel()

		svc, users, sessions, _ := newAuthFixture(t)
		alice := users.seed("alice", policy.Permissions{CreateBillboards: true})

		result, err := svc.Login(context.Background(), LoginParams{Username: " alice ", Password: "secret"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		if result.User.ID != alice.ID || result.Session.UserID != alice.ID {
			t.Fatalf("unexpected login result %#v", result)
		}
		if _, ok := sessions.sessions[result.Session.Token]; !ok {
			t.Fatalf("expected session to be stored")
		}
	})

	t.Run("rejects invalid credentials with sentinel error", func(t *testing.T) {
		t.Parallel()

		svc, users, sessions, _ := newAuthFixture(t)
		users.seed("alice", policy.Permissions{})

		for _, params := range []LoginParams{
			{Username: "alice", Password: "wrong"},
			{Username: "bob", Password: "secret"},
			{Username: "", Password: "secret"},
			{Username: "alice", Password: ""},
		} {
			if _, err := svc.Login(context.Background(), params); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("Login(%q) expected ErrInvalidCredentials, got %v", params.Username, err)
			}
		}
		if len(sessions.sessions) != 0 {
			t.Fatalf("failed logins must not create sessions")
		}
	})

	t.Run("propagates repository failures", func(t *testing.T) {
		t.Parallel()

		svc, users, _, _ := newAuthFixture(t)
		users.err = ErrStoreUnavailable

		if _, err := svc.Login(context.Background(), LoginParams{Username: "alice", Password: "secret"}); !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})

	t.Run("treats unusable stored hashes as invalid credentials", func(t *testing.T) {
		t.Parallel()

		users := newUserStoreStub()
		users.seed("alice", policy.Permissions{})
		manager := NewSessionManager(newSessionStoreStub(), SessionManagerOptions{Logger: discardLogger()})
		svc := NewAuthServiceWithLogger(users, manager, nil, discardLogger())

		if _, err := svc.Login(context.Background(), LoginParams{Username: "alice", Password: "secret"}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("returns principal with current permissions", func(t *testing.T) {
		t.Parallel()

		svc, users, _, _ := newAuthFixture(t)
		alice := users.seed("alice", policy.Permissions{})
		result, err := svc.Login(context.Background(), LoginParams{Username: "alice", Password: "secret"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}

		granted := policy.Permissions{ScheduleBillboards: true}
		if err := users.UpdatePermissions(context.Background(), alice.ID, granted); err != nil {
			t.Fatalf("UpdatePermissions returned error: %v", err)
		}

		got, err := svc.Authenticate(context.Background(), result.Session.Token)
		if err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		if got.UserID != alice.ID || got.Permissions != granted {
			t.Fatalf("unexpected principal %#v", got)
		}
	})

	t.Run("rejects expired sessions", func(t *testing.T) {
		t.Parallel()

		svc, users, _, clock := newAuthFixture(t)
		users.seed("alice", policy.Permissions{})
		result, err := svc.Login(context.Background(), LoginParams{Username: "alice", Password: "secret"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}

		clock.now = testNow.Add(24 * time.Hour)
		if err := svc.CheckSession(context.Background(), result.Session.Token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("rejects sessions whose user was deleted", func(t *testing.T) {
		t.Parallel()

		svc, users, _, _ := newAuthFixture(t)
		alice := users.seed("alice", policy.Permissions{})
		result, err := svc.Login(context.Background(), LoginParams{Username: "alice", Password: "secret"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		_ = users.DeleteUser(context.Background(), alice.ID)

		if _, err := svc.Authenticate(context.Background(), result.Session.Token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()

	svc, users, sessions, _ := newAuthFixture(t)
	users.seed("alice", policy.Permissions{})
	result, err := svc.Login(context.Background(), LoginParams{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	if err := svc.Logout(context.Background(), result.Session.Token); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if err := svc.Logout(context.Background(), result.Session.Token); err != nil {
		t.Fatalf("second Logout returned error: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Fatalf("expected session to be removed")
	}
	if err := svc.CheckSession(context.Background(), result.Session.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after logout, got %v", err)
	}
}
