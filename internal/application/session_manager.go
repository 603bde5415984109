package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/zeebo/blake3"
)

// DefaultSessionTTL is the lifetime of a session when none is configured.
const DefaultSessionTTL = 24 * time.Hour

// tokenEntropyBytes is the number of random bytes mixed into every session token.
const tokenEntropyBytes = 20

// SessionStore captures the persistence interactions for issued sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) (int64, error)
}

// SessionManagerOptions tunes a SessionManager. Zero values select defaults.
type SessionManagerOptions struct {
	TTL    time.Duration
	Now    func() time.Time
	Random io.Reader
	Logger *slog.Logger
	// OnPurge is called with the number of expired sessions removed by each sweep.
	OnPurge func(removed int64)
}

// SessionManager issues, validates and revokes session tokens.
type SessionManager struct {
	store   SessionStore
	ttl     time.Duration
	now     func() time.Time
	random  io.Reader
	logger  *slog.Logger
	onPurge func(int64)
}

// NewSessionManager constructs a SessionManager backed by store.
func NewSessionManager(store SessionStore, opts SessionManagerOptions) *SessionManager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Random == nil {
		opts.Random = rand.Reader
	}
	return &SessionManager{
		store:   store,
		ttl:     opts.TTL,
		now:     opts.Now,
		random:  opts.Random,
		logger:  defaultLogger(opts.Logger),
		onPurge: opts.OnPurge,
	}
}

// TTL returns the lifetime given to new sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// GenerateToken derives a 64 character hex token from the issue time and fresh randomness.
func (m *SessionManager) GenerateToken(issuedAt time.Time) (string, error) {
	entropy := make([]byte, tokenEntropyBytes)
	if _, err := io.ReadFull(m.random, entropy); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}

	seed := strconv.AppendInt(nil, issuedAt.UnixNano(), 10)
	seed = append(seed, entropy...)
	digest := blake3.Sum256(seed)
	return hex.EncodeToString(digest[:]), nil
}

// CreateSession issues and stores a new session for userID.
func (m *SessionManager) CreateSession(ctx context.Context, userID int64) (session Session, err error) {
	if m == nil || m.store == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	logger := serviceLogger(ctx, m.logger, "SessionManager", "CreateSession", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session created", "expires_at", session.ExpiresAt)
	}()

	now := m.now()
	token, err := m.GenerateToken(now)
	if err != nil {
		return
	}

	candidate := Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err = m.store.CreateSession(ctx, candidate); err != nil {
		return
	}
	session = candidate
	return
}

// Validate resolves token to the user it was issued to. Expired sessions are
// purged before the lookup so a token is only honoured while now < ExpiresAt.
func (m *SessionManager) Validate(ctx context.Context, token string) (int64, error) {
	if m == nil || m.store == nil {
		return 0, fmt.Errorf("session store not configured")
	}
	if token == "" {
		return 0, fmt.Errorf("%w: session token required", ErrUnauthenticated)
	}

	now := m.now()
	removed, err := m.store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		serviceLogger(ctx, m.logger, "SessionManager", "Validate").
			DebugContext(ctx, "expired sessions purged", "removed", removed)
	}
	if m.onPurge != nil {
		m.onPurge(removed)
	}

	session, err := m.store.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("%w: session not found or expired", ErrUnauthenticated)
		}
		return 0, err
	}
	if !session.ExpiresAt.After(now) {
		return 0, fmt.Errorf("%w: session not found or expired", ErrUnauthenticated)
	}
	return session.UserID, nil
}

// Invalidate removes the session. Unknown tokens are ignored.
func (m *SessionManager) Invalidate(ctx context.Context, token string) error {
	if m == nil || m.store == nil {
		return fmt.Errorf("session store not configured")
	}
	if token == "" {
		return nil
	}
	if err := m.store.DeleteSession(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
