package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/billboard-server/internal/persistence/sqlite/migration"
)

// Storage bundles the connection pool with every SQLite repository.
type Storage struct {
	pool   *ConnectionPool
	codec  *ContentCodec
	logger *slog.Logger

	Users      *UserRepository
	Billboards *BillboardRepository
	Schedules  *ScheduleRepository
	Sessions   *SessionRepository
}

// Options tunes how Open configures the store.
type Options struct {
	// Config overrides the connection configuration derived from the path.
	Config *migration.SQLiteConfig
	// Compression selects the content encoding for new writes.
	Compression ContentEncoding
	// CompressionThreshold is the minimum content size that is compressed.
	CompressionThreshold int
	Logger               *slog.Logger
}

// Open connects to the database at path. Call Migrate before first use.
func Open(path string, opts Options) (*Storage, error) {
	config := migration.DefaultSQLiteConfig(path)
	if opts.Config != nil {
		config = *opts.Config
	}
	if opts.Compression == "" {
		opts.Compression = EncodingIdentity
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	codec, err := NewContentCodec(opts.Compression, opts.CompressionThreshold)
	if err != nil {
		return nil, err
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		codec.Close()
		return nil, err
	}

	return newStorage(pool, codec, opts.Logger), nil
}

// OpenWithPool builds a Storage around an existing pool.
func OpenWithPool(pool *ConnectionPool, codec *ContentCodec, logger *slog.Logger) *Storage {
	if codec == nil {
		codec = IdentityCodec()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return newStorage(pool, codec, logger)
}

func newStorage(pool *ConnectionPool, codec *ContentCodec, logger *slog.Logger) *Storage {
	return &Storage{
		pool:       pool,
		codec:      codec,
		logger:     logger,
		Users:      NewUserRepository(pool),
		Billboards: NewBillboardRepository(pool, codec),
		Schedules:  NewScheduleRepository(pool),
		Sessions:   NewSessionRepository(pool),
	}
}

// Pool returns the underlying connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, s.pool, s.logger); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool and the content codec.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.pool != nil {
		errs = append(errs, s.pool.Close())
	}
	if s.codec != nil {
		s.codec.Close()
	}
	return errors.Join(errs...)
}
