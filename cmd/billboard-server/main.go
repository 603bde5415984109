// Command billboard-server serves the billboard protocol over TCP together
// with an ops HTTP listener for health checks and metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/billboard-server/internal/application"
	"github.com/example/billboard-server/internal/config"
	httptransport "github.com/example/billboard-server/internal/http"
	"github.com/example/billboard-server/internal/logging"
	"github.com/example/billboard-server/internal/metrics"
	"github.com/example/billboard-server/internal/persistence/sqlite"
	"github.com/example/billboard-server/internal/recurrence"
	"github.com/example/billboard-server/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "billboard-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a, err := newApp(ctx, cfg, appOptions{Logger: logger, RuntimeMetrics: true})
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}

	var opsListener net.Listener
	if cfg.OpsAddr != "" {
		opsListener, err = net.Listen("tcp", cfg.OpsAddr)
		if err != nil {
			listener.Close()
			return fmt.Errorf("listening on %s: %w", cfg.OpsAddr, err)
		}
	}

	return a.serve(ctx, listener, opsListener)
}

// loadConfig layers command-line flags over config.Load.
func loadConfig(args []string) (config.Config, error) {
	flags := pflag.NewFlagSet("billboard-server", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML configuration file")
	envFile := flags.String("env-file", "", "dotenv file loaded before reading the environment (default .env)")
	listenAddr := flags.String("listen", "", "address of the billboard protocol listener")
	opsAddr := flags.String("ops-addr", "", "address of the health and metrics listener; empty disables it")
	databasePath := flags.String("database", "", "path of the SQLite database file")
	logLevel := flags.String("log-level", "", "debug, info, warn or error")
	logFormat := flags.String("log-format", "", "json or text")
	timezone := flags.String("timezone", "", "IANA time zone used to decide the current billboard")
	if err := flags.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(config.Options{ConfigPath: *configPath, EnvFile: *envFile})
	if err != nil {
		return config.Config{}, err
	}

	overrides := map[string]struct {
		target *string
		value  string
	}{
		"listen":     {&cfg.ListenAddr, *listenAddr},
		"ops-addr":   {&cfg.OpsAddr, *opsAddr},
		"database":   {&cfg.DatabasePath, *databasePath},
		"log-level":  {&cfg.LogLevel, *logLevel},
		"log-format": {&cfg.LogFormat, *logFormat},
		"timezone":   {&cfg.Timezone, *timezone},
	}
	for name, override := range overrides {
		if flags.Changed(name) {
			*override.target = override.value
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

type appOptions struct {
	Logger *slog.Logger
	// Now overrides the clock used for sessions and the current-billboard lookup.
	Now func() time.Time
	// PasswordParams overrides the argon2id cost used for new hashes.
	PasswordParams *application.Argon2idParams
	// RuntimeMetrics registers the Go and process collectors.
	RuntimeMetrics bool
}

// app holds the wired services of a running server.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	storage *sqlite.Storage
	metrics *metrics.Metrics
	server  *transport.Server
	ops     *httptransport.Server
}

func newApp(ctx context.Context, cfg config.Config, opts appOptions) (*app, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	params := application.DefaultArgon2idParams
	if opts.PasswordParams != nil {
		params = *opts.PasswordParams
	}

	location, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", cfg.Timezone, err)
	}
	compression, err := sqlite.ParseContentEncoding(cfg.ContentCompression)
	if err != nil {
		return nil, err
	}

	storage, err := sqlite.Open(cfg.DatabasePath, sqlite.Options{
		Compression:          compression,
		CompressionThreshold: cfg.CompressionThreshold,
		Logger:               logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	if err := runDatabaseMigrations(ctx, storage, logger); err != nil {
		_ = storage.Close()
		return nil, err
	}

	m := metrics.New(opts.RuntimeMetrics)

	users := application.NewUserService(newUserRepositoryAdapter(storage.Users, now), application.NewPasswordHasher(params), logger)
	if cfg.AdminUsername != "" {
		if _, err := users.SeedInitialAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("seeding initial administrator: %w", err)
		}
	}

	billboardRepo := newBillboardRepositoryAdapter(storage.Billboards)
	sessions := application.NewSessionManager(newSessionRepositoryAdapter(storage.Sessions), application.SessionManagerOptions{
		TTL:     cfg.SessionTTL,
		Now:     now,
		Logger:  logger,
		OnPurge: m.SessionsPurged,
	})
	auth := application.NewAuthServiceWithLogger(newCredentialStoreAdapter(storage.Users), sessions, nil, logger)
	billboards := application.NewBillboardService(billboardRepo, logger)
	schedules := application.NewScheduleServiceWithLogger(
		newScheduleRepositoryAdapter(storage.Schedules),
		billboardRepo,
		recurrence.NewEngine(location),
		now,
		logger,
	)

	server := transport.NewServer(auth, transport.Options{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
		Metrics:      m,
	})
	transport.RegisterServices(server, transport.Services{
		Auth:       auth,
		Billboards: billboards,
		Schedules:  schedules,
		Users:      users,
	})

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Health:     httptransport.NewHealthHandler(storage, migrationReporter{storage: storage}, logger),
		Metrics:    m.Handler(),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		storage: storage,
		metrics: m,
		server:  server,
		ops:     httptransport.NewServer(router, logger),
	}, nil
}

// serve runs the protocol server and, when opsListener is not nil, the ops
// server until ctx is cancelled or either fails.
func (a *app) serve(ctx context.Context, listener, opsListener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- a.server.Serve(ctx, listener) }()
	if opsListener != nil {
		running++
		go func() { errCh <- a.ops.Serve(ctx, opsListener) }()
	}

	a.logger.Info("billboard server started",
		"listen_addr", listener.Addr().String(),
		"ops_enabled", opsListener != nil,
		"database_path", a.cfg.DatabasePath,
		"timezone", a.cfg.Timezone,
	)

	var errs []error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
		// Either server stopping brings the other one down.
		cancel()
	}
	a.logger.Info("billboard server stopped")
	return errors.Join(errs...)
}

func (a *app) Close() error {
	return a.storage.Close()
}

// runDatabaseMigrations applies pending migrations and logs the schema
// version before and after.
func runDatabaseMigrations(ctx context.Context, storage *sqlite.Storage, logger *slog.Logger) error {
	logger.Info("checking current database schema version")
	before, err := sqlite.MigrationStatus(ctx, storage.Pool())
	if err != nil {
		logger.Error("failed to read migration status", "error", err)
		return fmt.Errorf("reading migration status: %w", err)
	}
	if before.PendingCount == 0 {
		logger.Info("database schema is up to date", "version", before.CurrentVersion)
		return nil
	}

	logger.Info("executing database migrations", "from_version", before.CurrentVersion, "pending", before.PendingCount)
	if err := storage.Migrate(ctx); err != nil {
		logger.Error("database migration failed", "error", err)
		return err
	}

	after, err := sqlite.MigrationStatus(ctx, storage.Pool())
	if err != nil {
		return fmt.Errorf("verifying migration status: %w", err)
	}
	logger.Info("database migrations completed successfully", "version", after.CurrentVersion)
	return nil
}

type migrationReporter struct {
	storage *sqlite.Storage
}

func (r migrationReporter) MigrationState(ctx context.Context) (httptransport.MigrationState, error) {
	status, err := sqlite.MigrationStatus(ctx, r.storage.Pool())
	if err != nil {
		return httptransport.MigrationState{}, err
	}
	return httptransport.MigrationState{
		CurrentVersion: status.CurrentVersion,
		Applied:        len(status.AppliedMigrations),
		Pending:        status.PendingCount,
	}, nil
}
