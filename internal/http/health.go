package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const defaultHealthTimeout = 2 * time.Second

// StorePinger reports whether the backing store answers.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// MigrationState summarizes the schema migration status.
type MigrationState struct {
	CurrentVersion string `json:"current_version"`
	Applied        int    `json:"applied"`
	Pending        int    `json:"pending"`
}

// MigrationReporter returns the current schema migration state.
type MigrationReporter interface {
	MigrationState(ctx context.Context) (MigrationState, error)
}

// HealthHandler serves /healthz.
type HealthHandler struct {
	store      StorePinger
	migrations MigrationReporter
	timeout    time.Duration
	logger     *slog.Logger
	responder  responder
}

// NewHealthHandler constructs a HealthHandler. migrations may be nil.
func NewHealthHandler(store StorePinger, migrations MigrationReporter, logger *slog.Logger) *HealthHandler {
	logger = defaultLogger(logger)
	return &HealthHandler{
		store:      store,
		migrations: migrations,
		timeout:    defaultHealthTimeout,
		logger:     logger,
		responder:  newResponder(logger),
	}
}

type healthResponse struct {
	Status     string          `json:"status"`
	Store      string          `json:"store"`
	Migrations *MigrationState `json:"migrations,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	logger := handlerLogger(ctx, h.logger, "HealthHandler")

	response := healthResponse{Status: "ok", Store: "ok"}
	if err := h.store.Ping(ctx); err != nil {
		logger.WarnContext(ctx, "store ping failed", "error", err)
		response.Status = "unavailable"
		response.Store = "unavailable"
		response.Error = "store unavailable"
		h.responder.writeJSON(ctx, w, http.StatusServiceUnavailable, response)
		return
	}

	if h.migrations != nil {
		state, err := h.migrations.MigrationState(ctx)
		if err != nil {
			logger.WarnContext(ctx, "migration status failed", "error", err)
			response.Status = "unavailable"
			response.Error = "migration status unavailable"
			h.responder.writeJSON(ctx, w, http.StatusServiceUnavailable, response)
			return
		}
		response.Migrations = &state
		if state.Pending > 0 {
			response.Status = "unavailable"
			response.Error = "migrations pending"
			h.responder.writeJSON(ctx, w, http.StatusServiceUnavailable, response)
			return
		}
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, response)
}
