// Package transport serves the billboard request protocol over TCP.
//
// Each connection carries exactly one CBOR request and one CBOR response.
// Requests are routed by their operation name to a typed handler; operations
// that require a session are authenticated before the handler runs.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/billboard-server/internal/application"
	"github.com/example/billboard-server/internal/codec"
	"github.com/example/billboard-server/internal/logging"
	"github.com/example/billboard-server/internal/metrics"
	"github.com/example/billboard-server/internal/policy"
)

const (
	// DefaultReadTimeout bounds how long a client may take to send its request.
	DefaultReadTimeout = 30 * time.Second
	// DefaultWriteTimeout bounds how long writing the response may take.
	DefaultWriteTimeout = 10 * time.Second
	// DefaultMaxRequestSize is the largest request the server decodes.
	DefaultMaxRequestSize = 1024 * 1024
)

// Authenticator resolves a session token into the acting principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (application.Principal, error)
}

// Call carries the per-request context handed to handlers.
type Call struct {
	Operation policy.Operation
	Token     string
	// Principal is only set for operations that require a session.
	Principal application.Principal
	RequestID string
}

// HandlerFunc processes the raw payload of one operation.
type HandlerFunc func(ctx context.Context, call Call, payload codec.RawMessage) (any, error)

// Options tunes a Server. Zero values select defaults.
type Options struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// Server dispatches protocol requests to registered handlers.
type Server struct {
	auth           Authenticator
	handlers       map[policy.Operation]HandlerFunc
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxRequestSize int64
	logger         *slog.Logger
	metrics        *metrics.Metrics

	activeConnections sync.WaitGroup
}

// NewServer constructs a Server. Register operations before calling Serve.
func NewServer(auth Authenticator, opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = DefaultMaxRequestSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		auth:           auth,
		handlers:       make(map[policy.Operation]HandlerFunc),
		readTimeout:    opts.ReadTimeout,
		writeTimeout:   opts.WriteTimeout,
		maxRequestSize: opts.MaxRequestSize,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}
}

// HandleRaw registers a handler for op. It panics on duplicate registration.
func (s *Server) HandleRaw(op policy.Operation, handler HandlerFunc) {
	if _, exists := s.handlers[op]; exists {
		panic(fmt.Sprintf("transport.Server: duplicate handler for operation %q", op))
	}
	s.handlers[op] = handler
}

// Handle registers a typed handler for op. The payload is decoded into P;
// an absent payload yields the zero value.
func Handle[P any](s *Server, op policy.Operation, fn func(ctx context.Context, call Call, payload P) (any, error)) {
	s.HandleRaw(op, func(ctx context.Context, call Call, raw codec.RawMessage) (any, error) {
		var payload P
		if len(raw) > 0 {
			if err := codec.Unmarshal(raw, &payload); err != nil {
				return nil, application.NewValidationError("payload", err.Error())
			}
		}
		return fn(ctx, call, payload)
	})
}

// Registered lists the operations with a handler.
func (s *Server) Registered() []policy.Operation {
	ops := make([]policy.Operation, 0, len(s.handlers))
	for op := range s.handlers {
		ops = append(ops, op)
	}
	return ops
}

// Serve accepts connections on listener until ctx is cancelled, then waits
// for in-flight requests to finish. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("request server listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			// In-flight requests finish even when shutdown has begun.
			s.handleConnection(context.WithoutCancel(ctx), conn)
		}()
	}

	s.activeConnections.Wait()
	s.logger.Info("request server stopped")
	return nil
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	started := time.Now()
	_ = conn.SetReadDeadline(started.Add(s.readTimeout))

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, "remote_addr", conn.RemoteAddr().String())

	var request Request
	if err := codec.NewDecoder(io.LimitReader(conn, s.maxRequestSize)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		logger.Debug("undecodable request", "error", err)
		s.writeError(conn, logger, fmt.Sprintf("invalid request: %v", err))
		return
	}

	if request.Operation == "" {
		s.writeError(conn, logger, "missing required field: operation")
		return
	}

	logger = logger.With("operation", string(request.Operation))
	ctx = logging.ContextWithLogger(ctx, logger)

	handler, exists := s.handlers[request.Operation]
	if !exists {
		s.metrics.ObserveRequest("unknown", "unknown_operation", time.Since(started))
		s.writeError(conn, logger, "unknown operation")
		return
	}

	result, err := s.dispatch(ctx, handler, Call{
		Operation: request.Operation,
		Token:     request.Token,
		RequestID: requestID,
	}, request.Payload)

	elapsed := time.Since(started)
	if err != nil {
		kind := application.ErrorKind(err)
		s.metrics.ObserveRequest(string(request.Operation), kind, elapsed)
		if kind == "unexpected" || kind == "store_unavailable" {
			logger.Error("request failed", "error", err, "error_kind", kind, "duration", elapsed)
		} else {
			logger.Debug("request rejected", "error", err, "error_kind", kind, "duration", elapsed)
		}
		s.writeError(conn, logger, ErrorMessage(err))
		return
	}

	s.metrics.ObserveRequest(string(request.Operation), "ok", elapsed)
	logger.Debug("request handled", "duration", elapsed)
	s.writeSuccess(conn, logger, result)
}

// dispatch authenticates the caller when op requires a session and runs the handler.
func (s *Server) dispatch(ctx context.Context, handler HandlerFunc, call Call, payload codec.RawMessage) (any, error) {
	if policy.RequiresSession(call.Operation) {
		if s.auth == nil {
			return nil, fmt.Errorf("no authenticator configured")
		}
		principal, err := s.auth.Authenticate(ctx, call.Token)
		if err != nil {
			return nil, err
		}
		call.Principal = principal
	}
	return handler(ctx, call, payload)
}

func (s *Server) writeError(conn net.Conn, logger *slog.Logger, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{OK: false, Error: message}); err != nil {
		logger.Debug("failed to write error response", "error", err)
	}
}

func (s *Server) writeSuccess(conn net.Conn, logger *slog.Logger, result any) {
	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			logger.Error("failed to marshal response", "error", err)
			s.writeError(conn, logger, internalErrorMessage)
			return
		}
		response.Data = data
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		logger.Debug("failed to write success response", "error", err)
	}
}
