package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/billboard-server/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidCredentials, "unauthenticated"},
		{fmt.Errorf("%w: billboard 3", ErrNotFound), "not_found"},
		{ErrForbidden, "forbidden"},
		{ErrConflict, "conflict"},
		{fmt.Errorf("wrap: %w", ErrStoreUnavailable), "store_unavailable"},
		{NewValidationError("name", "required"), "validation"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range tests {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	logOutcome(ctx, serviceLogger(ctx, baseLogger, "BillboardService", "DeleteBillboard"), ErrForbidden, "billboard deleted")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %q", base.String())
	}
	out := scoped.String()
	for _, want := range []string{"level=WARN", "billboard deleted rejected", "service=BillboardService", "error_kind=forbidden"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q is missing %q", out, want)
		}
	}
}
