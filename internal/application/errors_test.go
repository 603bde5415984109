package application

import (
	"errors"
	"testing"

	"github.com/example/billboard-server/internal/policy"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{
		"name":    "name is required",
		"content": "content is required",
	}}
	want := "validation failed: content: content is required; name: name is required"
	if got := withFields.Error(); got != want {
		t.Fatalf("expected fields in sorted order, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	if nilErr.HasErrors() {
		t.Fatalf("expected HasErrors to report false for nil error")
	}
	if (&ValidationError{}).HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	if !NewValidationError("field", "bad").HasErrors() {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestSentinelMessages(t *testing.T) {
	t.Parallel()

	if !errors.Is(ErrInvalidCredentials, ErrUnauthenticated) {
		t.Fatalf("invalid credentials must classify as unauthenticated")
	}
	if got := ErrInvalidCredentials.Error(); got != "unauthenticated: invalid username or password" {
		t.Fatalf("unexpected message %q", got)
	}

	err := forbidden(policy.Decision{Reason: "editUsers permission required"})
	if !errors.Is(err, ErrForbidden) || err.Error() != "forbidden: editUsers permission required" {
		t.Fatalf("unexpected forbidden error %v", err)
	}
	if forbidden(policy.Decision{}) != ErrForbidden {
		t.Fatalf("expected bare sentinel without a reason")
	}
}
