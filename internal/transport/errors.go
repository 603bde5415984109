package transport

import (
	"github.com/example/billboard-server/internal/application"
)

const (
	internalErrorMessage         = "internal server error"
	storeUnavailableErrorMessage = "store unavailable"
)

// ErrorMessage converts a handler error into the text placed on the wire.
// Caller mistakes keep their message; store and unclassified failures are
// reduced to a fixed message so driver details never leave the server.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	switch application.ErrorKind(err) {
	case "store_unavailable":
		return storeUnavailableErrorMessage
	case "unexpected":
		return internalErrorMessage
	default:
		return err.Error()
	}
}
