package apierr

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
)

// Error pairs an HTTP status and the client-facing message with the underlying cause.
// Only Message ever reaches the client.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

// From maps any error onto an *Error: explicit *Error values pass through, known
// sentinels map to 400/401/404, everything else is a generic 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		return New(http.StatusUnauthorized, "Unauthorized", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		return New(http.StatusNotFound, "Not found", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return New(http.StatusBadRequest, "Invalid request", err)
	default:
		return New(http.StatusInternalServerError, "Internal server error", err)
	}
}
