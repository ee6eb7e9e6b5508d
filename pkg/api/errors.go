package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prowlhq/prowl/pkg/store"
	"github.com/prowlhq/prowl/pkg/submit"
)

// ErrUnknownMode is returned when a chat request names a mode the router
// does not serve.
var ErrUnknownMode = errors.New("unknown request mode")

// ValidationError wraps field-specific request validation errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// httpStatus maps service errors to HTTP status codes.
func httpStatus(err error) int {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, submit.ErrDraftNotFinalized):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
