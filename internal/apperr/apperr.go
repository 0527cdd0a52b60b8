// Package apperr defines the error kinds shared across the application and
// their HTTP mapping. Callers wrap these sentinels with fmt.Errorf("%w") to
// add context; handlers classify with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound is returned when an entity, factor, evidence or report
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned on evidence digest or source-id collisions
	// and on unique-key violations. Never silently merged.
	ErrDuplicate = errors.New("duplicate")

	// ErrUnauthorized is returned when the caller is not authenticated.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks entity ownership or a
	// required role.
	ErrForbidden = errors.New("forbidden")

	// ErrUpstream is returned when an external service (SII, Boostr, AI)
	// fails.
	ErrUpstream = errors.New("upstream failure")

	// ErrValidation is returned when a request is rejected before doing
	// partial work (missing factor, empty report period, invalid input).
	ErrValidation = errors.New("validation failure")
)

// HTTPStatus maps an error to its HTTP status code. Unclassified errors are
// internal and map to 500; handlers must not leak their message to clients.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
