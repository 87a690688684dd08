package cx

import (
	"errors"
	"net/http"
)

// Error kinds surfaced to callers. Operations wrap one of these so callers
// can classify failures with errors.Is.
//
// Partial read and listing failures during traversal are not errors: they
// end up as placeholder content or collection warnings. A malformed store
// document is repaired rather than reported.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
	ErrWrite       = errors.New("write failure")
)

// StatusCode maps an error to the HTTP-equivalent status of its kind.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
