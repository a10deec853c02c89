// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/noodle-soup/noodle/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Anything
// not in the taxonomy is an internal error; no error ever maps to success.
func RespondError(w http.ResponseWriter, err error) {
	var (
		validation *shared.ValidationError
		dispatch   *shared.TaskDispatchError
		store      *shared.StoreError
	)
	switch {
	case err == nil:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	case errors.As(err, &validation):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Errors: validation.Fields,
		})
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, shared.ErrAccessDenied):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.As(err, &dispatch), errors.As(err, &store):
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	var validation *shared.ValidationError
	return errors.As(err, &validation) ||
		errors.Is(err, shared.ErrNotFound) ||
		errors.Is(err, shared.ErrConflict) ||
		errors.Is(err, shared.ErrUnauthenticated) ||
		errors.Is(err, shared.ErrInvalidCredentials) ||
		errors.Is(err, shared.ErrAccessDenied)
}
