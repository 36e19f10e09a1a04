package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/opencarbon/soilstock/internal/domain"
	"github.com/opencarbon/soilstock/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes
// without leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidDomainTag),
		errors.Is(err, domain.ErrInvalidDepthOrder),
		errors.Is(err, domain.ErrInvalidConcentration),
		errors.Is(err, domain.ErrInvalidBulkDensity),
		errors.Is(err, domain.ErrEmptyCoreID):
		return http.StatusBadRequest

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the
// error.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"

	case errors.Is(err, store.ErrRunNotFound):
		return "Run not found"

	case errors.Is(err, store.ErrDepthResultNotFound):
		return "No result at the requested depth"

	case errors.Is(err, store.ErrSampleNotFound):
		return "Sample not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidDomainTag),
		errors.Is(err, domain.ErrInvalidDepthOrder),
		errors.Is(err, domain.ErrInvalidConcentration),
		errors.Is(err, domain.ErrInvalidBulkDensity),
		errors.Is(err, domain.ErrEmptyCoreID):
		return "Invalid input"

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Request cancelled"

	default:
		return "An unexpected error occurred"
	}
}
