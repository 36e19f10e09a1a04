package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or missing.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidDepthOrder is returned when an interval's bottom depth is
	// not strictly below its top depth.
	ErrInvalidDepthOrder = errors.New("depth_bottom must be greater than depth_top")

	// ErrNegativeStock is returned when a carbon stock value is negative.
	ErrNegativeStock = errors.New("carbon stock cannot be negative")

	// ErrInvalidConcentration is returned when an organic-carbon
	// concentration is negative or not a finite number.
	ErrInvalidConcentration = errors.New("invalid organic-carbon concentration")

	// ErrInvalidBulkDensity is returned when a bulk density is zero,
	// negative, or not a finite number.
	ErrInvalidBulkDensity = errors.New("invalid bulk density")

	// ErrInvalidDomainTag is returned when a sample's domain tag is not
	// one of the two known populations.
	ErrInvalidDomainTag = errors.New("invalid domain tag")

	// ErrEmptyCoreID is returned when a sample has no originating core.
	ErrEmptyCoreID = errors.New("core ID cannot be empty")

	// ErrInvalidStrategy is returned when a strategy name is not one of
	// the five closed variants.
	ErrInvalidStrategy = errors.New("invalid strategy kind")
)

// ValidationError wraps a field-level validation failure with enough
// context to report which record and field were rejected.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return "validation failed for " + e.Field + ": " + e.Message + ": " + e.Err.Error()
	}
	return "validation failed for " + e.Field + ": " + e.Message
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
