package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInvalidPayment indicates a payment amount that is not positive.
type ErrInvalidPayment struct {
	Amount string
}

func (e *ErrInvalidPayment) Error() string {
	return fmt.Sprintf("invalid payment: amount must be greater than zero (got %s)", e.Amount)
}

// ErrPayloadTooLarge indicates an upload above the size limit.
type ErrPayloadTooLarge struct {
	Limit int64
	Size  int64
}

func (e *ErrPayloadTooLarge) Error() string {
	return fmt.Sprintf("file size %d exceeds the %dMB limit", e.Size, e.Limit>>20)
}

// ErrUnsupportedMedia indicates an upload of a disallowed type.
type ErrUnsupportedMedia struct {
	MimeType string
}

func (e *ErrUnsupportedMedia) Error() string {
	return fmt.Sprintf("file type %q not allowed: only JPG, PNG and PDF files are supported", e.MimeType)
}

// ErrUnauthorized indicates a missing or invalid token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a concurrent modification of the same record.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrUnavailable indicates an optional backend that is not configured.
type ErrUnavailable struct {
	Feature string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("%s is not configured", e.Feature)
}
