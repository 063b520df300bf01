package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrNotSelectable     = errors.New("package is not selectable")

	// Checkout / provider errors
	ErrConfigMissing    = errors.New("payment provider is not configured")
	ErrAuthRequired     = errors.New("authentication required")
	ErrNetwork          = errors.New("network error")
	ErrProviderRejected = errors.New("provider rejected request")

	// Recovered locally by the resolver and pricing engine; never returned to callers.
	ErrMalformedData = errors.New("malformed data")

	// Storage errors
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// ProviderError is a non-success response from one of the trusted payment functions.
// Message is the server's own text and may be empty.
type ProviderError struct {
	Op      string
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: provider rejected (status %d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: provider rejected (status %d)", e.Op, e.Status)
}

func (e *ProviderError) Unwrap() error { return ErrProviderRejected }

// ProviderMessage returns the server supplied message carried by err, if any.
func ProviderMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return ""
}
