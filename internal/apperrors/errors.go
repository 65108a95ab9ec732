package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the sync engine and the store
var (
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("module already exists")
	ErrNotFound   = errors.New("module not found")
	ErrAuth       = errors.New("invalid credentials")
	ErrUpstream   = errors.New("upstream request failed")
)

// AppError carries a client-facing message on top of one of the kinds above
type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(message string) error {
	return &AppError{Err: ErrValidation, Message: message}
}

func NewDuplicateError(message string) error {
	return &AppError{Err: ErrDuplicate, Message: message}
}

func NewNotFoundError(message string) error {
	return &AppError{Err: ErrNotFound, Message: message}
}

func NewAuthError(message string) error {
	return &AppError{Err: ErrAuth, Message: message}
}

// NewUpstreamError wraps cause so that both ErrUpstream and the cause match errors.Is
func NewUpstreamError(message string, cause error) error {
	return &AppError{Err: fmt.Errorf("%w: %w", ErrUpstream, cause), Message: message}
}

// ItemFetchError records a failed per-item or per-embedded-file fetch.
// It never leaves the item walk.
type ItemFetchError struct {
	Kind   string
	ItemID int64
	URL    string
	Err    error
}

func (e *ItemFetchError) Error() string {
	return fmt.Sprintf("%s fetch for item %d (%s): %v", e.Kind, e.ItemID, e.URL, e.Err)
}

func (e *ItemFetchError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err should be answered as a client mistake
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAuth)
}
