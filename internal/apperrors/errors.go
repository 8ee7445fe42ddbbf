package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RetryableError marks a failure that may succeed on redelivery (database blips, broker hiccups).
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryable wraps err with a formatted message and marks it retryable.
func NewRetryable(err error, message string, args ...interface{}) error {
	return &RetryableError{Err: fmt.Errorf(message+": %w", append(args, err)...)}
}

// FatalError marks a failure that redelivery cannot fix.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps err with a formatted message and marks it fatal.
func NewFatal(err error, message string, args ...interface{}) error {
	return &FatalError{Err: fmt.Errorf(message+": %w", append(args, err)...)}
}

var (
	ErrNotFound    = errors.New("resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrDatabase    = errors.New("database error")
	ErrNATS        = errors.New("nats communication error")
	ErrDuplicate   = errors.New("duplicate resource")
	ErrConflict    = errors.New("resource conflict")
	ErrBadRequest  = errors.New("bad request")
	ErrTimeout     = errors.New("operation timeout")
	ErrRateLimited = errors.New("rate limited")
	// ErrGateway is returned by outbound messaging and mail providers.
	ErrGateway = errors.New("gateway error")
)

// FieldErrors carries per-field validation messages keyed by the JSON field name.
// It matches ErrValidation under errors.Is.
type FieldErrors struct {
	Fields map[string]string
}

// NewFieldErrors returns an empty FieldErrors ready for Add.
func NewFieldErrors() *FieldErrors {
	return &FieldErrors{Fields: make(map[string]string)}
}

// Add records msg for field, keeping the first message per field.
func (e *FieldErrors) Add(field, msg string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// Empty reports whether no field failed.
func (e *FieldErrors) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *FieldErrors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// AsFieldErrors extracts FieldErrors from an error chain.
func AsFieldErrors(err error) (*FieldErrors, bool) {
	var fe *FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

func IsNATSError(err error) bool {
	return errors.Is(err, ErrNATS)
}

func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsBadRequestError(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

func IsTimeoutError(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func IsRateLimitedError(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsGatewayError(err error) bool {
	return errors.Is(err, ErrGateway)
}
