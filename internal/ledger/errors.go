package ledger

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced book, loan, member or session does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrNotAvailable is returned when a book has no copy left to lend.
	ErrNotAvailable = errors.New("ledger: not available")
	// ErrDuplicateLoan is returned when the member already holds an active loan for the book.
	ErrDuplicateLoan = errors.New("ledger: duplicate loan")
	// ErrDuplicateReservation is returned when the member already reserved the book.
	ErrDuplicateReservation = errors.New("ledger: duplicate reservation")
	// ErrAlreadyReturned is returned when a loan was already returned.
	ErrAlreadyReturned = errors.New("ledger: already returned")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("ledger: duplicate email")
	// ErrInvalidCredentials is returned when sign-in details do not match.
	ErrInvalidCredentials = errors.New("ledger: invalid credentials")
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("ledger: unauthorized")
	// ErrSessionExpired is returned when a session token is past its expiry.
	ErrSessionExpired = errors.New("ledger: session expired")
)

// Error is a rejected operation: a kind sentinel plus the message shown to users.
type Error struct {
	Kind    error
	Message string
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind so callers can use errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + v.FieldErrors[field]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// ErrorKind maps sentinel and validation errors to a stable label for logs,
// metrics and API error codes.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotAvailable):
		return "not_available"
	case errors.Is(err, ErrDuplicateLoan):
		return "duplicate_loan"
	case errors.Is(err, ErrDuplicateReservation):
		return "duplicate_reservation"
	case errors.Is(err, ErrAlreadyReturned):
		return "already_returned"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}

// Message returns the user facing text for err.
func Message(err error) string {
	var lErr *Error
	if errors.As(err, &lErr) {
		return lErr.Message
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "Please correct the highlighted fields"
	}
	return "Something went wrong, please try again"
}
