package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: newError(ErrNotFound, "Loan not found"), want: "not_found"},
		{err: newError(ErrNotAvailable, "Book not available"), want: "not_available"},
		{err: fmt.Errorf("wrapped: %w", newError(ErrDuplicateLoan, "x")), want: "duplicate_loan"},
		{err: ErrDuplicateReservation, want: "duplicate_reservation"},
		{err: ErrAlreadyReturned, want: "already_returned"},
		{err: ErrDuplicateEmail, want: "duplicate_email"},
		{err: ErrInvalidCredentials, want: "invalid_credentials"},
		{err: ErrUnauthorized, want: "unauthorized"},
		{err: ErrSessionExpired, want: "session_expired"},
		{err: &ValidationError{FieldErrors: map[string]string{"title": "required"}}, want: "validation"},
		{err: errors.New("boom"), want: "unexpected"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ErrorKind(tc.err), "%v", tc.err)
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Book not found", Message(fmt.Errorf("ctx: %w", newError(ErrNotFound, "Book not found"))))
	assert.Equal(t, "Please correct the highlighted fields", Message(&ValidationError{}))
	assert.Equal(t, "Something went wrong, please try again", Message(errors.New("disk full")))
}

func TestValidationErrorString(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	assert.False(t, vErr.HasErrors())
	assert.Equal(t, "validation failed", vErr.Error())

	vErr.add("title", "title is required")
	vErr.add("isbn", "isbn is required")
	assert.True(t, vErr.HasErrors())
	assert.Equal(t, "validation failed: isbn: isbn is required; title: title is required", vErr.Error())
}
