package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound = errors.New("user not found")

	// Authentication failures. The message is all the caller ever sees.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrEmailNotVerified   = errors.New("please verify your email first")
	ErrTooManyAttempts    = errors.New("too many attempts, try again later")

	// Conflicts.
	ErrUserExists     = errors.New("email already registered")
	ErrIdentityLinked = errors.New("account is already linked to another google identity")

	// Transport failures. Committed state stays valid.
	ErrDeliveryFailed  = errors.New("failed to send code, try again")
	ErrProviderFailure = errors.New("identity provider request failed")
)

// ValidationError is a user-correctable input problem. Nothing is written
// to the store when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

