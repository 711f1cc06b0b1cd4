// Package apperr defines the error kinds surfaced by collegepay operations.
//
// Operations wrap one of the sentinel kinds with a message, so callers can
// branch with errors.Is while the message stays specific:
//
//	return apperr.Validation("transaction reference or proof is required")
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrNotFound       = errors.New("not found")
	ErrAuthorization  = errors.New("authorization error")
)

// Validation reports missing or malformed input.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// Authentication reports a failed identity resolution or sign-in.
func Authentication(format string, args ...any) error {
	return wrap(ErrAuthentication, format, args...)
}

// NotFound reports an unknown user, event or payment id.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Authorization reports a caller that failed the admin guard.
func Authorization(format string, args ...any) error {
	return wrap(ErrAuthorization, format, args...)
}

// Is reports whether err belongs to one of the taxonomy kinds.
func Is(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAuthorization)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
