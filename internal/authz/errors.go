package authz

import "errors"

// ForbiddenError is the single error kind produced by authorization denials.
// Callers branch on the kind, not the message; the message is for humans.
type ForbiddenError struct {
	msg string
}

// Forbidden builds a denial carrying the given message.
func Forbidden(msg string) *ForbiddenError {
	return &ForbiddenError{msg: msg}
}

// Error implements the error interface.
func (e *ForbiddenError) Error() string {
	return e.msg
}

// IsForbidden reports whether err is (or wraps) an authorization denial.
func IsForbidden(err error) bool {
	var forbidden *ForbiddenError
	return errors.As(err, &forbidden)
}
