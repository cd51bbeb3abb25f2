package shared

import "errors"

var (
	// ErrCSRFTokenMissing occurs when a mutating request carries no token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when the supplied token fails verification.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
