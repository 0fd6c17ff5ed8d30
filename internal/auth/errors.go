package auth

import "errors"

// Sentinel errors for authentication and authorization
var (
	// ErrInvalidCredentials is returned for both an unknown account and a
	// wrong password so callers can't tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrForbidden          = errors.New("forbidden")
	// ErrInvalidPassword is returned when a new password can't be hashed,
	// such as one longer than MaxPasswordLength bytes.
	ErrInvalidPassword = errors.New("invalid password")
)
