package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Password lengths are in bytes.
const (
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit.
	MaxPasswordLength = 72
)

// HashCost is the bcrypt cost used by HashPassword. Tests lower it.
var HashCost = bcrypt.DefaultCost

// dummyHash is compared against when an account doesn't exist so the
// response time matches a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("sopdesk-dummy-password"), HashCost)
	return hash
})

// ValidPasswordLength reports whether password fits MinPasswordLength and
// MaxPasswordLength, counted in bytes.
func ValidPasswordLength(password string) bool {
	return len(password) >= MinPasswordLength && len(password) <= MaxPasswordLength
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidPassword, MaxPasswordLength)
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword checks password against hash. Any mismatch, including a
// corrupt hash, is ErrInvalidCredentials.
func ComparePassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
}

// CompareDummy burns the same work as ComparePassword and always fails.
func CompareDummy(password string) error {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
	return ErrInvalidCredentials
}
