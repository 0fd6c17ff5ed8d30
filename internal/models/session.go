package models

import (
	"time"
)

// Session is the verified content of an access token.
// Tokens are stateless; nothing about a session is persisted.
type Session struct {
	Registration string // token subject, the caller's registration
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// IsExpired reports whether the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
