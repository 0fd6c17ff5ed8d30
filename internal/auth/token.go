package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfeidau/sopdesk/internal/models"
)

const (
	// Issuer is stamped on every token and required on validation.
	Issuer = "sopdesk"

	// DefaultTokenTTL is how long an access token stays valid.
	DefaultTokenTTL = 7 * 24 * time.Hour

	// MinSecretLength is the shortest accepted HS256 signing secret.
	MinSecretLength = 32
)

// TokenService issues and validates HS256 bearer tokens whose subject is the
// caller's registration. Tokens are stateless.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	cache  *TokenCache
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTTL overrides DefaultTokenTTL.
func WithTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) { s.ttl = ttl }
}

// WithTokenClock overrides the time source used to issue and validate tokens.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// WithCache puts a decode cache in front of signature verification.
func WithCache(cache *TokenCache) TokenOption {
	return func(s *TokenService) { s.cache = cache }
}

// NewTokenService creates a token service signing with secret.
func NewTokenService(secret []byte, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}

	s := &TokenService{
		secret: secret,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for registration.
func (s *TokenService) Issue(registration string) (string, error) {
	if registration == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	now := s.now()
	claims := &jwt.RegisteredClaims{
		Subject:   registration,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		Issuer:    Issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate verifies token and returns its session. Malformed, expired,
// wrongly signed and subject-less tokens all yield ErrInvalidToken.
func (s *TokenService) Validate(token string) (*models.Session, error) {
	now := s.now()

	if s.cache != nil {
		if session, ok := s.cache.Get(token, now); ok {
			return session, nil
		}
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	session := &models.Session{
		Registration: claims.Subject,
		ExpiresAt:    claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}

	if s.cache != nil {
		s.cache.Add(token, session)
	}

	return session, nil
}
