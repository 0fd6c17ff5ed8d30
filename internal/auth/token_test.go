package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte(strings.Repeat("s", MinSecretLength))

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestTokens(t *testing.T, opts ...TokenOption) (*TokenService, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := NewTokenService(testSecret, append([]TokenOption{WithTokenClock(c.Now)}, opts...)...)
	require.NoError(t, err)
	return tokens, c
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService([]byte("short"))
	require.Error(t, err)

	_, err = NewTokenService(testSecret, WithTTL(-time.Second))
	require.Error(t, err)

	tokens, err := NewTokenService(testSecret)
	require.NoError(t, err)
	require.Equal(t, DefaultTokenTTL, tokens.TTL())
}

func TestTokenService_roundTrip(t *testing.T) {
	tokens, c := newTestTokens(t)

	token, err := tokens.Issue("001.0001.000")
	require.NoError(t, err)

	session, err := tokens.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "001.0001.000", session.Registration)
	require.True(t, session.IssuedAt.Equal(c.now))
	require.True(t, session.ExpiresAt.Equal(c.now.Add(7*24*time.Hour)))

	_, err = tokens.Issue("")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_expiry(t *testing.T) {
	tokens, c := newTestTokens(t)

	token, err := tokens.Issue("001.0001.001")
	require.NoError(t, err)

	c.now = c.now.Add(DefaultTokenTTL - time.Minute)
	_, err = tokens.Validate(token)
	require.NoError(t, err)

	c.now = c.now.Add(2 * time.Minute)
	_, err = tokens.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_rejects(t *testing.T) {
	tokens, c := newTestTokens(t)

	valid := func(sub string) *jwt.RegisteredClaims {
		return &jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(c.now),
			ExpiresAt: jwt.NewNumericDate(c.now.Add(time.Hour)),
		}
	}

	noExpiry := valid("001.0001.000")
	noExpiry.ExpiresAt = nil

	wrongIssuer := valid("001.0001.000")
	wrongIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"wrong secret", signClaims(t, jwt.SigningMethodHS256, []byte(strings.Repeat("x", 32)), valid("001.0001.000"))},
		{"wrong algorithm", signClaims(t, jwt.SigningMethodHS512, testSecret, valid("001.0001.000"))},
		{"none algorithm", signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid("001.0001.000"))},
		{"missing subject", signClaims(t, jwt.SigningMethodHS256, testSecret, valid(""))},
		{"missing expiry", signClaims(t, jwt.SigningMethodHS256, testSecret, noExpiry)},
		{"wrong issuer", signClaims(t, jwt.SigningMethodHS256, testSecret, wrongIssuer)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Validate(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenService_cache(t *testing.T) {
	cache := NewTokenCache(DefaultTokenCacheSize, DefaultTokenCacheTTL)
	tokens, c := newTestTokens(t, WithCache(cache), WithTTL(10*time.Minute))

	token, err := tokens.Issue("001.0001.000")
	require.NoError(t, err)

	_, err = tokens.Validate(token)
	require.NoError(t, err)
	require.Equal(t, 1, cache.Len())

	session, err := tokens.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "001.0001.000", session.Registration)

	// cached entry outlives the token: must not be served
	c.now = c.now.Add(11 * time.Minute)
	_, err = tokens.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.Equal(t, 0, cache.Len())

	// invalid tokens are never cached
	_, err = tokens.Validate("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.Equal(t, 0, cache.Len())
}
