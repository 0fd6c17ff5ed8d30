// Package login exchanges passwords for bearer tokens.
package login

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sopdesk/internal/auth"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
	"github.com/wolfeidau/sopdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// Token is returned by a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserFinder looks up accounts, see entity.Store.
type UserFinder interface {
	FindOne(ctx context.Context, filter store.Filter) (*models.User, error)
}

// Service authenticates users by registration and admins by email.
type Service struct {
	users  UserFinder
	tokens *auth.TokenService
}

// NewService creates a login service.
func NewService(users UserFinder, tokens *auth.TokenService) *Service {
	return &Service{users: users, tokens: tokens}
}

// Login authenticates any user by registration number.
func (s *Service) Login(ctx context.Context, registration, password string) (*Token, error) {
	return s.login(ctx, "registration", store.Where(models.FieldRegistration, registration), password, false)
}

// AdminLogin authenticates a tenant admin by email.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*Token, error) {
	filter := store.Where(models.FieldEmail, email).Equal(models.FieldRole, string(models.RoleAdmin))
	return s.login(ctx, "admin", filter, password, true)
}

// login fails with the same ErrInvalidCredentials, after the same bcrypt
// work, whether the account is missing or the password is wrong.
func (s *Service) login(ctx context.Context, method string, filter store.Filter, password string, adminOnly bool) (*Token, error) {
	attrs := metric.WithAttributes(attribute.String("method", method))
	m := telemetry.GetMetrics()

	user, err := s.users.FindOne(ctx, filter)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m.LoginFailuresTotal.Add(ctx, 1, attrs)
		log.Debug().Str("method", method).Msg("Login for unknown account")
		return nil, auth.CompareDummy(password)
	case err != nil:
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := auth.ComparePassword(user.Password, password); err != nil {
		m.LoginFailuresTotal.Add(ctx, 1, attrs)
		log.Debug().Str("method", method).Str("registration", user.Registration).Msg("Login with wrong password")
		return nil, auth.ErrInvalidCredentials
	}

	if adminOnly && !user.IsAdmin() {
		m.LoginFailuresTotal.Add(ctx, 1, attrs)
		return nil, auth.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Registration)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	m.LoginsTotal.Add(ctx, 1, attrs)
	log.Debug().Str("method", method).Str("registration", user.Registration).Msg("Login succeeded")

	return &Token{AccessToken: token, TokenType: TokenTypeBearer}, nil
}
