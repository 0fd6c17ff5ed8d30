package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	httpx "github.com/wolfeidau/sopdesk/internal/http"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
)

// UnauthorizedDetail is the body detail for every failed authentication.
const UnauthorizedDetail = "Could not validate credentials"

type contextKey int

const (
	callerContextKey contextKey = iota
)

// CallerFromContext returns the authenticated user, or nil for anonymous requests.
func CallerFromContext(ctx context.Context) *models.User {
	caller, _ := ctx.Value(callerContextKey).(*models.User)
	return caller
}

// WithCaller stores caller in ctx.
func WithCaller(ctx context.Context, caller *models.User) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// UserLookup resolves a token subject to a stored user.
type UserLookup interface {
	GetByRegistration(ctx context.Context, registration, scopeOwner string) (*models.User, error)
}

// Authenticator turns bearer tokens into callers.
type Authenticator struct {
	tokens *TokenService
	users  UserLookup
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(tokens *TokenService, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate validates token and loads the user it names. A token for a
// user that no longer exists is ErrInvalidToken.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	session, err := a.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	caller, err := a.users.GetByRegistration(ctx, session.Registration, "")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject %s", ErrInvalidToken, session.Registration)
		}
		return nil, err
	}

	return caller, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			token := extractBearerToken(r)
			if token == "" {
				logger.Debug().Msg("Missing bearer token")
				Unauthorized(w, r, UnauthorizedDetail)
				return
			}

			caller, err := a.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrInvalidToken) {
					logger.Warn().Err(err).Msg("Rejected bearer token")
					Unauthorized(w, r, UnauthorizedDetail)
					return
				}
				logger.Error().Err(err).Msg("Failed to resolve caller")
				httpx.WriteError(w, r, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := WithCaller(r.Context(), caller)
			ctx = logger.With().Str("caller", caller.Registration).Logger().WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope rejects callers whose role is below the scope's gate.
// It must run after Middleware.
func RequireScope(scope Scope) func(http.Handler) http.Handler {
	minRole := ScopeRoles[scope]
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFromContext(r.Context())
			if caller == nil {
				Unauthorized(w, r, UnauthorizedDetail)
				return
			}

			if err := RequireRole(r.Context(), caller, minRole); err != nil {
				zerolog.Ctx(r.Context()).Debug().
					Str("scope", string(scope)).
					Str("role", string(caller.Role)).
					Msg("Role gate denied")
				httpx.WriteError(w, r, http.StatusForbidden, "Not enough permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Unauthorized writes a 401 with the bearer challenge.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httpx.WriteError(w, r, http.StatusUnauthorized, detail)
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
