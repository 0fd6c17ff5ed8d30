package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
)

type userMap map[string]*models.User

func (m userMap) GetByRegistration(_ context.Context, registration, _ string) (*models.User, error) {
	if registration == "001.0009.000" {
		return nil, errors.New("store offline")
	}
	u, ok := m[registration]
	if !ok {
		return nil, fmt.Errorf("User: %w", store.ErrNotFound)
	}
	return u, nil
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header   string
		expected string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", tt.header)
			require.Equal(t, tt.expected, extractBearerToken(r))
		})
	}
}

func TestAuthenticatorMiddleware(t *testing.T) {
	admin, member, _ := fixtureUsers()
	tokens, _ := newTestTokens(t)
	authn := NewAuthenticator(tokens, userMap{
		admin.Registration:  admin,
		member.Registration: member,
	})

	var caller *models.User
	handler := authn.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	issue := func(reg string) string {
		token, err := tokens.Issue(reg)
		require.NoError(t, err)
		return "Bearer " + token
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCaller string
	}{
		{"valid", issue(member.Registration), http.StatusNoContent, member.Registration},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, ""},
		{"deleted user", issue("001.0001.099"), http.StatusUnauthorized, ""},
		{"store failure", issue("001.0009.000"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller = nil
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			handler.ServeHTTP(w, r)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCaller == "" {
				require.Nil(t, caller)
			} else {
				require.Equal(t, tt.wantCaller, caller.Registration)
			}

			if tt.wantStatus == http.StatusUnauthorized {
				require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
				var body map[string]string
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				require.Equal(t, UnauthorizedDetail, body["detail"])
			}
		})
	}
}

func TestRequireScope(t *testing.T) {
	admin, member, _ := fixtureUsers()

	handler := RequireScope(ScopeManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(caller *models.User) int {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/managers/users", nil)
		if caller != nil {
			r = r.WithContext(WithCaller(r.Context(), caller))
		}
		handler.ServeHTTP(w, r)
		return w.Code
	}

	require.Equal(t, http.StatusNoContent, serve(admin))
	require.Equal(t, http.StatusForbidden, serve(member))
	require.Equal(t, http.StatusUnauthorized, serve(nil))
}
