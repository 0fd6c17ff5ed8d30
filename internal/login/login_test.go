package login

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sopdesk/internal/auth"
	"github.com/wolfeidau/sopdesk/internal/entity"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/registration"
	"github.com/wolfeidau/sopdesk/internal/store/memory"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	auth.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type fixture struct {
	svc    *Service
	tokens *auth.TokenService
	admin  *models.User
	member *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	docs := memory.NewDocumentStore()
	alloc := registration.NewAllocator(docs, registration.DefaultScheme())
	admins := entity.New[models.User](docs, alloc, models.KindAdmin)
	users := entity.New[models.User](docs, alloc, models.KindUser)

	hash, err := auth.HashPassword("admin-secret")
	require.NoError(t, err)
	admin, err := admins.Create(ctx, &models.User{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: hash,
		Role:     models.RoleAdmin,
	}, "")
	require.NoError(t, err)

	hash, err = auth.HashPassword("member-secret")
	require.NoError(t, err)
	member, err := users.Create(ctx, &models.User{
		Name:     "Bob",
		Password: hash,
		Role:     models.RoleUser,
	}, admin.Registration)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService([]byte(strings.Repeat("k", auth.MinSecretLength)))
	require.NoError(t, err)

	return &fixture{
		svc:    NewService(users, tokens),
		tokens: tokens,
		admin:  admin,
		member: member,
	}
}

func TestService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.svc.Login(ctx, f.member.Registration, "member-secret")
	require.NoError(t, err)
	require.Equal(t, TokenTypeBearer, token.TokenType)

	session, err := f.tokens.Validate(token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "001.0001.001", session.Registration)
	require.WithinDuration(t, time.Now().Add(auth.DefaultTokenTTL), session.ExpiresAt, time.Minute)

	// admins can use their registration too
	_, err = f.svc.Login(ctx, f.admin.Registration, "admin-secret")
	require.NoError(t, err)
}

func TestService_Login_failuresAreIdentical(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, unknown := f.svc.Login(ctx, "001.0001.099", "member-secret")
	_, wrong := f.svc.Login(ctx, f.member.Registration, "not-the-password")

	require.ErrorIs(t, unknown, auth.ErrInvalidCredentials)
	require.ErrorIs(t, wrong, auth.ErrInvalidCredentials)
	require.Equal(t, unknown.Error(), wrong.Error())
}

func TestService_AdminLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.svc.AdminLogin(ctx, "ada@example.com", "admin-secret")
	require.NoError(t, err)

	session, err := f.tokens.Validate(token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "001.0001.000", session.Registration)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "admin-secret"},
		{"wrong password", "ada@example.com", "member-secret"},
		{"empty email", "", "admin-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AdminLogin(ctx, tt.email, tt.password)
			require.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}
