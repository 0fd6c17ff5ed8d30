// Package server exposes the tenant, account and authorization operations over HTTP.
package server

import (
	"context"
	"net/http"

	"filippo.io/csrf"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/sopdesk/internal/auth"
	"github.com/wolfeidau/sopdesk/internal/entity"
	httpx "github.com/wolfeidau/sopdesk/internal/http"
	"github.com/wolfeidau/sopdesk/internal/logger"
	"github.com/wolfeidau/sopdesk/internal/login"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
)

type (
	userStore       = entity.Store[models.User, *models.User]
	companyStore    = entity.Store[models.Company, *models.Company]
	departmentStore = entity.Store[models.Department, *models.Department]
)

// Config holds the collaborators of a Server.
type Config struct {
	Docs    store.DocumentStore
	Alloc   entity.Allocator
	Tokens  *auth.TokenService
	Version string

	// TrustedOrigins may post to the public auth routes from a browser
	// on another origin.
	TrustedOrigins []string

	// EntityOptions are passed to every entity store.
	EntityOptions []entity.Option
}

// Server wraps the HTTP handlers and the stores behind them
type Server struct {
	docs        store.DocumentStore
	admins      *userStore
	users       *userStore
	companies   *companyStore
	departments *departmentStore
	authn       *auth.Authenticator
	login       *login.Service
	validate    *validator.Validate
	version     string
	origins     []string
}

// NewServer creates a new server
func NewServer(cfg Config) *Server {
	users := entity.New[models.User](cfg.Docs, cfg.Alloc, models.KindUser, cfg.EntityOptions...)

	return &Server{
		docs:        cfg.Docs,
		admins:      entity.New[models.User](cfg.Docs, cfg.Alloc, models.KindAdmin, cfg.EntityOptions...),
		users:       users,
		companies:   entity.New[models.Company](cfg.Docs, cfg.Alloc, models.KindCompany, cfg.EntityOptions...),
		departments: entity.New[models.Department](cfg.Docs, cfg.Alloc, models.KindDepartment, cfg.EntityOptions...),
		authn:       auth.NewAuthenticator(cfg.Tokens, users),
		login:       login.NewService(users, cfg.Tokens),
		validate:    newValidator(),
		version:     cfg.Version,
		origins:     cfg.TrustedOrigins,
	}
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler(log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.getVersion)
	mux.HandleFunc("GET /health", s.getHealth)

	// public, browsers on other origins are rejected unless trusted
	protection := csrf.New()
	for _, origin := range s.origins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			log.Warn().Err(err).Str("origin", origin).Msg("ignoring invalid trusted origin")
		}
	}
	mux.Handle("POST /api/auth/signup", protection.Handler(http.HandlerFunc(s.signup)))
	mux.Handle("POST /api/auth/login", protection.Handler(http.HandlerFunc(s.loginUser)))
	mux.Handle("POST /api/auth/admin/login", protection.Handler(http.HandlerFunc(s.loginAdmin)))

	member := s.scoped(auth.ScopeMember)
	mux.Handle("GET /api/me", member(s.getMe))
	mux.Handle("PUT /api/me", member(s.updateMe))
	mux.Handle("PUT /api/me/password", member(s.changeMyPassword))
	mux.Handle("GET /api/me/companies", member(s.getMyCompany))
	mux.Handle("GET /api/me/departments", member(s.listMyDepartments))
	mux.Handle("GET /api/me/departments/{registration}", member(s.getMyDepartment))

	manager := s.scoped(auth.ScopeManager)
	mux.Handle("GET /api/managers/users", manager(s.listCompanyUsers))
	mux.Handle("GET /api/managers/departments", manager(s.listCompanyDepartments))

	admin := s.scoped(auth.ScopeAdmin)
	mux.Handle("GET /api/admin/users", admin(s.listUsers))
	mux.Handle("POST /api/admin/users", admin(s.createUser))
	mux.Handle("GET /api/admin/users/{registration}", admin(s.getUser))
	mux.Handle("PUT /api/admin/users/{registration}", admin(s.updateUser))
	mux.Handle("PATCH /api/admin/users/{registration}", admin(s.updateUser))
	mux.Handle("DELETE /api/admin/users/{registration}", admin(s.deleteUser))

	mux.Handle("GET /api/admin/companies", admin(s.listCompanies))
	mux.Handle("POST /api/admin/companies", admin(s.createCompany))
	mux.Handle("GET /api/admin/companies/{registration}", admin(s.getCompany))
	mux.Handle("PUT /api/admin/companies/{registration}", admin(s.updateCompany))
	mux.Handle("PATCH /api/admin/companies/{registration}", admin(s.updateCompany))
	mux.Handle("DELETE /api/admin/companies/{registration}", admin(s.deleteCompany))

	mux.Handle("GET /api/admin/departments", admin(s.listDepartments))
	mux.Handle("POST /api/admin/departments", admin(s.createDepartment))
	mux.Handle("GET /api/admin/departments/{registration}", admin(s.getDepartment))
	mux.Handle("PUT /api/admin/departments/{registration}", admin(s.updateDepartment))
	mux.Handle("PATCH /api/admin/departments/{registration}", admin(s.updateDepartment))
	mux.Handle("DELETE /api/admin/departments/{registration}", admin(s.deleteDepartment))

	var handler http.Handler = mux
	handler = logger.NewRequestLogger(log)(handler)
	handler = httpx.ClientIPMiddleware()(handler)
	handler = httpx.RequestIDMiddleware()(handler)

	return handler
}

// scoped wraps handlers with bearer authentication and the scope's role gate.
func (s *Server) scoped(scope auth.Scope) func(callerHandler) http.Handler {
	authenticate := s.authn.Middleware()
	gate := auth.RequireScope(scope)

	return func(h callerHandler) http.Handler {
		return authenticate(gate(h))
	}
}

// callerHandler is a handler that runs after authentication.
type callerHandler func(w http.ResponseWriter, r *http.Request, caller *models.User)

func (h callerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerFromContext(r.Context())
	if caller == nil {
		auth.Unauthorized(w, r, auth.UnauthorizedDetail)
		return
	}
	h(w, r, caller)
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, r, http.StatusOK, versionResponse{Version: s.version})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.docs.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
			httpx.WriteJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	httpx.WriteJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
}
