package server

import (
	"net/http"

	httpx "github.com/wolfeidau/sopdesk/internal/http"
)

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	admin, err := s.createTenant(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusCreated, newUserResponse(admin))
}

// loginUser exchanges a registration number and password for a token.
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	username, password, err := loginForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.login.Login(r.Context(), username, password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, token)
}

// loginAdmin exchanges an admin email and password for a token.
func (s *Server) loginAdmin(w http.ResponseWriter, r *http.Request) {
	username, password, err := loginForm(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.login.AdminLogin(r.Context(), username, password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, token)
}
