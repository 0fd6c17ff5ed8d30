package server

import (
	"errors"
	"net/http"

	"github.com/wolfeidau/sopdesk/internal/auth"
	"github.com/wolfeidau/sopdesk/internal/entity"
	httpx "github.com/wolfeidau/sopdesk/internal/http"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
)

func (s *Server) getMe(w http.ResponseWriter, r *http.Request, caller *models.User) {
	httpx.WriteJSON(w, r, http.StatusOK, newUserResponse(caller))
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request, caller *models.User) {
	var req updateMeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.users.Update(r.Context(), caller, entity.Patch{models.FieldName: req.Name})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, newUserResponse(updated))
}

func (s *Server) changeMyPassword(w http.ResponseWriter, r *http.Request, caller *models.User) {
	var req changePasswordRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := auth.ComparePassword(caller.Password, req.OldPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, r, forbidden("Incorrect password"))
			return
		}
		writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.users.Update(r.Context(), caller, entity.Patch{models.FieldPassword: hash})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, newUserResponse(updated))
}

func (s *Server) getMyCompany(w http.ResponseWriter, r *http.Request, caller *models.User) {
	if caller.Company == "" {
		writeError(w, r, withDetail(store.ErrNotFound, "Company not found"))
		return
	}

	company, err := s.companies.GetByRegistration(r.Context(), caller.Company, caller.Owner)
	if err != nil {
		writeError(w, r, withDetail(err, "Company not found"))
		return
	}

	if err := s.authorize(r, auth.ScopeMember, models.KindCompany, caller, company); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, company)
}

func (s *Server) listMyDepartments(w http.ResponseWriter, r *http.Request, caller *models.User) {
	opts, err := listQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts.Owner = caller.Owner
	opts.Caller = caller.Registration

	page, err := s.departments.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, page)
}

func (s *Server) getMyDepartment(w http.ResponseWriter, r *http.Request, caller *models.User) {
	department, err := s.departments.GetByRegistration(r.Context(), r.PathValue("registration"), "")
	if err != nil {
		writeError(w, r, withDetail(err, "Department not found"))
		return
	}

	if err := s.authorize(r, auth.ScopeMember, models.KindDepartment, caller, department); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, department)
}

// authorize applies the dispatch table rule for a route serving kind.
// Targets the rule hides are reported as a missing kind.
func (s *Server) authorize(r *http.Request, scope auth.Scope, kind models.Kind, caller *models.User, target models.Entity) error {
	rule, err := auth.RuleFor(scope, kind)
	if err != nil {
		return err
	}

	if err := auth.Authorize(r.Context(), caller, target.Resource(), rule); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return withDetail(err, "%s not found", kind.Title())
		}
		return err
	}
	return nil
}
