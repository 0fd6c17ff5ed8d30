package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfeidau/sopdesk/internal/auth"
	"github.com/wolfeidau/sopdesk/internal/entity"
	httpx "github.com/wolfeidau/sopdesk/internal/http"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
)

// loadOwned fetches the {registration} path entity and checks the caller owns it.
func loadOwned[T any, P interface {
	*T
	models.Entity
}](s *Server, r *http.Request, st *entity.Store[T, P], caller *models.User) (P, error) {
	title := st.Kind().Title()

	ent, err := st.GetByRegistration(r.Context(), r.PathValue("registration"), "")
	if err != nil {
		return nil, withDetail(err, "%s not found", title)
	}

	if err := s.authorize(r, auth.ScopeAdmin, st.Kind(), caller, ent); err != nil {
		return nil, err
	}
	return ent, nil
}

// listOwned serves the admin list routes.
func listOwned[T any, P interface {
	*T
	models.Entity
}](r *http.Request, st *entity.Store[T, P], caller *models.User) (*models.Page[P], error) {
	opts, err := listQuery(r)
	if err != nil {
		return nil, err
	}
	opts.Owner = caller.Registration
	return st.List(r.Context(), opts)
}

// checkCompany rejects references to companies the caller doesn't own.
func (s *Server) checkCompany(ctx context.Context, caller *models.User, registration string) error {
	_, err := s.companies.GetByRegistration(ctx, registration, caller.Registration)
	if errors.Is(err, store.ErrNotFound) {
		return withDetail(store.ErrValidation, "unknown company %s", registration)
	}
	return err
}

// checkDepartments rejects references to departments the caller doesn't own.
func (s *Server) checkDepartments(ctx context.Context, caller *models.User, registrations []string) error {
	for _, reg := range registrations {
		_, err := s.departments.GetByRegistration(ctx, reg, caller.Registration)
		if errors.Is(err, store.ErrNotFound) {
			return withDetail(store.ErrValidation, "unknown department %s", reg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Users

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, caller *models.User) {
	page, err := listOwned(r, s.users, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, r, http.StatusOK, newUserPage(page))
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request, caller *models.User) {
	var req createUserRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()

	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if req.Company == "" {
		req.Company = caller.Company
	}
	if req.Departments == nil {
		req.Departments = []string{}
	}

	if err := s.checkCompany(ctx, caller, req.Company); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.checkDepartments(ctx, caller, req.Departments); err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.users.Create(ctx, &models.User{
		Name:        req.Name,
		Password:    hash,
		Role:        req.Role,
		Company:     req.Company,
		Departments: req.Departments,
	}, caller.Registration)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusCreated, newUserResponse(user))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, caller *models.User) {
	user, err := loadOwned(s, r, s.users, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, r, http.StatusOK, newUserResponse(user))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, caller *models.User) {
	var req updateUserRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()

	user, err := loadOwned(s, r, s.users, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Role != nil && user.Registration == caller.Registration {
		writeError(w, r, forbidden("You can't change your own role"))
		return
	}
	if req.Company != nil {
		if err := s.checkCompany(ctx, caller, *req.Company); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Departments != nil {
		if err := s.checkDepartments(ctx, caller, *req.Departments); err != nil {
			writeError(w, r, err)
			return
		}
	}

	patch, err := entity.PatchFrom(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch[models.FieldPassword] = hash
	}

	updated, err := s.users.Update(ctx, user, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, newUserResponse(updated))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, caller *models.User) {
	user, err := loadOwned(s, r, s.users, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if user.Registration == caller.Registration {
		writeError(w, r, forbidden("You can't delete yourself"))
		return
	}

	result, err := s.users.Delete(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, result)
}

// Companies

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request, caller *models.User) {
	page, err := listOwned(r, s.companies, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, r, http.StatusOK, page)
}

func (s *Server) createCompany(w http.ResponseWriter, r *http.Request, caller *models.User) {
	var req createCompanyRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	company, err := s.companies.Create(r.Context(), &models.Company{
		Name:        req.Name,
		Description: req.Description,
	}, caller.Registration)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusCreated, company)
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request, caller *models.User) {
	company, err := loadOwned(s, r, s.companies, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, r, http.StatusOK, company)
}

func (s *Server) updateCompany(w http.ResponseWriter, r *http.Request, caller *models.User) {
	var req updateCompanyRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	company, err := loadOwned(s, r, s.companies, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	patch, err := entity.PatchFrom(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.companies.Update(r.Context(), company, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, updated)
}

func (s *Server) deleteCompany(w http.ResponseWriter, r *http.Request, caller *models.User) {
	company, err := loadOwned(s, r, s.companies, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if company.Registration == caller.Company {
		writeError(w, r, forbidden("You can't delete your own company"))
		return
	}

	result, err := s.deleteCompanyCascade(r.Context(), caller, company)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, result)
}

// Departments

func (s *Server) listDepartments(w http.ResponseWriter, r *http.Request, caller *models.User) {
	page, err := listOwned(r, s.departments, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, r, http.StatusOK, page)
}

// createDepartment also adds the department to the creating admin.
func (s *Server) createDepartment(w http.ResponseWriter, r *http.Request, caller *models.User) {
	var req createDepartmentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()

	if req.Company == "" {
		req.Company = caller.Company
	}
	if err := s.checkCompany(ctx, caller, req.Company); err != nil {
		writeError(w, r, err)
		return
	}

	department, err := s.departments.Create(ctx, &models.Department{
		Name:        req.Name,
		Description: req.Description,
		Company:     req.Company,
	}, caller.Registration)
	if err != nil {
		writeError(w, r, err)
		return
	}

	byRegistration := store.Where(models.FieldRegistration, caller.Registration)
	n, err := s.admins.AddToArray(ctx, byRegistration, models.FieldDepartments, department.Registration)
	if err == nil && n == 0 {
		err = fmt.Errorf("%s: %w", models.KindAdmin.Title(), store.ErrNotFound)
	}
	if err != nil {
		if _, derr := s.departments.Delete(context.WithoutCancel(ctx), department); derr != nil {
			err = errors.Join(err, derr)
		}
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusCreated, department)
}

func (s *Server) getDepartment(w http.ResponseWriter, r *http.Request, caller *models.User) {
	department, err := loadOwned(s, r, s.departments, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, r, http.StatusOK, department)
}

func (s *Server) updateDepartment(w http.ResponseWriter, r *http.Request, caller *models.User) {
	var req updateDepartmentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	department, err := loadOwned(s, r, s.departments, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Company != nil {
		if err := s.checkCompany(r.Context(), caller, *req.Company); err != nil {
			writeError(w, r, err)
			return
		}
	}

	patch, err := entity.PatchFrom(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.departments.Update(r.Context(), department, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, updated)
}

func (s *Server) deleteDepartment(w http.ResponseWriter, r *http.Request, caller *models.User) {
	department, err := loadOwned(s, r, s.departments, caller)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.deleteDepartmentCascade(r.Context(), caller, department)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, result)
}
