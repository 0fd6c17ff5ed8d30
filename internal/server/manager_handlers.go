package server

import (
	"net/http"

	httpx "github.com/wolfeidau/sopdesk/internal/http"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
)

// listCompanyUsers lists the users sharing the manager's company.
func (s *Server) listCompanyUsers(w http.ResponseWriter, r *http.Request, caller *models.User) {
	opts, err := listQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts.Owner = caller.Owner
	opts.Caller = caller.Registration

	page, err := s.users.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, newUserPage(page))
}

// listCompanyDepartments lists every department of the manager's company,
// not only those the manager belongs to.
func (s *Server) listCompanyDepartments(w http.ResponseWriter, r *http.Request, caller *models.User) {
	opts, err := listQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts.Owner = caller.Owner
	opts.Filter = store.Where(models.FieldCompany, caller.Company)

	page, err := s.departments.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, r, http.StatusOK, page)
}
