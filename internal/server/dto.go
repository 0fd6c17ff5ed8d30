package server

import (
	"github.com/wolfeidau/sopdesk/internal/models"
)

type signupRequest struct {
	Name               string `json:"name" validate:"required,max=200"`
	Email              string `json:"email" validate:"required,email,max=254"`
	Password           string `json:"password" validate:"required,password"`
	Company            string `json:"company" validate:"max=200"`
	CompanyDescription string `json:"company_description" validate:"max=2000"`
}

type updateMeRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,password"`
}

type createUserRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Password    string      `json:"password" validate:"required,password"`
	Role        models.Role `json:"role" validate:"omitempty,oneof=user manager"`
	Company     string      `json:"company"`
	Departments []string    `json:"departments" validate:"omitempty,dive,required"`
}

// updateUserRequest serves PUT and PATCH; nil fields are left alone.
type updateUserRequest struct {
	Name        *string      `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Password    *string      `json:"password,omitempty" validate:"omitempty,password"`
	Role        *models.Role `json:"role,omitempty" validate:"omitempty,oneof=user manager"`
	Company     *string      `json:"company,omitempty"`
	Departments *[]string    `json:"departments,omitempty"`
}

type createCompanyRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type updateCompanyRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

type createDepartmentRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Company     string `json:"company"`
}

type updateDepartmentRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Company     *string `json:"company,omitempty"`
}

// userResponse is a user without its password hash.
type userResponse struct {
	models.Meta
	Name        string      `json:"name"`
	Email       string      `json:"email,omitempty"`
	Role        models.Role `json:"role"`
	Company     string      `json:"company"`
	Departments []string    `json:"departments"`
}

func newUserResponse(u *models.User) userResponse {
	departments := u.Departments
	if departments == nil {
		departments = []string{}
	}
	return userResponse{
		Meta:        u.Meta,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Company:     u.Company,
		Departments: departments,
	}
}

func newUserPage(page *models.Page[*models.User]) *models.Page[userResponse] {
	out := &models.Page[userResponse]{
		Pagination: page.Pagination,
		Results:    make([]userResponse, 0, len(page.Results)),
	}
	for _, u := range page.Results {
		out.Results = append(out.Results, newUserResponse(u))
	}
	return out
}

type versionResponse struct {
	Version string `json:"version"`
}

type healthResponse struct {
	Status string `json:"status"`
}
