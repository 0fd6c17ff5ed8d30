package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/sopdesk/internal/auth"
	"github.com/wolfeidau/sopdesk/internal/entity"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
	"github.com/wolfeidau/sopdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

// createTenant registers a new admin together with its home company and
// administration department. Anything created before a failure is removed.
func (s *Server) createTenant(ctx context.Context, req signupRequest) (*models.User, error) {
	_, err := s.admins.FindOne(ctx, store.Where(models.FieldEmail, req.Email).Equal(models.FieldRole, string(models.RoleAdmin)))
	switch {
	case err == nil:
		return nil, withDetail(store.ErrConflict, "Email already registered")
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	admin, err := s.admins.Create(ctx, &models.User{
		Name:        req.Name,
		Email:       req.Email,
		Password:    hash,
		Role:        models.RoleAdmin,
		Departments: []string{},
	}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	var created []func(context.Context) error
	undo := func(cause error) error {
		// cleanup must run even when the request was cancelled
		cleanupCtx := context.WithoutCancel(ctx)
		for i := len(created) - 1; i >= 0; i-- {
			if err := created[i](cleanupCtx); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("admin", admin.Registration).Msg("failed to roll back signup")
			}
		}
		return cause
	}
	created = append(created, func(ctx context.Context) error {
		_, err := s.admins.Delete(ctx, admin)
		return err
	})

	companyName := req.Company
	if companyName == "" {
		companyName = req.Name
	}

	company, err := s.companies.Create(ctx, &models.Company{
		Name:        companyName,
		Description: req.CompanyDescription,
	}, admin.Registration)
	if err != nil {
		return nil, undo(fmt.Errorf("failed to create company: %w", err))
	}
	created = append(created, func(ctx context.Context) error {
		_, err := s.companies.Delete(ctx, company)
		return err
	})

	department, err := s.departments.Create(ctx, &models.Department{
		Name:        models.AdministrationDepartment,
		Description: models.AdministrationDepartmentDescription,
		Company:     company.Registration,
	}, admin.Registration)
	if err != nil {
		return nil, undo(fmt.Errorf("failed to create department: %w", err))
	}
	created = append(created, func(ctx context.Context) error {
		_, err := s.departments.Delete(ctx, department)
		return err
	})

	admin, err = s.admins.Update(ctx, admin, entity.Patch{
		models.FieldCompany:     company.Registration,
		models.FieldDepartments: []string{department.Registration},
	})
	if err != nil {
		return nil, undo(fmt.Errorf("failed to attach company: %w", err))
	}

	zerolog.Ctx(ctx).Info().
		Str("admin", admin.Registration).
		Str("company", company.Registration).
		Str("department", department.Registration).
		Msg("tenant created")

	return admin, nil
}

// deleteCompanyCascade removes a company along with its users and
// departments, and pulls those departments from the remaining users.
// The admin is never removed.
func (s *Server) deleteCompanyCascade(ctx context.Context, caller *models.User, company *models.Company) (*models.ActionResult, error) {
	tenant := store.Where(models.FieldOwner, caller.Registration)

	departments, err := s.departments.FindAll(ctx, tenant.Equal(models.FieldCompany, company.Registration))
	if err != nil {
		return nil, err
	}

	var usersDeleted, departmentsDeleted int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.users.DeleteMany(gctx, tenant.
			Equal(models.FieldCompany, company.Registration).
			NotEqual(models.FieldRegistration, caller.Registration))
		usersDeleted = n
		return err
	})
	g.Go(func() error {
		n, err := s.departments.DeleteMany(gctx, tenant.Equal(models.FieldCompany, company.Registration))
		departmentsDeleted = n
		return err
	})
	for _, d := range departments {
		g.Go(func() error {
			_, err := s.users.PullFromArray(gctx, tenant, models.FieldDepartments, d.Registration)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to delete company %s contents: %w", company.Registration, err)
	}

	m := telemetry.GetMetrics()
	m.CascadeDeleted.Add(ctx, usersDeleted, metric.WithAttributes(attribute.String("kind", string(models.KindUser))))
	m.CascadeDeleted.Add(ctx, departmentsDeleted, metric.WithAttributes(attribute.String("kind", string(models.KindDepartment))))

	zerolog.Ctx(ctx).Info().
		Str("company", company.Registration).
		Int64("users", usersDeleted).
		Int64("departments", departmentsDeleted).
		Msg("company contents deleted")

	return s.companies.Delete(ctx, company)
}

// deleteDepartmentCascade removes a department and every membership of it.
func (s *Server) deleteDepartmentCascade(ctx context.Context, caller *models.User, department *models.Department) (*models.ActionResult, error) {
	n, err := s.users.PullFromArray(ctx, store.Where(models.FieldOwner, caller.Registration), models.FieldDepartments, department.Registration)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("department", department.Registration).
		Int64("users", n).
		Msg("department memberships removed")

	return s.departments.Delete(ctx, department)
}
