package auth

import (
	"context"
	"fmt"
	"slices"

	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
	"github.com/wolfeidau/sopdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RuleKind selects how a Rule compares caller and target.
type RuleKind int

const (
	// RuleOwnerMatch passes when target[field] is the caller or caller[field] is the target.
	RuleOwnerMatch RuleKind = iota + 1
	// RuleRelationalListMatch passes when either side's list field holds the other's registration.
	RuleRelationalListMatch
	// RuleAdminOwnerMatch passes when the caller owns the target.
	RuleAdminOwnerMatch
	// RuleRoleGate passes when the caller's role ranks at or above MinRole.
	RuleRoleGate
)

func (k RuleKind) String() string {
	switch k {
	case RuleOwnerMatch:
		return "owner_match"
	case RuleRelationalListMatch:
		return "relational_list_match"
	case RuleAdminOwnerMatch:
		return "admin_owner_match"
	case RuleRoleGate:
		return "role_gate"
	default:
		return "unknown"
	}
}

// Rule is one authorization check.
type Rule struct {
	Kind    RuleKind
	Field   string
	MinRole models.Role
}

func (r Rule) String() string {
	switch r.Kind {
	case RuleRoleGate:
		return fmt.Sprintf("%s(%s)", r.Kind, r.MinRole)
	case RuleAdminOwnerMatch:
		return r.Kind.String()
	default:
		return fmt.Sprintf("%s(%s)", r.Kind, r.Field)
	}
}

// Rule constructors.

func OwnerMatch(field string) Rule { return Rule{Kind: RuleOwnerMatch, Field: field} }
func RelationalListMatch(field string) Rule { return Rule{Kind: RuleRelationalListMatch, Field: field} }
func AdminOwnerMatch() Rule { return Rule{Kind: RuleAdminOwnerMatch} }
func RoleGate(minRole models.Role) Rule { return Rule{Kind: RuleRoleGate, MinRole: minRole} }

// Scope is a family of routes sharing a role gate.
type Scope string

const (
	ScopeMember  Scope = "member"
	ScopeManager Scope = "manager"
	ScopeAdmin   Scope = "admin"
)

// ScopeRoles maps each route scope to its role gate.
var ScopeRoles = map[Scope]models.Role{
	ScopeMember:  models.RoleUser,
	ScopeManager: models.RoleManager,
	ScopeAdmin:   models.RoleAdmin,
}

// Access identifies a single object route: who is asking and for what.
type Access struct {
	Scope Scope
	Kind  models.Kind
}

// ObjectRules is the dispatch table for single object routes.
var ObjectRules = map[Access]Rule{
	{Scope: ScopeAdmin, Kind: models.KindUser}:        AdminOwnerMatch(),
	{Scope: ScopeAdmin, Kind: models.KindCompany}:     AdminOwnerMatch(),
	{Scope: ScopeAdmin, Kind: models.KindDepartment}:  AdminOwnerMatch(),
	{Scope: ScopeMember, Kind: models.KindCompany}:    OwnerMatch(models.FieldCompany),
	{Scope: ScopeMember, Kind: models.KindDepartment}: RelationalListMatch(models.FieldDepartments),
}

// RuleFor looks up the rule for an object route.
func RuleFor(scope Scope, kind models.Kind) (Rule, error) {
	rule, ok := ObjectRules[Access{Scope: scope, Kind: kind}]
	if !ok {
		return Rule{}, fmt.Errorf("no authorization rule for %s %s", scope, kind)
	}
	return rule, nil
}

// Authorize checks caller against target. Failures that must not reveal the
// target exists return store.ErrNotFound: any AdminOwnerMatch failure and any
// match failure across tenants. Everything else returns ErrForbidden.
func Authorize(ctx context.Context, caller *models.User, target models.Resource, rule Rule) error {
	if caller == nil {
		return ErrInvalidToken
	}

	if allowed(caller, target, rule) {
		return nil
	}

	telemetry.GetMetrics().AuthorizationDenied.Add(ctx, 1,
		metric.WithAttributes(attribute.String("rule", rule.Kind.String())))

	switch {
	case rule.Kind == RuleAdminOwnerMatch:
		return fmt.Errorf("%s %s: %w", target.Kind.Title(), target.Registration, store.ErrNotFound)
	case rule.Kind != RuleRoleGate && !models.SameTenant(caller.Registration, target.Registration):
		return fmt.Errorf("%s %s: %w", target.Kind.Title(), target.Registration, store.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", rule, ErrForbidden)
	}
}

// RequireRole returns ErrForbidden unless caller's role ranks at or above minRole.
func RequireRole(ctx context.Context, caller *models.User, minRole models.Role) error {
	return Authorize(ctx, caller, caller.Resource(), RoleGate(minRole))
}

func allowed(caller *models.User, target models.Resource, rule Rule) bool {
	self := caller.Resource()

	switch rule.Kind {
	case RuleOwnerMatch:
		if ref := target.Refs[rule.Field]; ref != "" && ref == caller.Registration {
			return true
		}
		ref := self.Refs[rule.Field]
		return ref != "" && ref == target.Registration

	case RuleRelationalListMatch:
		return slices.Contains(target.Lists[rule.Field], caller.Registration) ||
			slices.Contains(self.Lists[rule.Field], target.Registration)

	case RuleAdminOwnerMatch:
		return target.Owner != "" && target.Owner == caller.Registration

	case RuleRoleGate:
		return caller.Role.AtLeast(rule.MinRole)

	default:
		return false
	}
}
