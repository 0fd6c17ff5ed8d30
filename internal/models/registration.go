package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRegistration is returned for strings that aren't code.tenant.sequence.
var ErrInvalidRegistration = errors.New("invalid registration")

// Registration is a parsed registration number such as 001.0001.000.
type Registration struct {
	Code     string // kind code
	Tenant   string // admin sequence the entity belongs to
	Sequence string // per owner, per kind sequence; all zeros for admins
}

// ParseRegistration splits s into its three numeric segments.
func ParseRegistration(s string) (Registration, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Registration{}, fmt.Errorf("%w: %q", ErrInvalidRegistration, s)
	}

	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return Registration{}, fmt.Errorf("%w: %q", ErrInvalidRegistration, s)
		}
	}

	return Registration{Code: parts[0], Tenant: parts[1], Sequence: parts[2]}, nil
}

// String joins the segments.
func (r Registration) String() string {
	return r.Code + "." + r.Tenant + "." + r.Sequence
}

// TenantOf returns the tenant segment of s, or "" if s doesn't parse.
func TenantOf(s string) string {
	r, err := ParseRegistration(s)
	if err != nil {
		return ""
	}
	return r.Tenant
}

// SameTenant reports whether both registrations parse and share a tenant.
func SameTenant(a, b string) bool {
	ta := TenantOf(a)
	return ta != "" && ta == TenantOf(b)
}
