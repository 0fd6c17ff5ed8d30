package models

import "slices"

// Kind identifies one of the entity kinds held in the document store.
type Kind string

const (
	KindAdmin      Kind = "admin"
	KindUser       Kind = "user"
	KindCompany    Kind = "company"
	KindDepartment Kind = "department"
)

// Field names shared by the document representation of every kind.
const (
	FieldID           = "id"
	FieldRegistration = "registration"
	FieldOwner        = "owner"
	FieldCreatedAt    = "created_at"
	FieldUpdatedAt    = "updated_at"
	FieldName         = "name"
	FieldDescription  = "description"
	FieldEmail        = "email"
	FieldCompany      = "company"
	FieldDepartments  = "departments"
	FieldPassword     = "password"
	FieldRole         = "role"
)

// ImmutableFields can never be changed through an update.
var ImmutableFields = []string{FieldID, FieldRegistration, FieldOwner, FieldCreatedAt, FieldUpdatedAt}

// Kinds lists every kind.
var Kinds = []Kind{KindAdmin, KindUser, KindCompany, KindDepartment}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// Collection returns the document collection for the kind. Admins and users
// share a collection.
func (k Kind) Collection() string {
	switch k {
	case KindAdmin, KindUser:
		return "users"
	case KindCompany:
		return "companies"
	case KindDepartment:
		return "departments"
	default:
		return string(k)
	}
}

// Title is the display name used in action messages.
func (k Kind) Title() string {
	switch k {
	case KindAdmin:
		return "Admin"
	case KindUser:
		return "User"
	case KindCompany:
		return "Company"
	case KindDepartment:
		return "Department"
	default:
		return string(k)
	}
}

// Searchable reports whether list queries may search on field.
func (k Kind) Searchable(field string) bool {
	switch field {
	case FieldName, FieldRegistration:
		return true
	case FieldDescription:
		return k == KindCompany || k == KindDepartment
	case FieldEmail:
		return k == KindAdmin || k == KindUser
	default:
		return false
	}
}
