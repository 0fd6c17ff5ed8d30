package models

// Role is a user's place in the role hierarchy user < manager < admin.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

var roleRank = map[Role]int{
	RoleUser:    1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above min. Unknown roles rank below everything.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] > 0 && roleRank[r] >= roleRank[min]
}

// User is an account that can log in. Admins are users whose registration
// is also their owner; they are the root of a tenant.
type User struct {
	Meta
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Password    string   `json:"password"` // bcrypt hash
	Role        Role     `json:"role"`
	Company     string   `json:"company"`
	Departments []string `json:"departments"`
}

// IsAdmin reports whether u is the root admin of its tenant.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin && u.Registration == u.Owner
}

// IsManager reports whether u may use manager operations.
func (u *User) IsManager() bool {
	return u.Role.AtLeast(RoleManager)
}

// Resource implements Entity.
func (u *User) Resource() Resource {
	kind := KindUser
	if u.IsAdmin() {
		kind = KindAdmin
	}
	return Resource{
		Kind:         kind,
		Registration: u.Registration,
		Owner:        u.Owner,
		Refs:         map[string]string{FieldCompany: u.Company},
		Lists:        map[string][]string{FieldDepartments: u.Departments},
	}
}
