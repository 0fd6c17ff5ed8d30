package models

// AdministrationDepartment is created for every new tenant.
const (
	AdministrationDepartment            = "administration"
	AdministrationDepartmentDescription = "This department is only accessible by the administration"
)

// Department belongs to a company; users are members through their departments list.
type Department struct {
	Meta
	Name        string `json:"name"`
	Description string `json:"description"`
	Company     string `json:"company"`
}

// Resource implements Entity.
func (d *Department) Resource() Resource {
	return Resource{
		Kind:         KindDepartment,
		Registration: d.Registration,
		Owner:        d.Owner,
		Refs:         map[string]string{FieldCompany: d.Company},
	}
}
