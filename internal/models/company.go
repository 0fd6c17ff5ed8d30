package models

// Company groups users and departments within a tenant.
type Company struct {
	Meta
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Resource implements Entity.
func (c *Company) Resource() Resource {
	return Resource{
		Kind:         KindCompany,
		Registration: c.Registration,
		Owner:        c.Owner,
	}
}
