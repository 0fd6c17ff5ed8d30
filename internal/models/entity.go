package models

import (
	"fmt"
	"time"
)

// Meta is the envelope shared by every stored entity.
type Meta struct {
	ID           string    `json:"id"`
	Registration string    `json:"registration"`
	Owner        string    `json:"owner"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Envelope gives generic code access to the embedded Meta.
func (m *Meta) Envelope() *Meta {
	return m
}

// Entity is implemented by pointers to every stored kind.
type Entity interface {
	Envelope() *Meta
	Resource() Resource
}

// Resource is the view of an entity that authorization rules inspect.
type Resource struct {
	Kind         Kind
	Registration string
	Owner        string
	Refs         map[string]string   // single registration references, e.g. company
	Lists        map[string][]string // registration lists, e.g. departments
}

// ActionResult reports the outcome of a mutating operation that returns no entity.
type ActionResult struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// Deleted builds the result of a successful delete.
func Deleted(kind Kind) *ActionResult {
	return &ActionResult{
		Action:  "delete",
		Message: fmt.Sprintf("%s deleted successfully", kind.Title()),
	}
}
