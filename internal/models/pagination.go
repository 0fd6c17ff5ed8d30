package models

// Pagination bounds, page numbers are zero-based on input.
const (
	DefaultPageLimit int64 = 10
	MaxPageLimit     int64 = 100
)

// Pagination describes the page returned; Page is one-based.
type Pagination struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
}

// Page is one page of list results.
type Page[T any] struct {
	Pagination Pagination `json:"pagination"`
	Results    []T        `json:"results"`
}
