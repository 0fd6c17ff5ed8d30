package store

import (
	"context"
	"errors"
)

// Sentinel errors for document store operations
var (
	ErrNotFound   = errors.New("document not found")
	ErrConflict   = errors.New("document already exists")
	ErrValidation = errors.New("invalid document")
)

// Well known document fields every backend relies on.
const (
	FieldID           = "id"
	FieldRegistration = "registration"
	FieldOwner        = "owner"
)

// FindOptions controls ordering and paging of Find.
type FindOptions struct {
	// Skip is the number of matching documents to skip.
	Skip int64
	// Limit caps the number of documents returned, zero means no limit.
	Limit int64
	// SortBy is a string field used for ascending order, defaults to registration.
	SortBy string
}

// SortField returns the field Find should order by.
func (o FindOptions) SortField() string {
	if o.SortBy == "" {
		return FieldRegistration
	}
	return o.SortBy
}

// DocumentStore is the persistence collaborator behind every entity kind.
// Documents are grouped into named collections; within a collection both the
// id and registration fields are unique.
type DocumentStore interface {
	// InsertOne stores a new document.
	// Returns ErrConflict if the id or registration is already taken.
	InsertOne(ctx context.Context, collection string, doc Document) error

	// FindOne returns the first document matching the filter in sort order.
	// Returns ErrNotFound if nothing matches.
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)

	// Find returns all matching documents ordered by opts.SortField.
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error)

	// Count returns the number of matching documents.
	Count(ctx context.Context, collection string, filter Filter) (int64, error)

	// UpdateOne sets the top level fields in set on the document with the
	// given id and returns the stored result. Fields not named in set are
	// left as they are. Returns ErrNotFound if it does not exist and
	// ErrValidation if set touches id or registration.
	UpdateOne(ctx context.Context, collection string, id string, set Document) (Document, error)

	// DeleteOne removes the first matching document.
	// Returns ErrNotFound if nothing matches.
	DeleteOne(ctx context.Context, collection string, filter Filter) error

	// DeleteMany removes every matching document and returns how many were removed.
	DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error)

	// PullFromArray removes value from the string array field of every
	// matching document and returns how many documents changed.
	PullFromArray(ctx context.Context, collection string, filter Filter, field, value string) (int64, error)

	// AddToArray appends value to the string array field of every matching
	// document that doesn't already hold it and returns how many changed.
	AddToArray(ctx context.Context, collection string, filter Filter, field, value string) (int64, error)

	// IncrementCounter atomically adds one to the named counter and returns
	// the new value. Counters start at zero.
	IncrementCounter(ctx context.Context, name string) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
