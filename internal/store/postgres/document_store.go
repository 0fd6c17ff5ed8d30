package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sopdesk/internal/store"
)

// DocumentStore implements store.DocumentStore on a single JSONB table.
type DocumentStore struct {
	pool *pgxpool.Pool
}

// NewDocumentStore creates a PostgreSQL-backed document store using an existing pool.
// The store takes ownership of the pool and closes it in Close.
func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{
		pool: pool,
	}
}

// InsertOne stores a new document.
func (s *DocumentStore) InsertOne(ctx context.Context, collection string, doc store.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, registration, doc)
		VALUES ($1, $2, $3, $4)
	`, collection, doc.ID(), doc.Registration(), body)
	if err != nil {
		if isUniqueViolation(err) {
			return mapPostgresError(err)
		}
		return fmt.Errorf("failed to insert document: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("collection", collection).
		Str("registration", doc.Registration()).
		Msg("Inserted document")

	return nil
}

// FindOne returns the first matching document in registration order.
func (s *DocumentStore) FindOne(ctx context.Context, collection string, filter store.Filter) (store.Document, error) {
	docs, err := s.Find(ctx, collection, filter, store.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}
	return docs[0], nil
}

// Find returns all matching documents.
func (s *DocumentStore) Find(ctx context.Context, collection string, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	var b queryBuilder
	query := "SELECT doc FROM documents WHERE " + b.where(collection, filter) + b.page(opts)

	rows, err := s.pool.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", mapPostgresError(err))
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Document, error) {
		var body []byte
		if err := row.Scan(&body); err != nil {
			return nil, err
		}
		var doc store.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		return doc, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", mapPostgresError(err))
	}

	return docs, nil
}

// Count returns the number of matching documents.
func (s *DocumentStore) Count(ctx context.Context, collection string, filter store.Filter) (int64, error) {
	var b queryBuilder
	query := "SELECT count(*) FROM documents WHERE " + b.where(collection, filter)

	var n int64
	if err := s.pool.QueryRow(ctx, query, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", mapPostgresError(err))
	}

	return n, nil
}

// UpdateOne merges set into the stored document with a single jsonb concatenation.
func (s *DocumentStore) UpdateOne(ctx context.Context, collection string, id string, set store.Document) (store.Document, error) {
	if err := set.ValidateSet(); err != nil {
		return nil, err
	}

	patch, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var body []byte
	err = s.pool.QueryRow(ctx, `
		UPDATE documents SET doc = doc || $3::jsonb
		WHERE collection = $1 AND id = $2
		RETURNING doc
	`, collection, id, patch).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update document: %w", mapPostgresError(err))
	}

	var doc store.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	log.Debug().
		Str("collection", collection).
		Str("id", id).
		Int("fields", len(set)).
		Msg("Updated document")

	return doc, nil
}

// DeleteOne removes the first matching document.
func (s *DocumentStore) DeleteOne(ctx context.Context, collection string, filter store.Filter) error {
	var b queryBuilder
	where := b.where(collection, filter)
	page := b.page(store.FindOptions{Limit: 1})
	query := "DELETE FROM documents WHERE (collection, id) IN (SELECT collection, id FROM documents WHERE " + where + page + ")"

	result, err := s.pool.Exec(ctx, query, b.args...)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	log.Debug().Str("collection", collection).Msg("Deleted document")

	return nil
}

// DeleteMany removes every matching document.
func (s *DocumentStore) DeleteMany(ctx context.Context, collection string, filter store.Filter) (int64, error) {
	var b queryBuilder
	query := "DELETE FROM documents WHERE " + b.where(collection, filter)

	result, err := s.pool.Exec(ctx, query, b.args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("collection", collection).
		Int64("deleted", result.RowsAffected()).
		Msg("Deleted documents")

	return result.RowsAffected(), nil
}

// PullFromArray removes value from field in every matching document in a single statement.
func (s *DocumentStore) PullFromArray(ctx context.Context, collection string, filter store.Filter, field, value string) (int64, error) {
	var b queryBuilder
	f := b.arg(field)
	v := b.arg(value)

	query := `
		UPDATE documents SET doc = jsonb_set(doc, ARRAY[` + f + `::text], COALESCE(
			(SELECT jsonb_agg(e) FROM jsonb_array_elements(doc -> ` + f + `::text) AS e WHERE e <> to_jsonb(` + v + `::text)),
			'[]'::jsonb
		))
		WHERE ` + b.where(collection, filter.Has(field, value))

	result, err := s.pool.Exec(ctx, query, b.args...)
	if err != nil {
		return 0, fmt.Errorf("failed to pull from %s: %w", field, mapPostgresError(err))
	}

	return result.RowsAffected(), nil
}

// AddToArray appends value to field in every matching document missing it.
// A field that isn't an array is treated as empty.
func (s *DocumentStore) AddToArray(ctx context.Context, collection string, filter store.Filter, field, value string) (int64, error) {
	var b queryBuilder
	f := b.arg(field)
	v := b.arg(value)
	current := `(CASE jsonb_typeof(doc -> ` + f + `::text) WHEN 'array' THEN doc -> ` + f + `::text ELSE '[]'::jsonb END)`

	query := `
		UPDATE documents SET doc = jsonb_set(doc, ARRAY[` + f + `::text], ` + current + ` || jsonb_build_array(` + v + `::text))
		WHERE ` + b.where(collection, filter) + `
		AND NOT ` + current + ` @> jsonb_build_array(` + v + `::text)`

	result, err := s.pool.Exec(ctx, query, b.args...)
	if err != nil {
		return 0, fmt.Errorf("failed to add to %s: %w", field, mapPostgresError(err))
	}

	return result.RowsAffected(), nil
}

// IncrementCounter upserts the named counter and returns its new value.
func (s *DocumentStore) IncrementCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`, name).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, mapPostgresError(err))
	}

	return value, nil
}

// Close closes the underlying pool.
func (s *DocumentStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks database connectivity, used by the health endpoint.
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres unreachable: %w", err)
	}
	return nil
}
