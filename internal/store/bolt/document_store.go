// Package bolt provides an embedded, single file store.DocumentStore on bbolt.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sopdesk/internal/store"
	bolt "go.etcd.io/bbolt"
)

var countersBucket = []byte("counters")

// DocumentStore keeps each collection in a bucket keyed by id, with a
// sibling bucket mapping registration to id.
type DocumentStore struct {
	db *bolt.DB
}

// Open opens (or creates) the database file at path.
func Open(path string) (*DocumentStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(countersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise bolt database: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opened bolt document store")

	return &DocumentStore{db: db}, nil
}

func docsBucket(collection string) []byte {
	return []byte("docs/" + collection)
}

func regsBucket(collection string) []byte {
	return []byte("registrations/" + collection)
}

// InsertOne stores a new document.
func (s *DocumentStore) InsertOne(ctx context.Context, collection string, doc store.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		docs, regs, err := createBuckets(tx, collection)
		if err != nil {
			return err
		}

		if docs.Get([]byte(doc.ID())) != nil {
			return fmt.Errorf("%w: id %s", store.ErrConflict, doc.ID())
		}
		if regs.Get([]byte(doc.Registration())) != nil {
			return fmt.Errorf("%w: registration %s", store.ErrConflict, doc.Registration())
		}

		if err := docs.Put([]byte(doc.ID()), body); err != nil {
			return err
		}
		return regs.Put([]byte(doc.Registration()), []byte(doc.ID()))
	})
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

// Find scans the collection and returns all matching documents.
func (s *DocumentStore) Find(ctx context.Context, collection string, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matches []store.Document
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		matches, err = scan(tx, collection, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	page := store.SortAndPage(matches, opts)
	if page == nil {
		page = []store.Document{}
	}
	return page, nil
}

// Count returns the number of matching documents.
func (s *DocumentStore) Count(ctx context.Context, collection string, filter store.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		matches, err := scan(tx, collection, filter)
		n = int64(len(matches))
		return err
	})
	return n, err
}

// UpdateOne merges set into the stored document inside a write transaction.
func (s *DocumentStore) UpdateOne(ctx context.Context, collection string, id string, set store.Document) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := set.ValidateSet(); err != nil {
		return nil, err
	}

	var updated store.Document
	err := s.db.Update(func(tx *bolt.Tx) error {
		docs := tx.Bucket(docsBucket(collection))
		if docs == nil {
			return store.ErrNotFound
		}

		raw := docs.Get([]byte(id))
		if raw == nil {
			return store.ErrNotFound
		}

		doc, err := decode(raw)
		if err != nil {
			return err
		}
		for field, value := range set {
			doc[field] = value
		}

		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
		if err := docs.Put([]byte(id), body); err != nil {
			return err
		}

		// decode again so callers never share maps with set
		updated, err = decode(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteOne removes the first matching document.
func (s *DocumentStore) DeleteOne(ctx context.Context, collection string, filter store.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		matches, err := scan(tx, collection, filter)
		if err != nil {
			return err
		}

		matches = store.SortAndPage(matches, store.FindOptions{Limit: 1})
		if len(matches) == 0 {
			return store.ErrNotFound
		}

		return remove(tx, collection, matches[0])
	})
}

// DeleteMany removes every matching document.
func (s *DocumentStore) DeleteMany(ctx context.Context, collection string, filter store.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		// collect first, bolt doesn't allow mutation during ForEach
		matches, err := scan(tx, collection, filter)
		if err != nil {
			return err
		}

		for _, doc := range matches {
			if err := remove(tx, collection, doc); err != nil {
				return err
			}
		}
		n = int64(len(matches))
		return nil
	})
	return n, err
}

// PullFromArray removes value from field in every matching document.
func (s *DocumentStore) PullFromArray(ctx context.Context, collection string, filter store.Filter, field, value string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var modified int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		matches, err := scan(tx, collection, filter)
		if err != nil {
			return err
		}

		docs := tx.Bucket(docsBucket(collection))
		for _, doc := range matches {
			if !doc.Pull(field, value) {
				continue
			}

			body, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
			if err := docs.Put([]byte(doc.ID()), body); err != nil {
				return err
			}
			modified++
		}
		return nil
	})
	return modified, err
}

// AddToArray appends value to field in every matching document missing it.
func (s *DocumentStore) AddToArray(ctx context.Context, collection string, filter store.Filter, field, value string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var modified int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		matches, err := scan(tx, collection, filter)
		if err != nil {
			return err
		}

		docs := tx.Bucket(docsBucket(collection))
		for _, doc := range matches {
			if !doc.Add(field, value) {
				continue
			}

			body, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
			if err := docs.Put([]byte(doc.ID()), body); err != nil {
				return err
			}
			modified++
		}
		return nil
	})
	return modified, err
}

// IncrementCounter bumps the named counter inside a write transaction.
func (s *DocumentStore) IncrementCounter(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var value uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(countersBucket)

		if raw := b.Get([]byte(name)); raw != nil {
			value = binary.BigEndian.Uint64(raw)
		}
		value++

		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], value)
		return b.Put([]byte(name), buf[:])
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}

	return int64(value), nil
}

// Close closes the database file.
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

func createBuckets(tx *bolt.Tx, collection string) (*bolt.Bucket, *bolt.Bucket, error) {
	docs, err := tx.CreateBucketIfNotExists(docsBucket(collection))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bucket for %s: %w", collection, err)
	}
	regs, err := tx.CreateBucketIfNotExists(regsBucket(collection))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create registration bucket for %s: %w", collection, err)
	}
	return docs, regs, nil
}

func scan(tx *bolt.Tx, collection string, filter store.Filter) ([]store.Document, error) {
	docs := tx.Bucket(docsBucket(collection))
	if docs == nil {
		return nil, nil
	}

	var matches []store.Document
	err := docs.ForEach(func(_, raw []byte) error {
		doc, err := decode(raw)
		if err != nil {
			return err
		}
		if filter.Matches(doc) {
			matches = append(matches, doc)
		}
		return nil
	})
	return matches, err
}

func remove(tx *bolt.Tx, collection string, doc store.Document) error {
	if err := tx.Bucket(docsBucket(collection)).Delete([]byte(doc.ID())); err != nil {
		return err
	}
	return tx.Bucket(regsBucket(collection)).Delete([]byte(doc.Registration()))
}

func decode(raw []byte) (store.Document, error) {
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}
