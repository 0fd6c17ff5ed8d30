package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wolfeidau/sopdesk/internal/store"
)

// DocumentStore implements store.DocumentStore using in-memory storage.
// This implementation is for testing and development only - data is lost on restart.
type DocumentStore struct {
	mu sync.RWMutex

	collections   map[string]map[string]store.Document // collection -> id -> document
	registrations map[string]map[string]string         // collection -> registration -> id
	counters      map[string]int64
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		collections:   make(map[string]map[string]store.Document),
		registrations: make(map[string]map[string]string),
		counters:      make(map[string]int64),
	}
}

// InsertOne stores a copy of doc.
func (s *DocumentStore) InsertOne(ctx context.Context, collection string, doc store.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, regs := s.collection(collection)

	if _, exists := docs[doc.ID()]; exists {
		return fmt.Errorf("%w: id %s", store.ErrConflict, doc.ID())
	}
	if _, exists := regs[doc.Registration()]; exists {
		return fmt.Errorf("%w: registration %s", store.ErrConflict, doc.Registration())
	}

	docs[doc.ID()] = doc.Clone()
	regs[doc.Registration()] = doc.ID()

	return nil
}

// FindOne returns the first matching document in registration order.
func (s *DocumentStore) FindOne(ctx context.Context, collection string, filter store.Filter) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := store.SortAndPage(s.match(collection, filter), store.FindOptions{Limit: 1})
	if len(matches) == 0 {
		return nil, store.ErrNotFound
	}

	return matches[0].Clone(), nil
}

// Find returns copies of all matching documents.
func (s *DocumentStore) Find(ctx context.Context, collection string, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := store.SortAndPage(s.match(collection, filter), opts)

	result := make([]store.Document, 0, len(matches))
	for _, doc := range matches {
		result = append(result, doc.Clone())
	}

	return result, nil
}

// Count returns the number of matching documents.
func (s *DocumentStore) Count(ctx context.Context, collection string, filter store.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.match(collection, filter))), nil
}

// UpdateOne merges set into the stored document under the write lock.
func (s *DocumentStore) UpdateOne(ctx context.Context, collection string, id string, set store.Document) (store.Document, error) {
	if err := set.ValidateSet(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.collections[collection][id]
	if !exists {
		return nil, store.ErrNotFound
	}

	for field, value := range set.Clone() {
		doc[field] = value
	}

	return doc.Clone(), nil
}

// DeleteOne removes the first matching document.
func (s *DocumentStore) DeleteOne(ctx context.Context, collection string, filter store.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := store.SortAndPage(s.match(collection, filter), store.FindOptions{Limit: 1})
	if len(matches) == 0 {
		return store.ErrNotFound
	}

	s.remove(collection, matches[0])

	return nil
}

// DeleteMany removes every matching document.
func (s *DocumentStore) DeleteMany(ctx context.Context, collection string, filter store.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := s.match(collection, filter)
	for _, doc := range matches {
		s.remove(collection, doc)
	}

	return int64(len(matches)), nil
}

// PullFromArray removes value from field in every matching document.
func (s *DocumentStore) PullFromArray(ctx context.Context, collection string, filter store.Filter, field, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	for _, doc := range s.match(collection, filter) {
		// match returns the stored maps, so Pull updates in place
		if doc.Pull(field, value) {
			modified++
		}
	}

	return modified, nil
}

// AddToArray appends value to field in every matching document missing it.
func (s *DocumentStore) AddToArray(ctx context.Context, collection string, filter store.Filter, field, value string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var modified int64
	for _, doc := range s.match(collection, filter) {
		if doc.Add(field, value) {
			modified++
		}
	}

	return modified, nil
}

// IncrementCounter adds one to the named counter.
func (s *DocumentStore) IncrementCounter(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[name]++

	return s.counters[name], nil
}

// Close is a no-op for the memory store.
func (s *DocumentStore) Close() error {
	return nil
}

// collection returns the maps for a collection, creating them on first use.
// Callers must hold the write lock.
func (s *DocumentStore) collection(name string) (map[string]store.Document, map[string]string) {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]store.Document)
		s.collections[name] = docs
		s.registrations[name] = make(map[string]string)
	}
	return docs, s.registrations[name]
}

// match returns the stored (uncloned) documents matching filter.
func (s *DocumentStore) match(collection string, filter store.Filter) []store.Document {
	var result []store.Document
	for _, doc := range s.collections[collection] {
		if filter.Matches(doc) {
			result = append(result, doc)
		}
	}
	return result
}

func (s *DocumentStore) remove(collection string, doc store.Document) {
	delete(s.collections[collection], doc.ID())
	delete(s.registrations[collection], doc.Registration())
}
