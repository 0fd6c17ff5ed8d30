// Package entity implements tenant scoped CRUD for every entity kind on top
// of a store.DocumentStore.
package entity

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
	"github.com/wolfeidau/sopdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Allocator hands out registration numbers, see registration.Allocator.
type Allocator interface {
	Allocate(ctx context.Context, kind models.Kind, owner string) (string, error)
}

// Patch holds the fields of a partial update keyed by document field name.
// Nil values are ignored.
type Patch map[string]any

// PatchFrom converts a request struct into a Patch using its json tags.
// Fields tagged omitempty with nil pointers are left out.
func PatchFrom(v any) (Patch, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrValidation, err)
	}

	var p Patch
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrValidation, err)
	}
	return p, nil
}

// ListOptions select one page of entities.
type ListOptions struct {
	// Owner restricts results to one tenant. Required.
	Owner string
	// Caller, when set, applies the kind's member scope for that user.
	Caller string
	// Filter adds further conditions.
	Filter store.Filter
	// Page is the zero-based page index.
	Page int64
	// Limit is the page size, 0 selects the default.
	Limit int64
	// Field and Query add a case-insensitive substring search.
	Field string
	Query string
}

type config struct {
	now        func() time.Time
	newID      func() string
	maxRetries uint
	backoff    func() backoff.BackOff
}

// Option configures a Store.
type Option func(*config)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithIDGenerator overrides the id source.
func WithIDGenerator(newID func() string) Option {
	return func(c *config) { c.newID = newID }
}

// WithMaxRetries bounds the number of insert attempts on registration conflicts.
func WithMaxRetries(n uint) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithBackOff overrides the delay between insert attempts.
func WithBackOff(b func() backoff.BackOff) Option {
	return func(c *config) { c.backoff = b }
}

// NewID returns 24 hex characters taken from a UUIDv7, so ids sort by creation time.
func NewID() string {
	id := uuid.Must(uuid.NewV7())
	return hex.EncodeToString(id[:12])
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	return b
}

// Store provides CRUD for one kind. T is the entity struct, P its pointer.
type Store[T any, P interface {
	*T
	models.Entity
}] struct {
	kind  models.Kind
	docs  store.DocumentStore
	alloc Allocator
	cfg   config
}

// New creates a store for kind.
func New[T any, P interface {
	*T
	models.Entity
}](docs store.DocumentStore, alloc Allocator, kind models.Kind, opts ...Option) *Store[T, P] {
	cfg := config{
		now:        func() time.Time { return time.Now() },
		newID:      NewID,
		maxRetries: 5,
		backoff:    defaultBackOff,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store[T, P]{
		kind:  kind,
		docs:  docs,
		alloc: alloc,
		cfg:   cfg,
	}
}

// Kind returns the kind managed by the store.
func (s *Store[T, P]) Kind() models.Kind {
	return s.kind
}

func (s *Store[T, P]) collection() string {
	return s.kind.Collection()
}

// timestamp is UTC at microsecond precision so values survive every backend unchanged.
func (s *Store[T, P]) timestamp() time.Time {
	return s.cfg.now().UTC().Truncate(time.Microsecond)
}

// Create allocates a registration, stamps the envelope and inserts attrs.
// Admins own themselves and ignore owner. attrs is not modified.
func (s *Store[T, P]) Create(ctx context.Context, attrs P, owner string) (P, error) {
	ctx, span, done := s.instrument(ctx, "create")
	defer done()

	tries := 0
	op := func() (P, error) {
		tries++

		reg, err := s.alloc.Allocate(ctx, s.kind, owner)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		var ent T = *attrs
		meta := P(&ent).Envelope()

		now := s.timestamp()
		meta.ID = s.cfg.newID()
		meta.Registration = reg
		meta.Owner = owner
		if s.kind == models.KindAdmin {
			meta.Owner = reg
		}
		meta.CreatedAt = now
		meta.UpdatedAt = now

		doc, err := toDocument(P(&ent))
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		if err := s.docs.InsertOne(ctx, s.collection(), doc); err != nil {
			if errors.Is(err, store.ErrConflict) {
				telemetry.GetMetrics().RegistrationConflicts.Add(ctx, 1,
					metric.WithAttributes(attribute.String("kind", string(s.kind))))
				log.Warn().
					Str("kind", string(s.kind)).
					Str("registration", reg).
					Int("attempt", tries).
					Msg("Registration collision, retrying")
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}

		return P(&ent), nil
	}

	ent, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(s.cfg.backoff()),
		backoff.WithMaxTries(s.cfg.maxRetries),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("registration", ent.Envelope().Registration))

	return ent, nil
}

// GetByRegistration fetches one entity. A non-empty scopeOwner also filters
// on owner so lookups outside the caller's tenant miss.
func (s *Store[T, P]) GetByRegistration(ctx context.Context, registration, scopeOwner string) (P, error) {
	filter := store.Where(models.FieldRegistration, registration)
	if scopeOwner != "" {
		filter = filter.Equal(models.FieldOwner, scopeOwner)
	}
	return s.FindOne(ctx, filter)
}

// GetByField fetches the first entity with field == value.
func (s *Store[T, P]) GetByField(ctx context.Context, field, value string) (P, error) {
	return s.FindOne(ctx, store.Where(field, value))
}

// FindOne fetches the first entity matching filter.
func (s *Store[T, P]) FindOne(ctx context.Context, filter store.Filter) (P, error) {
	ctx, _, done := s.instrument(ctx, "get")
	defer done()

	doc, err := s.docs.FindOne(ctx, s.collection(), filter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", s.kind.Title(), store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", s.kind, err)
	}

	return fromDocument[T, P](doc)
}

// FindAll returns every entity matching filter in registration order.
func (s *Store[T, P]) FindAll(ctx context.Context, filter store.Filter) ([]P, error) {
	docs, err := s.docs.Find(ctx, s.collection(), filter, store.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", s.kind, err)
	}
	return fromDocuments[T, P](docs)
}

// Update persists the non-nil fields of patch plus a fresh updated_at.
// Only those fields are written, so concurrent changes to other fields of the
// stored entity survive. ent supplies the values the patch is checked
// against: envelope fields can't be patched; unknown fields and type
// mismatches are rejected. updated_at is refreshed even for an empty patch.
func (s *Store[T, P]) Update(ctx context.Context, ent P, patch Patch) (P, error) {
	ctx, _, done := s.instrument(ctx, "update")
	defer done()

	for field := range patch {
		if slices.Contains(models.ImmutableFields, field) {
			return nil, fmt.Errorf("%w: field %q is immutable", store.ErrValidation, field)
		}
	}

	doc, err := toDocument(ent)
	if err != nil {
		return nil, err
	}

	for field, value := range patch {
		if value == nil {
			continue
		}
		doc[field] = value
	}
	doc[models.FieldUpdatedAt] = s.timestamp()

	checked, err := decodeStrict[T, P](doc)
	if err != nil {
		return nil, err
	}

	// re-encode so only normalised values are stored
	normalised, err := toDocument(checked)
	if err != nil {
		return nil, err
	}

	set := store.Document{models.FieldUpdatedAt: normalised[models.FieldUpdatedAt]}
	for field, value := range patch {
		if value == nil {
			continue
		}
		if v, ok := normalised[field]; ok {
			value = v
		}
		set[field] = value
	}

	meta := ent.Envelope()
	stored, err := s.docs.UpdateOne(ctx, s.collection(), meta.ID, set)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", s.kind.Title(), store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update %s %s: %w", s.kind, meta.Registration, err)
	}

	log.Debug().
		Str("kind", string(s.kind)).
		Str("registration", meta.Registration).
		Int("fields", len(set)-1).
		Msg("Updated entity")

	return fromDocument[T, P](stored)
}

// List returns one page of the owner's entities in registration order.
func (s *Store[T, P]) List(ctx context.Context, opts ListOptions) (*models.Page[P], error) {
	ctx, _, done := s.instrument(ctx, "list")
	defer done()

	if opts.Page < 0 {
		return nil, fmt.Errorf("%w: page must not be negative", store.ErrValidation)
	}
	switch {
	case opts.Limit < 0:
		return nil, fmt.Errorf("%w: limit must not be negative", store.ErrValidation)
	case opts.Limit == 0:
		opts.Limit = models.DefaultPageLimit
	case opts.Limit > models.MaxPageLimit:
		opts.Limit = models.MaxPageLimit
	}
	if opts.Page > (math.MaxInt64-1)/opts.Limit {
		return nil, fmt.Errorf("%w: page %d is out of range", store.ErrValidation, opts.Page)
	}

	page := &models.Page[P]{
		Pagination: models.Pagination{Page: opts.Page + 1, Limit: opts.Limit},
		Results:    []P{},
	}

	filter := store.Where(models.FieldOwner, opts.Owner).And(opts.Filter)

	if opts.Caller != "" {
		caller, err := s.caller(ctx, opts.Caller)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return page, nil
			}
			return nil, err
		}
		filter = filter.And(MemberScope(s.kind, caller))
	}

	if opts.Field != "" {
		if !s.kind.Searchable(opts.Field) {
			return nil, fmt.Errorf("%w: field %q is not searchable", store.ErrValidation, opts.Field)
		}
		filter = filter.Like(opts.Field, opts.Query)
	}

	total, err := s.docs.Count(ctx, s.collection(), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", s.kind, err)
	}
	page.Pagination.Total = total

	docs, err := s.docs.Find(ctx, s.collection(), filter, store.FindOptions{
		Skip:   opts.Page * opts.Limit,
		Limit:  opts.Limit,
		SortBy: models.FieldRegistration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.kind, err)
	}

	page.Results, err = fromDocuments[T, P](docs)
	if err != nil {
		return nil, err
	}

	return page, nil
}

// Delete removes ent by registration.
func (s *Store[T, P]) Delete(ctx context.Context, ent P) (*models.ActionResult, error) {
	ctx, _, done := s.instrument(ctx, "delete")
	defer done()

	meta := ent.Envelope()
	err := s.docs.DeleteOne(ctx, s.collection(), store.Where(models.FieldRegistration, meta.Registration))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", s.kind.Title(), store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to delete %s %s: %w", s.kind, meta.Registration, err)
	}

	log.Debug().
		Str("kind", string(s.kind)).
		Str("registration", meta.Registration).
		Msg("Deleted entity")

	return models.Deleted(s.kind), nil
}

// DeleteMany removes every entity matching filter.
func (s *Store[T, P]) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	n, err := s.docs.DeleteMany(ctx, s.collection(), filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", s.kind, err)
	}
	return n, nil
}

// PullFromArray removes value from the list field of every matching entity.
func (s *Store[T, P]) PullFromArray(ctx context.Context, filter store.Filter, field, value string) (int64, error) {
	n, err := s.docs.PullFromArray(ctx, s.collection(), filter, field, value)
	if err != nil {
		return 0, fmt.Errorf("failed to pull %s from %s: %w", value, s.kind, err)
	}
	return n, nil
}

// AddToArray appends value to the list field of every matching entity that
// doesn't already hold it.
func (s *Store[T, P]) AddToArray(ctx context.Context, filter store.Filter, field, value string) (int64, error) {
	n, err := s.docs.AddToArray(ctx, s.collection(), filter, field, value)
	if err != nil {
		return 0, fmt.Errorf("failed to add %s to %s: %w", value, s.kind, err)
	}
	return n, nil
}

func (s *Store[T, P]) caller(ctx context.Context, registration string) (*models.User, error) {
	doc, err := s.docs.FindOne(ctx, models.KindUser.Collection(), store.Where(models.FieldRegistration, registration))
	if err != nil {
		return nil, err
	}
	return fromDocument[models.User](doc)
}

// instrument starts a span and returns a func recording the operation metrics.
func (s *Store[T, P]) instrument(ctx context.Context, op string) (context.Context, trace.Span, func()) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "entity."+op,
		trace.WithAttributes(attribute.String("kind", string(s.kind))))

	return ctx, span, func() {
		attrs := metric.WithAttributes(
			attribute.String("kind", string(s.kind)),
			attribute.String("operation", op),
		)
		m := telemetry.GetMetrics()
		m.EntityOperations.Add(ctx, 1, attrs)
		m.EntityOperationDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
		span.End()
	}
}

// MemberScope restricts a listing to what a non-owner caller may see.
func MemberScope(kind models.Kind, caller *models.User) store.Filter {
	switch kind {
	case models.KindDepartment:
		return store.Where(models.FieldCompany, caller.Company).
			OneOf(models.FieldRegistration, caller.Departments)
	case models.KindCompany:
		return store.Where(models.FieldRegistration, caller.Company)
	default:
		return store.Where(models.FieldCompany, caller.Company)
	}
}

func toDocument(v any) (store.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}

	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	return doc, nil
}

func fromDocument[T any, P interface{ *T }](doc store.Document) (P, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode entity: %w", err)
	}

	var ent T
	if err := json.Unmarshal(raw, &ent); err != nil {
		return nil, fmt.Errorf("failed to decode entity: %w", err)
	}
	return P(&ent), nil
}

func fromDocuments[T any, P interface{ *T }](docs []store.Document) ([]P, error) {
	out := make([]P, 0, len(docs))
	for _, doc := range docs {
		ent, err := fromDocument[T, P](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, nil
}

// decodeStrict decodes a patched document, rejecting unknown fields and wrong types.
func decodeStrict[T any, P interface{ *T }](doc store.Document) (P, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrValidation, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var ent T
	if err := dec.Decode(&ent); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrValidation, err)
	}
	return P(&ent), nil
}
