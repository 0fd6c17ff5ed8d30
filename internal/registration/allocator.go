package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
	"github.com/wolfeidau/sopdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sentinel errors for allocation
var (
	ErrUnknownKind = errors.New("unknown entity kind")
	ErrExhausted   = errors.New("registration sequence exhausted")
)

const adminCounter = "admin"

// Allocator hands out registration numbers from per owner counters held in
// the document store. Counters only move forward so a registration is never
// handed out twice, even after the entity holding it is deleted.
type Allocator struct {
	scheme Scheme
	docs   store.DocumentStore
}

// NewAllocator creates an allocator. The scheme must already be valid.
func NewAllocator(docs store.DocumentStore, scheme Scheme) *Allocator {
	return &Allocator{
		scheme: scheme,
		docs:   docs,
	}
}

// Scheme returns the scheme in use.
func (a *Allocator) Scheme() Scheme {
	return a.scheme
}

// Allocate returns the next registration for kind. Admins ignore owner and
// draw from the global sequence; every other kind requires owner to be the
// registration of an existing admin.
func (a *Allocator) Allocate(ctx context.Context, kind models.Kind, owner string) (string, error) {
	spec, ok := a.scheme.Kinds[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	var (
		reg string
		err error
	)
	if kind == models.KindAdmin {
		reg, err = a.allocateAdmin(ctx, spec)
	} else {
		reg, err = a.allocateOwned(ctx, kind, spec, owner)
	}
	if err != nil {
		return "", err
	}

	telemetry.GetMetrics().RegistrationsAllocated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", string(kind))))

	log.Debug().Str("kind", string(kind)).Str("registration", reg).Msg("Allocated registration")

	return reg, nil
}

func (a *Allocator) allocateAdmin(ctx context.Context, spec KindSpec) (string, error) {
	n, err := a.docs.IncrementCounter(ctx, adminCounter)
	if err != nil {
		return "", fmt.Errorf("failed to allocate admin registration: %w", err)
	}

	if n > capacity(a.scheme.TenantWidth) {
		return "", fmt.Errorf("%w: admin tenant %d exceeds %d digits", ErrExhausted, n, a.scheme.TenantWidth)
	}

	return models.Registration{
		Code:     spec.Code,
		Tenant:   pad(n, a.scheme.TenantWidth),
		Sequence: strings.Repeat("0", spec.SequenceWidth),
	}.String(), nil
}

func (a *Allocator) allocateOwned(ctx context.Context, kind models.Kind, spec KindSpec, owner string) (string, error) {
	parsed, err := models.ParseRegistration(owner)
	if err != nil {
		return "", fmt.Errorf("owner %q: %w", owner, store.ErrNotFound)
	}

	// the owner must be a root admin: registration and owner are the same
	_, err = a.docs.FindOne(ctx, models.KindAdmin.Collection(),
		store.Where(models.FieldRegistration, owner).Equal(models.FieldOwner, owner))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("owner %s: %w", owner, store.ErrNotFound)
		}
		return "", fmt.Errorf("failed to resolve owner %s: %w", owner, err)
	}

	n, err := a.docs.IncrementCounter(ctx, string(kind)+":"+owner)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s registration: %w", kind, err)
	}

	if n > capacity(spec.SequenceWidth) {
		return "", fmt.Errorf("%w: %s sequence %d for owner %s exceeds %d digits", ErrExhausted, kind, n, owner, spec.SequenceWidth)
	}

	return models.Registration{
		Code:     spec.Code,
		Tenant:   parsed.Tenant,
		Sequence: pad(n, spec.SequenceWidth),
	}.String(), nil
}
