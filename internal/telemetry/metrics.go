package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/wolfeidau/sopdesk"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Registration metrics
	RegistrationsAllocated metric.Int64Counter
	RegistrationConflicts  metric.Int64Counter

	// Entity store metrics
	EntityOperations        metric.Int64Counter
	EntityOperationDuration metric.Float64Histogram
	CascadeDeleted          metric.Int64Counter

	// Auth metrics
	LoginsTotal         metric.Int64Counter
	LoginFailuresTotal  metric.Int64Counter
	TokenCacheHits      metric.Int64Counter
	TokenCacheMisses    metric.Int64Counter
	AuthorizationDenied metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(instrumentationName)

	m := &Metrics{}

	m.RegistrationsAllocated, _ = meter.Int64Counter(
		"sopdesk.registrations.allocated.total",
		metric.WithDescription("Total number of registration numbers handed out"),
		metric.WithUnit("{registration}"),
	)

	m.RegistrationConflicts, _ = meter.Int64Counter(
		"sopdesk.registrations.conflicts.total",
		metric.WithDescription("Total number of inserts retried after a registration collision"),
		metric.WithUnit("{conflict}"),
	)

	m.EntityOperations, _ = meter.Int64Counter(
		"sopdesk.entities.operations.total",
		metric.WithDescription("Total number of entity store operations"),
		metric.WithUnit("{operation}"),
	)

	m.EntityOperationDuration, _ = meter.Float64Histogram(
		"sopdesk.entities.operations.duration",
		metric.WithDescription("Duration of entity store operations"),
		metric.WithUnit("ms"),
	)

	m.CascadeDeleted, _ = meter.Int64Counter(
		"sopdesk.entities.cascade_deleted.total",
		metric.WithDescription("Total number of documents removed by cascading deletes"),
		metric.WithUnit("{document}"),
	)

	m.LoginsTotal, _ = meter.Int64Counter(
		"sopdesk.auth.logins.total",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)

	m.LoginFailuresTotal, _ = meter.Int64Counter(
		"sopdesk.auth.login_failures.total",
		metric.WithDescription("Total number of rejected logins"),
		metric.WithUnit("{login}"),
	)

	m.TokenCacheHits, _ = meter.Int64Counter(
		"sopdesk.auth.token_cache.hits.total",
		metric.WithDescription("Token validations served from the cache"),
		metric.WithUnit("{token}"),
	)

	m.TokenCacheMisses, _ = meter.Int64Counter(
		"sopdesk.auth.token_cache.misses.total",
		metric.WithDescription("Token validations that verified the signature"),
		metric.WithUnit("{token}"),
	)

	m.AuthorizationDenied, _ = meter.Int64Counter(
		"sopdesk.auth.authorization_denied.total",
		metric.WithDescription("Total number of requests refused by an authorization rule"),
		metric.WithUnit("{request}"),
	)

	return m
}
