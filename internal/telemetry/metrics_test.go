package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMetricsIsSingleton(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	require.Same(t, m, GetMetrics())

	// instruments from the default no-op provider are usable
	require.NotNil(t, m.RegistrationsAllocated)
	m.RegistrationsAllocated.Add(context.Background(), 1)
	m.EntityOperationDuration.Record(context.Background(), 1.5)
}

func TestTracer(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "test")
	defer span.End()
	require.NotNil(t, span)
}
