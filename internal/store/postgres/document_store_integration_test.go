//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/sopdesk/internal/store"
	"github.com/wolfeidau/sopdesk/internal/store/storetest"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
}

func TestIntegration_DocumentStore(t *testing.T) {
	ctx := context.Background()
	connString := setupPostgresContainer(t, ctx)

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(ctx, pool))
	// a second run must be a no-op
	require.NoError(t, RunMigrations(ctx, pool))

	docs := NewDocumentStore(pool)
	t.Cleanup(func() { _ = docs.Close() })

	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		_, err := pool.Exec(ctx, `TRUNCATE documents, counters`)
		require.NoError(t, err)
		return docs
	})

	require.NoError(t, docs.Ping(ctx))
}
