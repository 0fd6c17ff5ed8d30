package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sopdesk/internal/store"
	"github.com/wolfeidau/sopdesk/internal/store/storetest"
)

func newTestStore(t *testing.T) *DocumentStore {
	s, err := Open(filepath.Join(t.TempDir(), "sopdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDocumentStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		return newTestStore(t)
	})
}

func TestDocumentStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sopdesk.db")

	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.InsertOne(ctx, "users", store.Document{
		"id":           "a1",
		"registration": "001.0001.000",
		"owner":        "001.0001.000",
	}))
	n, err := s.IncrementCounter(ctx, "admin")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	doc, err := s.FindOne(ctx, "users", store.Where("registration", "001.0001.000"))
	require.NoError(t, err)
	require.Equal(t, "a1", doc.ID())

	n, err = s.IncrementCounter(ctx, "admin")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestDocumentStoreCanceledContext(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.IncrementCounter(ctx, "admin")
	require.ErrorIs(t, err, context.Canceled)
}
