package registration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sopdesk/internal/models"
	"github.com/wolfeidau/sopdesk/internal/store"
	"github.com/wolfeidau/sopdesk/internal/store/memory"
)

func seedAdmin(t *testing.T, docs store.DocumentStore, reg string) {
	t.Helper()
	err := docs.InsertOne(context.Background(), "users", store.Document{
		"id":           "id-" + reg,
		"registration": reg,
		"owner":        reg,
		"role":         "admin",
	})
	require.NoError(t, err)
}

func TestAllocateAdmin(t *testing.T) {
	ctx := context.Background()
	alloc := NewAllocator(memory.NewDocumentStore(), DefaultScheme())

	first, err := alloc.Allocate(ctx, models.KindAdmin, "")
	require.NoError(t, err)
	require.Equal(t, "001.0001.000", first)

	second, err := alloc.Allocate(ctx, models.KindAdmin, "ignored")
	require.NoError(t, err)
	require.Equal(t, "001.0002.000", second)
}

func TestAllocateOwned(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocumentStore()
	alloc := NewAllocator(docs, DefaultScheme())

	seedAdmin(t, docs, "001.0001.000")
	seedAdmin(t, docs, "001.0002.000")

	t.Run("sequences are per kind and owner", func(t *testing.T) {
		reg, err := alloc.Allocate(ctx, models.KindCompany, "001.0001.000")
		require.NoError(t, err)
		require.Equal(t, "002.0001.001", reg)

		reg, err = alloc.Allocate(ctx, models.KindCompany, "001.0001.000")
		require.NoError(t, err)
		require.Equal(t, "002.0001.002", reg)

		reg, err = alloc.Allocate(ctx, models.KindDepartment, "001.0001.000")
		require.NoError(t, err)
		require.Equal(t, "003.0001.001", reg)

		reg, err = alloc.Allocate(ctx, models.KindUser, "001.0001.000")
		require.NoError(t, err)
		require.Equal(t, "001.0001.001", reg)

		reg, err = alloc.Allocate(ctx, models.KindCompany, "001.0002.000")
		require.NoError(t, err)
		require.Equal(t, "002.0002.001", reg)
	})

	t.Run("unknown owner", func(t *testing.T) {
		_, err := alloc.Allocate(ctx, models.KindUser, "001.0009.000")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("owner that is not an admin", func(t *testing.T) {
		require.NoError(t, docs.InsertOne(ctx, "users", store.Document{
			"id":           "plain",
			"registration": "001.0001.050",
			"owner":        "001.0001.000",
		}))
		_, err := alloc.Allocate(ctx, models.KindUser, "001.0001.050")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("malformed owner", func(t *testing.T) {
		_, err := alloc.Allocate(ctx, models.KindUser, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("failed owner lookup consumes no sequence", func(t *testing.T) {
		_, err := alloc.Allocate(ctx, models.KindDepartment, "001.0009.000")
		require.ErrorIs(t, err, store.ErrNotFound)

		n, err := docs.IncrementCounter(ctx, "department:001.0009.000")
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := alloc.Allocate(ctx, models.Kind("invoice"), "001.0001.000")
		require.ErrorIs(t, err, ErrUnknownKind)
	})
}

func TestAllocateConcurrentUniqueAndGapless(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocumentStore()
	alloc := NewAllocator(docs, DefaultScheme())
	seedAdmin(t, docs, "001.0001.000")

	const n = 200

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		regs = make(map[string]bool)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg, err := alloc.Allocate(ctx, models.KindDepartment, "001.0001.000")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, regs[reg], "duplicate registration %s", reg)
			regs[reg] = true
		}()
	}
	wg.Wait()

	require.Len(t, regs, n)
	for i := 1; i <= n; i++ {
		require.True(t, regs[fmt.Sprintf("003.0001.%03d", i)], "missing sequence %d", i)
	}
}

func TestAllocateExhausted(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocumentStore()

	scheme := DefaultScheme()
	scheme.TenantWidth = 1
	scheme.Kinds[models.KindCompany] = KindSpec{Code: "002", SequenceWidth: 1}
	require.NoError(t, scheme.Validate())

	alloc := NewAllocator(docs, scheme)
	seedAdmin(t, docs, "001.1.000")

	for i := 1; i <= 9; i++ {
		reg, err := alloc.Allocate(ctx, models.KindCompany, "001.1.000")
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("002.1.%d", i), reg)
	}

	_, err := alloc.Allocate(ctx, models.KindCompany, "001.1.000")
	require.ErrorIs(t, err, ErrExhausted)

	for i := 1; i <= 9; i++ {
		_, err := alloc.Allocate(ctx, models.KindAdmin, "")
		require.NoError(t, err)
	}
	_, err = alloc.Allocate(ctx, models.KindAdmin, "")
	require.ErrorIs(t, err, ErrExhausted)
}
