// Package storetest holds the behaviour every store.DocumentStore backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sopdesk/internal/store"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) store.DocumentStore

// Run exercises a DocumentStore backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("insert and find", func(t *testing.T) { testInsertAndFind(t, newStore(t)) })
	t.Run("insert conflicts", func(t *testing.T) { testInsertConflicts(t, newStore(t)) })
	t.Run("find ordering and paging", func(t *testing.T) { testFindPaging(t, newStore(t)) })
	t.Run("filters", func(t *testing.T) { testFilters(t, newStore(t)) })
	t.Run("update fields", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("pull from array", func(t *testing.T) { testPull(t, newStore(t)) })
	t.Run("add to array", func(t *testing.T) { testAdd(t, newStore(t)) })
	t.Run("counters", func(t *testing.T) { testCounters(t, newStore(t)) })
	t.Run("collections are isolated", func(t *testing.T) { testIsolation(t, newStore(t)) })
}

func doc(id, registration, owner string, extra ...any) store.Document {
	d := store.Document{
		"id":           id,
		"registration": registration,
		"owner":        owner,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		d[extra[i].(string)] = extra[i+1]
	}
	return d
}

func testInsertAndFind(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	in := doc("a1", "002.0001.001", "001.0001.000", "name", "Acme", "departments", []any{"003.0001.001"})
	require.NoError(t, s.InsertOne(ctx, "companies", in))

	got, err := s.FindOne(ctx, "companies", store.Where("registration", "002.0001.001"))
	require.NoError(t, err)
	require.Equal(t, in, got)

	// mutating the result must not leak into the store
	got["name"] = "changed"
	again, err := s.FindOne(ctx, "companies", store.Where("id", "a1"))
	require.NoError(t, err)
	require.Equal(t, "Acme", again["name"])

	_, err = s.FindOne(ctx, "companies", store.Where("registration", "002.0001.999"))
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.InsertOne(ctx, "companies", store.Document{"id": "no-registration"})
	require.ErrorIs(t, err, store.ErrValidation)
}

func testInsertConflicts(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "users", doc("a1", "001.0001.000", "001.0001.000")))

	err := s.InsertOne(ctx, "users", doc("a2", "001.0001.000", "001.0001.000"))
	require.ErrorIs(t, err, store.ErrConflict)

	err = s.InsertOne(ctx, "users", doc("a1", "001.0002.000", "001.0002.000"))
	require.ErrorIs(t, err, store.ErrConflict)

	n, err := s.Count(ctx, "users", store.Filter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testFindPaging(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	for i := 20; i >= 1; i-- {
		reg := fmt.Sprintf("002.0001.%03d", i)
		require.NoError(t, s.InsertOne(ctx, "companies", doc(fmt.Sprintf("id-%02d", i), reg, "001.0001.000")))
	}

	all, err := s.Find(ctx, "companies", store.Filter{}, store.FindOptions{})
	require.NoError(t, err)
	require.Len(t, all, 20)
	require.Equal(t, "002.0001.001", all[0].Registration())
	require.Equal(t, "002.0001.020", all[19].Registration())

	page, err := s.Find(ctx, "companies", store.Filter{}, store.FindOptions{Skip: 15, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 5)
	require.Equal(t, "002.0001.016", page[0].Registration())

	page, err = s.Find(ctx, "companies", store.Filter{}, store.FindOptions{Skip: 30, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, page)

	n, err := s.Count(ctx, "companies", store.Where("owner", "001.0001.000"))
	require.NoError(t, err)
	require.EqualValues(t, 20, n)
}

func testFilters(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "users", doc("u1", "001.0001.001", "001.0001.000",
		"name", "Jane Doe", "company", "002.0001.001", "departments", []any{"003.0001.001"})))
	require.NoError(t, s.InsertOne(ctx, "users", doc("u2", "001.0001.002", "001.0001.000",
		"name", "John Smith", "company", "002.0001.002", "departments", []any{"003.0001.001", "003.0001.002"})))
	require.NoError(t, s.InsertOne(ctx, "users", doc("u3", "001.0002.001", "001.0002.000",
		"name", "Janet 100%_off", "company", "002.0002.001", "departments", []any{})))

	tests := []struct {
		name   string
		filter store.Filter
		want   []string
	}{
		{name: "equal", filter: store.Where("owner", "001.0001.000"), want: []string{"001.0001.001", "001.0001.002"}},
		{name: "not equal", filter: store.Where("owner", "001.0001.000").NotEqual("registration", "001.0001.001"), want: []string{"001.0001.002"}},
		{name: "not equal missing", filter: store.Filter{}.NotEqual("email", "x"), want: []string{"001.0001.001", "001.0001.002", "001.0002.001"}},
		{name: "one of", filter: store.Filter{}.OneOf("company", []string{"002.0001.002", "002.0002.001"}), want: []string{"001.0001.002", "001.0002.001"}},
		{name: "one of empty", filter: store.Filter{}.OneOf("company", []string{}), want: []string{}},
		{name: "has", filter: store.Filter{}.Has("departments", "003.0001.002"), want: []string{"001.0001.002"}},
		{name: "like", filter: store.Filter{}.Like("name", "JAN"), want: []string{"001.0001.001", "001.0002.001"}},
		{name: "like metacharacters are literal", filter: store.Filter{}.Like("name", "%_"), want: []string{"001.0002.001"}},
		{name: "like missing field", filter: store.Filter{}.Like("email", "a"), want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Find(ctx, "users", tt.filter, store.FindOptions{})
			require.NoError(t, err)

			got := make([]string, 0, len(docs))
			for _, d := range docs {
				got = append(got, d.Registration())
			}
			require.Equal(t, tt.want, got)

			n, err := s.Count(ctx, "users", tt.filter)
			require.NoError(t, err)
			require.EqualValues(t, len(tt.want), n)
		})
	}
}

func testUpdate(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "users", doc("u1", "001.0001.001", "001.0001.000",
		"name", "Old", "password", "hash-1", "departments", []any{"d1", "d2"})))

	got, err := s.UpdateOne(ctx, "users", "u1", store.Document{"name": "New", "role": "manager"})
	require.NoError(t, err)
	require.Equal(t, "New", got["name"])
	require.Equal(t, "manager", got["role"])
	require.Equal(t, "hash-1", got["password"])
	require.Equal(t, "001.0001.001", got.Registration())

	// fields outside the update keep changes made since the caller read them
	_, err = s.PullFromArray(ctx, "users", store.Where("id", "u1"), "departments", "d2")
	require.NoError(t, err)

	got, err = s.UpdateOne(ctx, "users", "u1", store.Document{"name": "Newer"})
	require.NoError(t, err)
	require.Equal(t, []string{"d1"}, got.Strings("departments"))

	stored, err := s.FindOne(ctx, "users", store.Where("registration", "001.0001.001"))
	require.NoError(t, err)
	require.Equal(t, got, stored)

	_, err = s.UpdateOne(ctx, "users", "u1", store.Document{"registration": "001.0001.002"})
	require.ErrorIs(t, err, store.ErrValidation)

	_, err = s.UpdateOne(ctx, "users", "missing", store.Document{"name": "Ghost"})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.UpdateOne(ctx, "unused", "u1", store.Document{"name": "Ghost"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testDelete(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "departments", doc("d1", "003.0001.001", "001.0001.000", "company", "002.0001.001")))
	require.NoError(t, s.InsertOne(ctx, "departments", doc("d2", "003.0001.002", "001.0001.000", "company", "002.0001.001")))
	require.NoError(t, s.InsertOne(ctx, "departments", doc("d3", "003.0001.003", "001.0001.000", "company", "002.0001.002")))

	require.NoError(t, s.DeleteOne(ctx, "departments", store.Where("registration", "003.0001.003")))
	require.ErrorIs(t, s.DeleteOne(ctx, "departments", store.Where("registration", "003.0001.003")), store.ErrNotFound)

	n, err := s.DeleteMany(ctx, "departments", store.Where("company", "002.0001.001"))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = s.Count(ctx, "departments", store.Filter{})
	require.NoError(t, err)
	require.Zero(t, n)

	// a deleted registration can be reused by a new document
	require.NoError(t, s.InsertOne(ctx, "departments", doc("d4", "003.0001.001", "001.0001.000")))
}

func testPull(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "users", doc("u1", "001.0001.001", "001.0001.000", "departments", []any{"d1", "d2"})))
	require.NoError(t, s.InsertOne(ctx, "users", doc("u2", "001.0001.002", "001.0001.000", "departments", []any{"d2"})))
	require.NoError(t, s.InsertOne(ctx, "users", doc("u3", "001.0001.003", "001.0001.000", "departments", []any{"d3"})))
	require.NoError(t, s.InsertOne(ctx, "users", doc("u4", "001.0002.001", "001.0002.000", "departments", []any{"d2"})))

	n, err := s.PullFromArray(ctx, "users", store.Where("owner", "001.0001.000"), "departments", "d2")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	u1, err := s.FindOne(ctx, "users", store.Where("id", "u1"))
	require.NoError(t, err)
	require.Equal(t, []string{"d1"}, u1.Strings("departments"))

	u2, err := s.FindOne(ctx, "users", store.Where("id", "u2"))
	require.NoError(t, err)
	require.Empty(t, u2.Strings("departments"))
	require.NotNil(t, u2["departments"])

	u4, err := s.FindOne(ctx, "users", store.Where("id", "u4"))
	require.NoError(t, err)
	require.Equal(t, []string{"d2"}, u4.Strings("departments"))
}

func testAdd(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "users", doc("u1", "001.0001.001", "001.0001.000", "departments", []any{"d1"})))
	require.NoError(t, s.InsertOne(ctx, "users", doc("u2", "001.0001.002", "001.0001.000", "departments", []any{"d2"})))
	require.NoError(t, s.InsertOne(ctx, "users", doc("u3", "001.0001.003", "001.0001.000", "departments", nil)))
	require.NoError(t, s.InsertOne(ctx, "users", doc("u4", "001.0002.001", "001.0002.000", "departments", []any{})))

	n, err := s.AddToArray(ctx, "users", store.Where("owner", "001.0001.000"), "departments", "d2")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	u1, err := s.FindOne(ctx, "users", store.Where("id", "u1"))
	require.NoError(t, err)
	require.Equal(t, []string{"d1", "d2"}, u1.Strings("departments"))

	u2, err := s.FindOne(ctx, "users", store.Where("id", "u2"))
	require.NoError(t, err)
	require.Equal(t, []string{"d2"}, u2.Strings("departments"))

	u3, err := s.FindOne(ctx, "users", store.Where("id", "u3"))
	require.NoError(t, err)
	require.Equal(t, []string{"d2"}, u3.Strings("departments"))

	u4, err := s.FindOne(ctx, "users", store.Where("id", "u4"))
	require.NoError(t, err)
	require.Empty(t, u4.Strings("departments"))

	n, err = s.AddToArray(ctx, "users", store.Where("id", "u1"), "departments", "d2")
	require.NoError(t, err)
	require.Zero(t, n)
}

func testCounters(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	const workers = 8
	const perWorker = 25

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				n, err := s.IncrementCounter(ctx, "user:001.0001.000")
				if !assert.NoError(t, err) {
					return
				}

				mu.Lock()
				assert.False(t, seen[n], "counter value %d handed out twice", n)
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	for i := int64(1); i <= workers*perWorker; i++ {
		require.True(t, seen[i], "missing counter value %d", i)
	}

	n, err := s.IncrementCounter(ctx, "admin")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testIsolation(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()

	require.NoError(t, s.InsertOne(ctx, "companies", doc("x1", "002.0001.001", "001.0001.000")))
	require.NoError(t, s.InsertOne(ctx, "departments", doc("x1", "002.0001.001", "001.0001.000")))

	n, err := s.Count(ctx, "companies", store.Filter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
