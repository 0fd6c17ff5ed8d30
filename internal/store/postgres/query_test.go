package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sopdesk/internal/store"
)

func TestQueryBuilderWhere(t *testing.T) {
	var b queryBuilder
	where := b.where("users", store.Where("owner", "001.0001.000").Like("name", "o'brien"))

	require.Equal(t,
		"collection = $1 AND (doc ->> $2::text) = $3::text AND strpos(lower(doc ->> $4::text), lower($5::text)) > 0",
		where)
	require.Equal(t, []any{"users", "owner", "001.0001.000", "name", "o'brien"}, b.args)
}

func TestQueryBuilderOneOfNil(t *testing.T) {
	var b queryBuilder
	where := b.where("departments", store.Filter{}.OneOf("registration", nil))

	require.Equal(t, "collection = $1 AND (doc ->> $2::text) = ANY($3::text[])", where)
	require.Equal(t, []string{}, b.args[2])
}

func TestQueryBuilderPage(t *testing.T) {
	var b queryBuilder
	page := b.page(store.FindOptions{Skip: 20, Limit: 10})

	require.Equal(t, ` ORDER BY (doc ->> $1::text) COLLATE "C", id COLLATE "C" OFFSET $2 LIMIT $3`, page)
	require.Equal(t, []any{"registration", int64(20), int64(10)}, b.args)

	b = queryBuilder{}
	require.NotContains(t, b.page(store.FindOptions{}), "LIMIT")
}
