package postgres

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/wolfeidau/sopdesk/internal/store"
)

// queryBuilder accumulates positional arguments for a statement. Field names
// are always bound as parameters, never spliced into the SQL text.
type queryBuilder struct {
	args []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// where renders the collection predicate plus the filter conditions.
func (b *queryBuilder) where(collection string, f store.Filter) string {
	conds := []string{"collection = " + b.arg(collection)}

	for _, field := range sortedKeys(f.Eq) {
		conds = append(conds, "(doc ->> "+b.arg(field)+"::text) = "+b.arg(f.Eq[field])+"::text")
	}

	for _, field := range sortedKeys(f.Ne) {
		conds = append(conds, "(doc ->> "+b.arg(field)+"::text) IS DISTINCT FROM "+b.arg(f.Ne[field])+"::text")
	}

	for _, field := range sortedKeys(f.In) {
		values := f.In[field]
		if values == nil {
			values = []string{}
		}
		conds = append(conds, "(doc ->> "+b.arg(field)+"::text) = ANY("+b.arg(values)+"::text[])")
	}

	for _, field := range sortedKeys(f.Contains) {
		conds = append(conds, "(doc -> "+b.arg(field)+"::text) @> jsonb_build_array("+b.arg(f.Contains[field])+"::text)")
	}

	for _, field := range sortedKeys(f.Match) {
		conds = append(conds, "strpos(lower(doc ->> "+b.arg(field)+"::text), lower("+b.arg(f.Match[field])+"::text)) > 0")
	}

	return strings.Join(conds, " AND ")
}

// page renders ORDER BY and the optional OFFSET and LIMIT clauses.
func (b *queryBuilder) page(opts store.FindOptions) string {
	var sb strings.Builder

	sb.WriteString(" ORDER BY (doc ->> " + b.arg(opts.SortField()) + "::text) COLLATE \"C\", id COLLATE \"C\"")

	if opts.Skip > 0 {
		sb.WriteString(" OFFSET " + b.arg(opts.Skip))
	}
	if opts.Limit > 0 {
		sb.WriteString(" LIMIT " + b.arg(opts.Limit))
	}

	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
