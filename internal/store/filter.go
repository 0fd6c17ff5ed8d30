package store

import (
	"maps"
	"slices"
	"strings"
)

// Filter selects documents by string fields. All conditions must hold.
// A Filter is immutable, each builder method returns a modified copy.
type Filter struct {
	// Eq requires field == value.
	Eq map[string]string
	// Ne requires the field to be missing or differ from value.
	Ne map[string]string
	// In requires the field to equal one of the values. An empty list matches nothing.
	In map[string][]string
	// Contains requires an array field to hold value.
	Contains map[string]string
	// Match requires a case-insensitive substring match.
	Match map[string]string
}

// Where is shorthand for an equality filter.
func Where(field, value string) Filter {
	return Filter{}.Equal(field, value)
}

// Equal adds a field == value condition.
func (f Filter) Equal(field, value string) Filter {
	f.Eq = with(f.Eq, field, value)
	return f
}

// NotEqual adds a field != value condition.
func (f Filter) NotEqual(field, value string) Filter {
	f.Ne = with(f.Ne, field, value)
	return f
}

// OneOf adds a field membership condition.
func (f Filter) OneOf(field string, values []string) Filter {
	f.In = with(f.In, field, slices.Clone(values))
	return f
}

// Has adds an array containment condition.
func (f Filter) Has(field, value string) Filter {
	f.Contains = with(f.Contains, field, value)
	return f
}

// Like adds a case-insensitive substring condition.
func (f Filter) Like(field, value string) Filter {
	f.Match = with(f.Match, field, value)
	return f
}

// And merges other into f. Conditions on the same field in the same
// category are replaced by other's.
func (f Filter) And(other Filter) Filter {
	for k, v := range other.Eq {
		f = f.Equal(k, v)
	}
	for k, v := range other.Ne {
		f = f.NotEqual(k, v)
	}
	for k, v := range other.In {
		f = f.OneOf(k, v)
	}
	for k, v := range other.Contains {
		f = f.Has(k, v)
	}
	for k, v := range other.Match {
		f = f.Like(k, v)
	}
	return f
}

// Matches evaluates the filter against a document. The memory and bolt
// backends use it directly; the postgres backend translates the same
// semantics to SQL.
func (f Filter) Matches(doc Document) bool {
	for field, want := range f.Eq {
		got, ok := doc[field].(string)
		if !ok || got != want {
			return false
		}
	}

	for field, want := range f.Ne {
		if got, ok := doc[field].(string); ok && got == want {
			return false
		}
	}

	for field, values := range f.In {
		got, ok := doc[field].(string)
		if !ok || !slices.Contains(values, got) {
			return false
		}
	}

	for field, want := range f.Contains {
		if !slices.Contains(doc.Strings(field), want) {
			return false
		}
	}

	for field, want := range f.Match {
		got, ok := doc[field].(string)
		if !ok || !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
			return false
		}
	}

	return true
}

func with[V any](m map[string]V, k string, v V) map[string]V {
	out := maps.Clone(m)
	if out == nil {
		out = make(map[string]V, 1)
	}
	out[k] = v
	return out
}
