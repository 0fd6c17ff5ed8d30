package store

import (
	"fmt"
	"slices"
)

// Document is a schemaless record as held by a DocumentStore. Values are the
// shapes produced by encoding/json: strings, float64, bool, nil, []any and
// map[string]any.
type Document map[string]any

// ID returns the document id field.
func (d Document) ID() string {
	return d.String(FieldID)
}

// Registration returns the document registration field.
func (d Document) Registration() string {
	return d.String(FieldRegistration)
}

// String returns the named field if it holds a string.
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Strings returns the named field if it holds an array, keeping only string elements.
func (d Document) Strings(field string) []string {
	arr, ok := d[field].([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the fields every backend indexes on.
func (d Document) Validate() error {
	if d.ID() == "" {
		return fmt.Errorf("%w: missing %s", ErrValidation, FieldID)
	}
	if d.Registration() == "" {
		return fmt.Errorf("%w: missing %s", ErrValidation, FieldRegistration)
	}
	return nil
}

// ValidateSet rejects a partial update touching the fields backends index on.
func (d Document) ValidateSet() error {
	for _, field := range []string{FieldID, FieldRegistration} {
		if _, ok := d[field]; ok {
			return fmt.Errorf("%w: %s can't be updated", ErrValidation, field)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can't mutate stored state.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// Pull removes every occurrence of value from the array field, reporting
// whether anything was removed.
func (d Document) Pull(field, value string) bool {
	arr, ok := d[field].([]any)
	if !ok {
		return false
	}

	kept := slices.DeleteFunc(slices.Clone(arr), func(v any) bool {
		s, ok := v.(string)
		return ok && s == value
	})
	if len(kept) == len(arr) {
		return false
	}

	d[field] = kept
	return true
}

// Add appends value to the array field unless it is already present. A
// missing or null field becomes a one element array. Reports whether the
// document changed.
func (d Document) Add(field, value string) bool {
	var arr []any
	switch t := d[field].(type) {
	case nil:
	case []any:
		arr = t
	default:
		return false
	}

	if slices.Contains(arr, any(value)) {
		return false
	}

	d[field] = append(slices.Clone(arr), value)
	return true
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case Document:
		return Document(cloneValue(map[string]any(t)).(map[string]any))
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
