package store

import (
	"cmp"
	"slices"
)

// SortAndPage orders docs ascending by opts.SortField, tie-breaking on id,
// then applies Skip and Limit. docs is sorted in place.
func SortAndPage(docs []Document, opts FindOptions) []Document {
	field := opts.SortField()
	slices.SortFunc(docs, func(a, b Document) int {
		if c := cmp.Compare(a.String(field), b.String(field)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID(), b.ID())
	})

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(docs)) {
			return []Document{}
		}
		docs = docs[opts.Skip:]
	}

	if opts.Limit > 0 && opts.Limit < int64(len(docs)) {
		docs = docs[:opts.Limit]
	}

	return docs
}
