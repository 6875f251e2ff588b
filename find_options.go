package gasdb

import (
	"sort"
	"time"

	"github.com/kartikbazzad/gasdb/document"
)

// FindOptions shapes a Find result beyond filter matching: sort, skip, and
// limit. Applied in-memory after the Query Engine has selected the matching
// set, the same order spec.md §4.3 describes for "apply filter, then
// ordering/pagination" reads.
//
// Adapted from the teacher's QueryOptions (options.go), renamed to this
// package and given the sort/skip/limit behaviour its field names implied
// but the teacher's copy left unimplemented.
type FindOptions struct {
	SortField string
	SortDesc  bool
	Limit     int
	Skip      int
}

// FindWithOptions returns documents matching filter, sorted/paginated per
// opts. Sorting compares document.Value the same way the Query Engine's
// $gt/$lt does: numbers against numbers, strings against strings, dates
// against dates; a field absent on a document or incomparable against the
// sort field's type sorts last without erroring.
func (c *Collection) FindWithOptions(filter document.M, opts FindOptions) ([]document.M, error) {
	docs, err := c.Find(filter)
	if err != nil {
		return nil, err
	}

	if opts.SortField != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			less := lessByField(docs[i], docs[j], opts.SortField)
			if opts.SortDesc {
				return lessByField(docs[j], docs[i], opts.SortField)
			}
			return less
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= len(docs) {
			return []document.M{}, nil
		}
		docs = docs[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(docs) {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

func lessByField(a, b document.M, field string) bool {
	av, aok := a[field]
	bv, bok := b[field]
	if !aok || !bok {
		return !aok && bok
	}
	switch x := av.(type) {
	case float64:
		y, ok := bv.(float64)
		return ok && x < y
	case string:
		y, ok := bv.(string)
		return ok && x < y
	case time.Time:
		y, ok := bv.(time.Time)
		return ok && x.Before(y)
	default:
		return false
	}
}
