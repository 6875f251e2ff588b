package query

import (
	"time"

	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/fieldpath"
)

// evaluate applies op to the actual field value (as returned by
// fieldpath.Get, possibly fieldpath.Missing) against the query's literal
// value. Grounded on bundoc/internal/query/ast.go's compare/CompareValues,
// extended with the missing-vs-null and array-contains-scalar rules from
// spec.md §4.3 and Date-aware ordering for $gt/$lt.
func evaluate(actual document.Value, op Operator, queryVal document.Value) bool {
	switch op {
	case OpEq:
		return equals(actual, queryVal)
	case OpGt:
		return compareOrdered(actual, queryVal) > 0
	case OpLt:
		return compareOrdered(actual, queryVal) < 0
	default:
		return false
	}
}

// equals implements spec.md §4.3's $eq rule: explicit null and an absent
// field are both matched by a query literal of nil; the Missing sentinel as
// a query literal matches only an absent field; if actual is a sequence and
// queryVal is a scalar, match if any element equals it; otherwise fall back
// to document.Equal's structural equality.
func equals(actual document.Value, queryVal document.Value) bool {
	if fieldpath.IsMissing(queryVal) {
		return fieldpath.IsMissing(actual)
	}

	if queryVal == nil {
		return actual == nil || fieldpath.IsMissing(actual)
	}

	if fieldpath.IsMissing(actual) {
		return false
	}

	if seq, ok := actual.([]document.Value); ok {
		if _, queryIsSeq := queryVal.([]document.Value); !queryIsSeq {
			for _, elem := range seq {
				if document.Equal(elem, queryVal) {
					return true
				}
			}
			return false
		}
	}

	return document.Equal(actual, queryVal)
}

// compareOrdered returns -1/0/1 for a<b/a==b/a>b, and 0 for any
// cross-type or missing comparison that $gt/$lt must treat as "never
// matches" (the caller only checks strict < / >, so a tie here simply
// never satisfies either operator).
func compareOrdered(a, b document.Value) int {
	if fieldpath.IsMissing(a) {
		return 0
	}

	switch bv := b.(type) {
	case float64:
		av, ok := a.(float64)
		if !ok {
			return 0
		}
		return compareFloat(av, bv)
	case string:
		av, ok := a.(string)
		if !ok {
			return 0
		}
		return compareString(av, bv)
	case time.Time:
		av, ok := a.(time.Time)
		if !ok {
			return 0
		}
		return compareTime(av, bv)
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
