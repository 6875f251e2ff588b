// Package document defines GASDB's in-memory value model: the tagged union
// of JSON-plus-Date values that flows through the Codec, Query Engine,
// Update Engine and Document Engine.
package document

import "time"

// Value is a document field value. It holds one of: nil, bool, float64,
// string, time.Time, []Value (sequence), or M (nested document). Any other
// dynamic type stored here is a programming error in the caller.
type Value = interface{}

// M is an ordered-by-convention mapping from field name to Value. Go maps do
// not preserve insertion order; callers that need the collection-level
// insertion-order guarantee of spec.md §4.3 rely on document.Engine's
// separate id-ordering slice, not on M's iteration order.
type M map[string]Value

// IDField is the reserved key holding a document's unique identifier.
const IDField = "_id"

// GetID returns the document's _id as a string, and whether it is present
// and well-formed (a non-empty string).
func GetID(doc M) (string, bool) {
	v, ok := doc[IDField]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// IsSequence reports whether v is a Value sequence ([]Value).
func IsSequence(v Value) ([]Value, bool) {
	seq, ok := v.([]Value)
	return seq, ok
}

// IsDocument reports whether v is a nested document (M).
func IsDocument(v Value) (M, bool) {
	m, ok := v.(M)
	return m, ok
}

// IsDate reports whether v is a Date value.
func IsDate(v Value) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// Equal reports structural equality between two Values per spec.md §4.3:
// primitives compare by value, Dates compare by epoch (ignoring monotonic
// reading and sub-structure), documents/arrays compare structurally.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := toFloat64(b)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []Value:
		bv, ok := b.([]Value)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case M:
		bv, ok := b.(M)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !Equal(v, bvv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func toFloat64(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Clone deep-copies a Value, preserving Date identity (as an equal-epoch
// time.Time), array vs map kind, and never mutating shared structure.
// Cyclic references are not supported; Clone detects them and returns the
// partially built clone's placeholder rather than looping forever (see
// cloner in clone.go for the detection mechanism).
func Clone(v Value) Value {
	return newCloner().clone(v)
}
