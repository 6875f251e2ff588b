package document

import (
	"reflect"
	"time"
)

// cloner performs a depth-first deep copy of a Value tree, tracking
// already-visited maps/slices by their underlying pointer so that a cyclic
// structure is duplicated acyclically (reusing the already-built clone)
// instead of recursing forever. Tree-shaped input (the documented contract)
// never touches the seen map more than once per node, so this adds no
// observable behaviour for well-formed documents.
type cloner struct {
	seen map[uintptr]Value
}

func newCloner() *cloner {
	return &cloner{seen: make(map[uintptr]Value)}
}

func (c *cloner) clone(v Value) Value {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return time.Unix(0, val.UnixNano()).UTC()
	case M:
		return c.cloneMap(val)
	case map[string]Value:
		return c.cloneMap(M(val))
	case []Value:
		return c.cloneSlice(val)
	default:
		// bool, string, float64, and any other immutable primitive.
		return val
	}
}

func (c *cloner) cloneMap(m M) M {
	if m == nil {
		return nil
	}
	ptr := reflect.ValueOf(map[string]Value(m)).Pointer()
	if existing, ok := c.seen[ptr]; ok {
		if em, ok := existing.(M); ok {
			return em
		}
	}

	out := make(M, len(m))
	c.seen[ptr] = out
	for k, v := range m {
		out[k] = c.clone(v)
	}
	return out
}

func (c *cloner) cloneSlice(s []Value) []Value {
	if s == nil {
		return nil
	}
	ptr := reflect.ValueOf(s).Pointer()
	if existing, ok := c.seen[ptr]; ok {
		if es, ok := existing.([]Value); ok {
			return es
		}
	}

	out := make([]Value, len(s))
	c.seen[ptr] = out
	for i, v := range s {
		out[i] = c.clone(v)
	}
	return out
}
