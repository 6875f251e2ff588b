// Package fieldpath implements GASDB's Field Path component (spec.md §4.2):
// resolving and assigning dotted paths ("a.b.c") against nested documents.
//
// No teacher equivalent exists — bundoc never resolves an arbitrary dotted
// path against a generic map (its ApplyPatch, referenced by collection.go,
// was never defined in the copied source) — so this is built directly from
// spec.md §4.2.
package fieldpath

import (
	"strings"

	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/gasdberr"
)

// Missing is returned by Get for a path whose intermediate or leaf segment
// does not exist, distinguishing it from an explicit nil/null value.
type missingType struct{}

// Missing is the sentinel value representing "undefined" per spec.md §4.2.
var Missing document.Value = missingType{}

// IsMissing reports whether v is the Missing sentinel.
func IsMissing(v document.Value) bool {
	_, ok := v.(missingType)
	return ok
}

// Split breaks a dotted path into its segments.
func Split(path string) []string {
	return strings.Split(path, ".")
}

// Get walks doc along path, returning Missing if any intermediate segment is
// absent or not a document, or if the final segment is absent.
func Get(doc document.M, path string) document.Value {
	segments := Split(path)
	var cur document.Value = doc

	for _, seg := range segments {
		m, ok := cur.(document.M)
		if !ok {
			return Missing
		}
		v, exists := m[seg]
		if !exists {
			return Missing
		}
		cur = v
	}
	return cur
}

// Set assigns v at path within doc, creating intermediate documents as
// needed. It fails with InvalidPath if an intermediate segment already
// exists and is not a document.
func Set(doc document.M, path string, v document.Value) error {
	segments := Split(path)
	cur := doc

	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			cur[seg] = v
			return nil
		}

		next, exists := cur[seg]
		if !exists {
			nm := document.M{}
			cur[seg] = nm
			cur = nm
			continue
		}

		nm, ok := next.(document.M)
		if !ok {
			return gasdberr.NewError(gasdberr.InvalidPath, "fieldpath.Set",
				"intermediate segment '"+seg+"' in path '"+path+"' is not a document", nil)
		}
		cur = nm
	}
	return nil
}

// Unset deletes the leaf at path, leaving the parent document in place (even
// if it becomes empty). A missing path is a no-op.
func Unset(doc document.M, path string) {
	segments := Split(path)
	cur := doc

	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			delete(cur, seg)
			return
		}

		next, exists := cur[seg]
		if !exists {
			return
		}
		nm, ok := next.(document.M)
		if !ok {
			return
		}
		cur = nm
	}
}
