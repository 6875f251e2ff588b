// Package codec implements GASDB's Codec (spec.md §4.1): JSON
// serialise/deserialise with lossless Date round-tripping via strict
// ISO-8601 detection, plus a deep-clone that preserves Date identity.
//
// There is no teacher equivalent — bundoc's storage.Document marshals with
// plain encoding/json and has no Date-vs-string disambiguation at all — so
// this package is built directly from spec.md §4.1, in the small,
// single-purpose-file style of the teacher's own schema_equal.go.
package codec

import (
	"encoding/json"
	"math"
	"regexp"
	"time"

	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/gasdberr"
)

// dateLayout is the canonical ISO-8601 UTC millisecond-precision form this
// package always serialises Dates as.
const dateLayout = "2006-01-02T15:04:05.000Z"

// strictDatePattern matches the exact forms spec.md §4.1 requires for
// rehydration: optional milliseconds, trailing literal "Z", no offset, no
// space separator.
var strictDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{3})?Z$`)

// Serialise converts a Value to its canonical JSON string form. Dates
// serialise as ISO-8601 UTC with millisecond precision; NaN/±Infinity
// serialise as JSON null (an accepted lossy edge per spec.md §4.1).
func Serialise(v document.Value) (string, error) {
	tree := toJSONTree(v)
	b, err := json.Marshal(tree)
	if err != nil {
		return "", gasdberr.NewError(gasdberr.InvalidFileFormat, "codec.Serialise", "failed to marshal value", err)
	}
	return string(b), nil
}

// Deserialise parses a JSON string into a Value, rehydrating any string that
// strictly matches the ISO-8601 pattern and parses to a valid calendar
// instant into a Date. All other strings are left untouched.
//
// If the top-level result is itself a string, this signals InvalidFileFormat
// per spec.md §4.1's double-parsing guard: a blob that re-encodes a JSON
// document as a JSON string is corrupt, not a legitimately stored string
// value (top-level documents are always objects).
func Deserialise(s string) (document.Value, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, gasdberr.NewError(gasdberr.InvalidFileFormat, "codec.Deserialise", "failed to parse JSON", err)
	}

	result := fromJSONTree(raw)

	if _, isString := result.(string); isString {
		return nil, gasdberr.NewError(gasdberr.InvalidFileFormat, "codec.Deserialise", "document re-encoded as a JSON string", nil)
	}

	return result, nil
}

// DeepClone deep-copies v, preserving Date identity and array/map kind.
func DeepClone(v document.Value) document.Value {
	return document.Clone(v)
}

// toJSONTree converts a Value tree into a plain JSON-marshalable tree:
// time.Time becomes its ISO-8601 string, NaN/Inf floats become nil, maps and
// slices recurse. Documents are expected to be tree-shaped (spec.md §9);
// cyclic input's behaviour is implementation-defined and not guarded here.
func toJSONTree(v document.Value) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC().Format(dateLayout)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case document.M:
		return toJSONMap(val)
	case map[string]document.Value:
		return toJSONMap(document.M(val))
	case []document.Value:
		return toJSONSlice(val)
	default:
		return val
	}
}

func toJSONMap(m document.M) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = toJSONTree(v)
	}
	return out
}

func toJSONSlice(s []document.Value) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = toJSONTree(v)
	}
	return out
}

// fromJSONTree walks the result of a standard json.Unmarshal(&interface{})
// call, rehydrating strict ISO-8601 strings into time.Time and converting
// map[string]interface{}/[]interface{} into document.M/[]document.Value.
func fromJSONTree(v interface{}) document.Value {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if t, ok := parseStrictDate(val); ok {
			return t
		}
		return val
	case map[string]interface{}:
		out := make(document.M, len(val))
		for k, v := range val {
			out[k] = fromJSONTree(v)
		}
		return out
	case []interface{}:
		out := make([]document.Value, len(val))
		for i, v := range val {
			out[i] = fromJSONTree(v)
		}
		return out
	default:
		return val
	}
}

// parseStrictDate rehydrates s into a UTC time.Time iff it exactly matches
// the strict ISO-8601 pattern AND parses to a valid calendar instant.
func parseStrictDate(s string) (time.Time, bool) {
	if !strictDatePattern.MatchString(s) {
		return time.Time{}, false
	}

	layout := dateLayout
	if len(s) > 0 && s[len(s)-1] == 'Z' {
		// Distinguish the millisecond-less form ("...05Z") from the
		// millisecond form ("...05.000Z") by presence of a dot.
		hasMillis := false
		for _, c := range s {
			if c == '.' {
				hasMillis = true
				break
			}
		}
		if !hasMillis {
			layout = "2006-01-02T15:04:05Z"
		}
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ValidateDateString exposes the strict-match check for callers (e.g. Query
// Engine $gt/$lt type dispatch on literal query values supplied as strings)
// that want to know whether a raw string would rehydrate to a Date.
func ValidateDateString(s string) bool {
	_, ok := parseStrictDate(s)
	return ok
}

// FormatDate renders t in the canonical ISO-8601 millisecond form.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
