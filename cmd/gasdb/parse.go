package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kartikbazzad/gasdb/codec"
	"github.com/kartikbazzad/gasdb/document"
)

// parseDocument parses a JSON object via the Codec, so a shell-typed Date
// string round-trips the same way a programmatic insert does.
func parseDocument(jsonText string) (document.M, error) {
	v, err := codec.Deserialise(jsonText)
	if err != nil {
		return nil, err
	}
	m, ok := v.(document.M)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return m, nil
}

// parseFilter parses jsonText as a filter, treating an empty string as the
// empty match-everything filter.
func parseFilter(jsonText string) (document.M, error) {
	if strings.TrimSpace(jsonText) == "" {
		return document.M{}, nil
	}
	return parseDocument(jsonText)
}

// splitTwoJSONArgs splits a string holding two adjacent JSON objects (e.g.
// `{"_id":"a"} {"$set":{"x":1}}`) at the brace boundary between them.
func splitTwoJSONArgs(s string) (first, second string, ok bool) {
	s = strings.TrimSpace(s)
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				first = s[:i+1]
				second = strings.TrimSpace(s[i+1:])
				return first, second, second != ""
			}
		}
	}
	return "", "", false
}

func printDocument(doc document.M) {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, formatValue(doc[k])))
	}
	fmt.Println("{" + strings.Join(parts, ", ") + "}")
}

func formatValue(v document.Value) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	case time.Time:
		return codec.FormatDate(val)
	case document.M:
		s, _ := codec.Serialise(val)
		return s
	case []document.Value:
		s, _ := codec.Serialise(val)
		return s
	default:
		return fmt.Sprintf("%v", val)
	}
}
