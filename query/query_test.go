package query

import (
	"testing"
	"time"

	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/fieldpath"
	"github.com/kartikbazzad/gasdb/gasdberr"
)

func compile(t *testing.T, filter document.M) *Query {
	t.Helper()
	q, err := NewEngine().Compile(filter)
	if err != nil {
		t.Fatalf("compile(%#v): %v", filter, err)
	}
	return q
}

func TestImplicitEqualityAndAnd(t *testing.T) {
	q := compile(t, document.M{"status": "active", "age": document.M{"$gt": 18.0}})

	match := document.M{"status": "active", "age": 21.0}
	noMatch := document.M{"status": "inactive", "age": 21.0}

	if !q.Matches(match) {
		t.Errorf("expected match")
	}
	if q.Matches(noMatch) {
		t.Errorf("expected no match")
	}
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	q := compile(t, document.M{})
	if !q.IsEmpty() {
		t.Errorf("expected IsEmpty")
	}
	if !q.Matches(document.M{"a": 1.0}) {
		t.Errorf("expected empty filter to match")
	}
}

func TestEmptyAndMatchesAllEmptyOrMatchesNone(t *testing.T) {
	andQ := compile(t, document.M{"$and": []document.Value{}})
	if !andQ.Matches(document.M{"a": 1.0}) {
		t.Errorf("empty $and should match everything")
	}

	orQ := compile(t, document.M{"$or": []document.Value{}})
	if orQ.Matches(document.M{"a": 1.0}) {
		t.Errorf("empty $or should match nothing")
	}
}

func TestNestedAndOr(t *testing.T) {
	q := compile(t, document.M{
		"$or": []document.Value{
			document.M{"type": "a"},
			document.M{"$and": []document.Value{
				document.M{"type": "b"},
				document.M{"age": document.M{"$gt": 10.0}},
			}},
		},
	})

	if !q.Matches(document.M{"type": "a", "age": 0.0}) {
		t.Errorf("expected first branch to match")
	}
	if !q.Matches(document.M{"type": "b", "age": 20.0}) {
		t.Errorf("expected second branch to match")
	}
	if q.Matches(document.M{"type": "b", "age": 5.0}) {
		t.Errorf("expected second branch not to match")
	}
	if q.Matches(document.M{"type": "c", "age": 20.0}) {
		t.Errorf("expected no branch to match")
	}
}

func TestUnknownOperatorFailsValidation(t *testing.T) {
	_, err := NewEngine().Compile(document.M{"a": document.M{"$ne": 1.0}})
	if err == nil {
		t.Fatal("expected InvalidQuery error")
	}
	if kind, _ := gasdberr.KindOf(err); kind != gasdberr.InvalidQuery {
		t.Errorf("expected InvalidQuery, got %v", kind)
	}
}

func TestAndOrRequireSequenceValue(t *testing.T) {
	_, err := NewEngine().Compile(document.M{"$and": document.M{"a": 1.0}})
	if err == nil {
		t.Fatal("expected InvalidQuery error")
	}
	if kind, _ := gasdberr.KindOf(err); kind != gasdberr.InvalidQuery {
		t.Errorf("expected InvalidQuery, got %v", kind)
	}
}

func TestPrunedOperatorSetRevalidatesEachCompile(t *testing.T) {
	e := NewEngine()
	filter := document.M{"age": document.M{"$gt": 1.0}}

	if _, err := e.Compile(filter); err != nil {
		t.Fatalf("expected initial compile to succeed: %v", err)
	}

	e.SetSupportedOperators(OpEq)
	if _, err := e.Compile(filter); err == nil {
		t.Fatal("expected compile to fail after pruning $gt")
	}
}

func TestMissingVsExplicitNull(t *testing.T) {
	q := compile(t, document.M{"a": nil})

	if !q.Matches(document.M{"a": nil}) {
		t.Errorf("explicit null should match nil literal")
	}
	if !q.Matches(document.M{}) {
		t.Errorf("absent field should match nil literal")
	}
	if q.Matches(document.M{"a": "x"}) {
		t.Errorf("present non-null field should not match nil literal")
	}
}

func TestMissingSentinelLiteralMatchesOnlyAbsent(t *testing.T) {
	q := compile(t, document.M{"a": fieldpath.Missing})

	if !q.Matches(document.M{}) {
		t.Errorf("absent field should match Missing literal")
	}
	if q.Matches(document.M{"a": nil}) {
		t.Errorf("explicit null should not match Missing literal")
	}
}

func TestArrayContainsScalarEquality(t *testing.T) {
	q := compile(t, document.M{"tags": "red"})

	if !q.Matches(document.M{"tags": []document.Value{"blue", "red"}}) {
		t.Errorf("expected array containing scalar to match")
	}
	if q.Matches(document.M{"tags": []document.Value{"blue", "green"}}) {
		t.Errorf("expected array without scalar not to match")
	}
}

func TestDateComparison(t *testing.T) {
	early, _ := time.Parse(time.RFC3339, "2020-01-01T00:00:00Z")
	late, _ := time.Parse(time.RFC3339, "2024-01-01T00:00:00Z")

	q := compile(t, document.M{"created": document.M{"$gt": early}})

	if !q.Matches(document.M{"created": late}) {
		t.Errorf("expected later date to be greater")
	}
	if q.Matches(document.M{"created": early}) {
		t.Errorf("expected equal date not to be strictly greater")
	}
}

func TestCrossTypeComparisonNeverMatchesNeverPanics(t *testing.T) {
	q := compile(t, document.M{"v": document.M{"$gt": 5.0}})

	if q.Matches(document.M{"v": "not-a-number"}) {
		t.Errorf("expected cross-type comparison not to match")
	}
	if q.Matches(document.M{}) {
		t.Errorf("expected missing field not to match a comparison")
	}
}
