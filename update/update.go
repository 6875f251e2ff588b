// Package update implements GASDB's Update Engine (spec.md §4.4): applying
// an update expression (a replacement document or an operator document) to
// a document, producing a new document.
//
// bundoc has no operator interpreter of its own — collection.go's Update
// replaces wholesale and Patch shallow-merges one level — so the operator
// table here is built fresh from spec.md §4.4, in the style of this
// project's own query package (strict upfront validation, a small
// per-operator dispatch table) rather than adapted from any single teacher
// file.
package update

import (
	"github.com/kartikbazzad/gasdb/codec"
	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/fieldpath"
	"github.com/kartikbazzad/gasdb/gasdberr"
)

const (
	opSet      = "$set"
	opUnset    = "$unset"
	opInc      = "$inc"
	opPush     = "$push"
	opAddToSet = "$addToSet"
	opEach     = "$each"
)

var operators = map[string]bool{
	opSet: true, opUnset: true, opInc: true, opPush: true, opAddToSet: true,
}

// Result reports whether applying an update actually changed the document,
// per spec.md §4.4's matched-not-modified rule.
type Result struct {
	Document document.M
	Modified bool
}

// Validate checks that expr is a well-formed update expression (all keys
// operators, or all keys non-operators, and not empty) without applying it.
// Apply performs the same check, so Validate exists for callers (e.g. the
// Coordinator) that want to fail fast before acquiring a lock.
func Validate(expr document.M) error {
	_, err := classify(expr)
	return err
}

// Apply applies expr to doc's current _id-preserving semantics, returning a
// new document plus whether it differs from doc by canonical serialisation.
// doc is never mutated.
func Apply(doc document.M, expr document.M) (Result, error) {
	isOperatorDoc, err := classify(expr)
	if err != nil {
		return Result{}, err
	}

	var next document.M
	if isOperatorDoc {
		next, err = applyOperators(doc, expr)
	} else {
		next, err = applyReplacement(doc, expr)
	}
	if err != nil {
		return Result{}, err
	}

	modified, err := differs(doc, next)
	if err != nil {
		return Result{}, err
	}
	return Result{Document: next, Modified: modified}, nil
}

// classify reports whether expr is an operator document (true) or a
// replacement document (false), failing InvalidUpdate if expr is empty or
// mixes operator and non-operator top-level keys.
func classify(expr document.M) (bool, error) {
	if len(expr) == 0 {
		return false, gasdberr.NewError(gasdberr.InvalidUpdate, "update.Apply", "update document must not be empty", nil)
	}

	sawOperator := false
	sawPlain := false
	for k := range expr {
		if operators[k] {
			sawOperator = true
		} else {
			sawPlain = true
		}
	}

	if sawOperator && sawPlain {
		return false, gasdberr.NewError(gasdberr.InvalidUpdate, "update.Apply",
			"update document must not mix operator and non-operator keys", nil)
	}
	return sawOperator, nil
}

func applyReplacement(doc document.M, replacement document.M) (document.M, error) {
	id, _ := document.GetID(doc)

	next := document.M{}
	for k, v := range replacement {
		next[k] = codec.DeepClone(v)
	}
	next[document.IDField] = id
	return next, nil
}

func applyOperators(doc document.M, expr document.M) (document.M, error) {
	next := codec.DeepClone(doc).(document.M)

	for op, arg := range expr {
		fields, ok := arg.(document.M)
		if !ok {
			return nil, gasdberr.NewError(gasdberr.InvalidUpdate, "update.Apply",
				op+" argument must be a document mapping field paths to values", nil)
		}

		var err error
		switch op {
		case opSet:
			err = applySet(next, fields)
		case opUnset:
			err = applyUnset(next, fields)
		case opInc:
			err = applyInc(next, fields)
		case opPush:
			err = applyPush(next, fields)
		case opAddToSet:
			err = applyAddToSet(next, fields)
		}
		if err != nil {
			return nil, err
		}
	}

	return next, nil
}

func applySet(doc document.M, fields document.M) error {
	for path, v := range fields {
		if path == document.IDField {
			return gasdberr.NewError(gasdberr.InvalidUpdate, "update.$set", "_id is immutable", nil)
		}
		if err := fieldpath.Set(doc, path, codec.DeepClone(v)); err != nil {
			return err
		}
	}
	return nil
}

func applyUnset(doc document.M, fields document.M) error {
	for path := range fields {
		if path == document.IDField {
			return gasdberr.NewError(gasdberr.InvalidUpdate, "update.$unset", "_id is immutable", nil)
		}
		fieldpath.Unset(doc, path)
	}
	return nil
}

func applyInc(doc document.M, fields document.M) error {
	for path, v := range fields {
		n, ok := v.(float64)
		if !ok {
			return gasdberr.NewError(gasdberr.InvalidUpdate, "update.$inc", "value for "+path+" must be a number", nil)
		}

		current := fieldpath.Get(doc, path)
		var base float64
		switch cv := current.(type) {
		case float64:
			base = cv
		default:
			if !fieldpath.IsMissing(current) {
				return gasdberr.NewError(gasdberr.InvalidUpdate, "update.$inc", "current value at "+path+" is not a number", nil)
			}
		}

		if err := fieldpath.Set(doc, path, base+n); err != nil {
			return err
		}
	}
	return nil
}

func applyPush(doc document.M, fields document.M) error {
	for path, v := range fields {
		toAppend, err := pushElements(v)
		if err != nil {
			return err
		}

		seq, err := currentSequence(doc, path, "update.$push")
		if err != nil {
			return err
		}
		seq = append(seq, toAppend...)
		if err := fieldpath.Set(doc, path, seq); err != nil {
			return err
		}
	}
	return nil
}

func applyAddToSet(doc document.M, fields document.M) error {
	for path, v := range fields {
		candidates, err := pushElements(v)
		if err != nil {
			return err
		}

		seq, err := currentSequence(doc, path, "update.$addToSet")
		if err != nil {
			return err
		}

		for _, candidate := range candidates {
			if !containsEqual(seq, candidate) {
				seq = append(seq, candidate)
			}
		}
		if err := fieldpath.Set(doc, path, seq); err != nil {
			return err
		}
	}
	return nil
}

// pushElements extracts the operand for $push/$addToSet: either a {$each:
// [...]} form or a single scalar value to append.
func pushElements(v document.Value) ([]document.Value, error) {
	if m, ok := v.(document.M); ok {
		if each, hasEach := m[opEach]; hasEach {
			if len(m) != 1 {
				return nil, gasdberr.NewError(gasdberr.InvalidUpdate, "update", "$each must be the only key in its argument", nil)
			}
			seq, ok := each.([]document.Value)
			if !ok {
				return nil, gasdberr.NewError(gasdberr.InvalidUpdate, "update", "$each value must be a sequence", nil)
			}
			return seq, nil
		}
	}
	return []document.Value{v}, nil
}

func currentSequence(doc document.M, path string, op string) ([]document.Value, error) {
	current := fieldpath.Get(doc, path)
	if fieldpath.IsMissing(current) {
		return []document.Value{}, nil
	}
	seq, ok := current.([]document.Value)
	if !ok {
		return nil, gasdberr.NewError(gasdberr.InvalidUpdate, op, "current value at "+path+" is not a sequence", nil)
	}
	return append([]document.Value{}, seq...), nil
}

func containsEqual(seq []document.Value, v document.Value) bool {
	for _, elem := range seq {
		if document.Equal(elem, v) {
			return true
		}
	}
	return false
}

// differs reports whether a and b serialise to different canonical forms,
// implementing spec.md §4.4's matched-not-modified rule.
func differs(a, b document.M) (bool, error) {
	sa, err := codec.Serialise(a)
	if err != nil {
		return false, err
	}
	sb, err := codec.Serialise(b)
	if err != nil {
		return false, err
	}
	return sa != sb, nil
}
