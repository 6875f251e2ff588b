// Package query implements GASDB's Query Engine (spec.md §4.3): compiling a
// map-shaped filter into an AST and evaluating it against a document.
//
// Generalized from the teacher's bundoc/internal/query/ast.go (Parse,
// FieldNode, LogicalNode, operator table) — that version supported
// $eq/$ne/$gt/$gte/$lt/$lte/$in with fmt.Sprintf string-coercion comparisons
// and no Date support. This version restricts the operator set to the three
// spec.md names ($eq/$gt/$lt), adds Date-aware and structural comparisons,
// the array-contains-scalar and missing-vs-null rules, and validation that
// runs before any document is scanned and is re-checked against the
// engine's current supported-operator set on every execution (spec.md §4.3:
// "Operator support may be pruned after construction").
package query

import (
	"fmt"

	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/fieldpath"
	"github.com/kartikbazzad/gasdb/gasdberr"
)

// Operator is a comparison operator name.
type Operator string

const (
	OpEq Operator = "$eq"
	OpGt Operator = "$gt"
	OpLt Operator = "$lt"

	opAnd = "$and"
	opOr  = "$or"
)

// Node is any compiled AST node: FieldNode or LogicalNode.
type Node interface {
	matches(doc document.M) bool
}

// FieldNode matches a single field condition.
type FieldNode struct {
	Path     string
	Operator Operator
	Value    document.Value
}

// LogicalNode combines child nodes with $and or $or.
type LogicalNode struct {
	Operator string
	Children []Node
}

// Engine compiles and evaluates queries against a configurable supported
// operator set (default: $eq, $gt, $lt — the full spec.md set).
type Engine struct {
	supported map[Operator]bool
}

// NewEngine returns an Engine with the default (full) operator set.
func NewEngine() *Engine {
	return &Engine{
		supported: map[Operator]bool{OpEq: true, OpGt: true, OpLt: true},
	}
}

// SetSupportedOperators prunes the engine's operator set. Any query compiled
// afterwards that references an operator outside this set fails InvalidQuery
// even if it previously validated successfully — compilation always checks
// against the engine's *current* set.
func (e *Engine) SetSupportedOperators(ops ...Operator) {
	m := make(map[Operator]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	e.supported = m
}

// Compile parses and validates filter into an executable Query, failing
// InvalidQuery on any structural problem (non-sequence $and/$or, an unknown
// operator anywhere, or an operator used as a bare field name) before any
// document is scanned.
func (e *Engine) Compile(filter document.M) (*Query, error) {
	node, err := e.parseMap(filter)
	if err != nil {
		return nil, err
	}
	return &Query{root: node}, nil
}

// Query is a compiled, executable filter.
type Query struct {
	root Node
}

// Matches reports whether doc satisfies the compiled query.
func (q *Query) Matches(doc document.M) bool {
	if q.root == nil {
		return true
	}
	return q.root.matches(doc)
}

// IsEmpty reports whether the compiled query has no conditions at all (an
// empty filter object), which spec.md §4.5 treats as "match everything" at
// the Document Engine's fast path.
func (q *Query) IsEmpty() bool {
	ln, ok := q.root.(*LogicalNode)
	return ok && ln.Operator == opAnd && len(ln.Children) == 0
}

func (e *Engine) parseMap(filter document.M) (Node, error) {
	children := make([]Node, 0, len(filter))

	for key, val := range filter {
		switch key {
		case opAnd, opOr:
			seq, ok := val.([]document.Value)
			if !ok {
				return nil, gasdberr.NewError(gasdberr.InvalidQuery, "query.Compile",
					fmt.Sprintf("value for %s must be a sequence of sub-queries", key), nil)
			}
			subNodes := make([]Node, 0, len(seq))
			for _, item := range seq {
				subFilter, ok := item.(document.M)
				if !ok {
					return nil, gasdberr.NewError(gasdberr.InvalidQuery, "query.Compile",
						fmt.Sprintf("element of %s must be a query object", key), nil)
				}
				sub, err := e.parseMap(subFilter)
				if err != nil {
					return nil, err
				}
				subNodes = append(subNodes, sub)
			}
			children = append(children, &LogicalNode{Operator: key, Children: subNodes})

		default:
			node, err := e.parseFieldCondition(key, val)
			if err != nil {
				return nil, err
			}
			children = append(children, node)
		}
	}

	return &LogicalNode{Operator: opAnd, Children: children}, nil
}

func (e *Engine) parseFieldCondition(path string, val document.Value) (Node, error) {
	condMap, ok := val.(document.M)
	if !ok {
		// Bare literal: implicit $eq.
		return &FieldNode{Path: path, Operator: OpEq, Value: val}, nil
	}

	// An operator document on this field may carry exactly one operator key
	// per spec.md's examples; if more than one is present each is ANDed.
	if len(condMap) == 0 {
		return nil, gasdberr.NewError(gasdberr.InvalidQuery, "query.Compile",
			fmt.Sprintf("condition for field %q must not be empty", path), nil)
	}

	nodes := make([]Node, 0, len(condMap))
	for opName, opVal := range condMap {
		op := Operator(opName)
		if !e.supported[op] {
			return nil, gasdberr.NewError(gasdberr.InvalidQuery, "query.Compile",
				fmt.Sprintf("unknown operator %q on field %q", opName, path), nil)
		}
		nodes = append(nodes, &FieldNode{Path: path, Operator: op, Value: opVal})
	}

	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return &LogicalNode{Operator: opAnd, Children: nodes}, nil
}

func (n *FieldNode) matches(doc document.M) bool {
	actual := fieldpath.Get(doc, n.Path)
	return evaluate(actual, n.Operator, n.Value)
}

func (n *LogicalNode) matches(doc document.M) bool {
	switch n.Operator {
	case opAnd:
		for _, child := range n.Children {
			if !child.matches(doc) {
				return false
			}
		}
		return true
	case opOr:
		for _, child := range n.Children {
			if child.matches(doc) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
