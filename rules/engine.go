// Package rules implements GASDB's optional per-collection access control:
// a boolean CEL expression evaluated against the caller's auth context and
// the document being operated on. Disabled by default; a collection with no
// rule attached allows every operation.
//
// Adapted from the teacher's RulesEngine, which evaluated a single CEL
// environment for "request"/"resource" variables against a cached program
// set. GASDB generalizes that to one expression per Operation
// (read/create/update/delete/list), keyed by collection name, still sharing
// one compiled-program cache across all of them.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// Operation names the access being checked.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpList   Operation = "list"
)

// AuthContext is the caller identity a rule expression can inspect as
// request.auth.
type AuthContext struct {
	UID     string
	Claims  map[string]interface{}
	IsAdmin bool
}

func (a *AuthContext) toCEL() map[string]interface{} {
	if a == nil {
		return map[string]interface{}{"uid": "", "claims": map[string]interface{}{}, "isAdmin": false}
	}
	claims := a.Claims
	if claims == nil {
		claims = map[string]interface{}{}
	}
	return map[string]interface{}{"uid": a.UID, "claims": claims, "isAdmin": a.IsAdmin}
}

// Engine compiles and caches CEL programs and evaluates them against a
// request/resource context. One Engine is shared by every collection.
type Engine struct {
	env      *cel.Env
	prgCache sync.Map // map[string]cel.Program

	mu    sync.RWMutex
	rules map[string]map[Operation]string // collection -> operation -> expression
}

// New constructs an Engine with the request/resource CEL environment.
func New() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("request", decls.NewMapType(decls.String, decls.Dyn)),
			decls.NewVar("resource", decls.NewMapType(decls.String, decls.Dyn)),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Engine{env: env, rules: make(map[string]map[Operation]string)}, nil
}

// SetRule attaches a CEL boolean expression to collection/op. An empty
// expression clears any existing rule, reverting to allow-all.
func (e *Engine) SetRule(collection string, op Operation, expression string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ops, ok := e.rules[collection]
	if !ok {
		ops = make(map[Operation]string)
		e.rules[collection] = ops
	}
	if expression == "" {
		delete(ops, op)
		return
	}
	ops[op] = expression
}

// Allow reports whether op is permitted against resource for collection,
// given auth. A collection/op with no rule attached always allows.
func (e *Engine) Allow(collection string, op Operation, auth *AuthContext, resource map[string]interface{}) (bool, error) {
	e.mu.RLock()
	expression, ok := e.rules[collection][op]
	e.mu.RUnlock()
	if !ok {
		return true, nil
	}

	ctx := map[string]interface{}{
		"request":  map[string]interface{}{"auth": auth.toCEL()},
		"resource": resource,
	}
	return e.evaluate(expression, ctx)
}

func (e *Engine) evaluate(expression string, ctx map[string]interface{}) (bool, error) {
	if expression == "true" {
		return true, nil
	}
	if expression == "false" {
		return false, nil
	}

	var prg cel.Program
	if val, ok := e.prgCache.Load(expression); ok {
		prg = val.(cel.Program)
	} else {
		ast, issues := e.env.Compile(expression)
		if issues != nil && issues.Err() != nil {
			return false, fmt.Errorf("rules: compile error: %s", issues.Err())
		}
		p, err := e.env.Program(ast)
		if err != nil {
			return false, fmt.Errorf("rules: program construction error: %s", err)
		}
		prg = p
		e.prgCache.Store(expression, prg)
	}

	out, _, err := prg.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("rules: eval error: %s", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rules: expression must evaluate to a boolean")
	}
	return result, nil
}
