// Package admission implements the optional CEL-based admission policy
// layer described in SPEC_FULL.md section 4.10, grounded on the
// cel.Evaluator in the teacher's (removed) cel/cel.go: compile once at
// construction, evaluate a map-typed variable per call. Where the
// teacher's Evaluator returns an int comparison result, Policy evaluates
// a boolean expression and so declares its variable and return type
// accordingly.
package admission

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"

	sop "github.com/SharedCode/sop"
)

// Context is the map of facts a Policy expression is evaluated against:
// the node's source and flags plus its source_counter snapshot.
type Context struct {
	Source              sop.Source
	Writable             bool
	RequiresPersistence  bool
	Started              int64
	Ended                int64
	Limit                int64
}

func (c Context) toCEL() map[string]any {
	return map[string]any{
		"source":              string(c.Source),
		"writable":            c.Writable,
		"requires_persistence": c.RequiresPersistence,
		"started":             c.Started,
		"ended":               c.Ended,
		"limit":               c.Limit,
	}
}

// Policy is a compiled CEL expression that must evaluate to true for a
// start() to be admitted, consulted only after (and never instead of) the
// hard per-source counter limit in SPEC_FULL.md section 4.2.
type Policy struct {
	Name       string
	Expression string
	program    cel.Program
}

// NewPolicy compiles expression, which must reference the "ctx" variable
// (a map with keys source, writable, requires_persistence, started, ended,
// limit) and evaluate to a bool.
func NewPolicy(name, expression string) (*Policy, error) {
	if name == "" {
		return nil, fmt.Errorf("admission: policy name can't be empty")
	}
	if expression == "" {
		return nil, fmt.Errorf("admission: policy expression can't be empty")
	}

	env, err := cel.NewEnv(
		cel.Variable("ctx", cel.MapType(cel.StringType, cel.AnyType)),
	)
	if err != nil {
		return nil, fmt.Errorf("admission: creating CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("admission: compiling policy %q: %w", name, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("admission: building program for policy %q: %w", name, err)
	}
	return &Policy{Name: name, Expression: expression, program: prg}, nil
}

// Allow evaluates the policy against c and reports whether the start is
// admitted.
func (p *Policy) Allow(c Context) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{"ctx": c.toCEL()})
	if err != nil {
		return false, fmt.Errorf("admission: evaluating policy %q: %w", p.Name, err)
	}
	native, err := out.ConvertToNative(reflect.TypeOf(bool(false)))
	if err != nil {
		return false, fmt.Errorf("admission: policy %q did not evaluate to bool: %w", p.Name, err)
	}
	allowed, ok := native.(bool)
	if !ok {
		return false, fmt.Errorf("admission: policy %q produced non-bool result %v", p.Name, native)
	}
	return allowed, nil
}
