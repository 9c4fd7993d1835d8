// Package expression compiles the row-level predicate and projection
// expressions handed down by the planner. Expressions are kept in source
// form so every dataflow worker can compile its own copy.
package expression

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

// Expression is a compiled expression over a row environment keyed by
// column name. A column reference skips the VM entirely.
type Expression struct {
	source  string
	column  string
	refs    []string
	program *vm.Program
}

// Column returns an expression that yields the named column unchanged.
// It accepts names that are not valid expr identifiers.
func Column(name string) *Expression {
	return &Expression{source: name, column: name, refs: []string{name}}
}

// Columns is a convenience for a projection of plain column references.
func Columns(names ...string) []*Expression {
	out := make([]*Expression, len(names))
	for i, n := range names {
		out[i] = Column(n)
	}
	return out
}

// Compile parses and compiles source. Identifiers are resolved against the
// row environment at evaluation time.
func Compile(source string) (*Expression, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse expression %q: %w", source, err)
	}
	if id, ok := tree.Node.(*ast.IdentifierNode); ok {
		return Column(id.Value), nil
	}

	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", source, err)
	}
	return &Expression{source: source, refs: identifiers(tree), program: program}, nil
}

// MustCompile is Compile for static expressions; it panics on error.
func MustCompile(source string) *Expression {
	e, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the expression source.
func (e *Expression) String() string { return e.source }

// IsColumn reports whether e is a plain column reference.
func (e *Expression) IsColumn() bool { return e.column != "" }

// Refs lists the identifiers e reads, sorted and de-duplicated.
func (e *Expression) Refs() []string { return e.refs }

// Eval evaluates e against env. An operation that fails because one of
// the columns it reads is NULL yields NULL, as in SQL.
func (e *Expression) Eval(env map[string]any) (any, error) {
	if e.column != "" {
		return env[e.column], nil
	}
	out, err := expr.Run(e.program, e.orderable(env))
	if err != nil {
		if e.readsNull(env) {
			return nil, nil
		}
		return nil, fmt.Errorf("evaluate %q: %w", e.source, err)
	}
	return out, nil
}

func (e *Expression) readsNull(env map[string]any) bool {
	for _, r := range e.refs {
		if env[r] == nil {
			return true
		}
	}
	return false
}

// orderable returns env with the values the VM has no operators for
// replaced by ones it can order. The input map is not modified.
func (e *Expression) orderable(env map[string]any) map[string]any {
	var out map[string]any
	for _, r := range e.refs {
		v, ok := orderableValue(env[r])
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(env))
			for k, val := range env {
				out[k] = val
			}
		}
		out[r] = v
	}
	if out == nil {
		return env
	}
	return out
}

// orderableValue maps DECIMAL values to float64 and DATE, TIME and TIMESTAMP
// values to their ISO-8601 text, whose byte order is chronological. It
// reports false for values that are used unchanged.
func orderableValue(v any) (any, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.InexactFloat64(), true
	case civil.Date:
		return x.String(), true
	case civil.Time:
		return x.String(), true
	case civil.DateTime:
		return x.String(), true
	}
	return nil, false
}

// Test evaluates e as a predicate. Only a boolean true passes; NULL and
// false both filter the row out.
func (e *Expression) Test(env map[string]any) (bool, error) {
	out, err := e.Eval(env)
	if err != nil {
		return false, err
	}
	switch v := out.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("predicate %q returned %T, not a boolean", e.source, out)
	}
}

// Evaluate applies predicate and projection to one row environment in the
// way every source fragment does: nil, false means the row is filtered out.
func Evaluate(predicate *Expression, projection []*Expression, env map[string]any) ([]any, bool, error) {
	if predicate != nil {
		ok, err := predicate.Test(env)
		if err != nil || !ok {
			return nil, false, err
		}
	}
	row := make([]any, len(projection))
	for i, p := range projection {
		v, err := p.Eval(env)
		if err != nil {
			return nil, false, err
		}
		row[i] = v
	}
	return row, true, nil
}

// Refs collects the identifiers read by predicate and projection.
func Refs(predicate *Expression, projection []*Expression) []string {
	set := map[string]bool{}
	if predicate != nil {
		for _, r := range predicate.refs {
			set[r] = true
		}
	}
	for _, p := range projection {
		for _, r := range p.refs {
			set[r] = true
		}
	}
	return sortedKeys(set)
}

type identVisitor struct {
	names map[string]bool
}

func (v *identVisitor) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		v.names[id.Value] = true
	}
}

func identifiers(tree *parser.Tree) []string {
	v := &identVisitor{names: map[string]bool{}}
	ast.Walk(&tree.Node, v)
	// expr treats these as literals in untyped mode
	for _, lit := range []string{"nil", "null", "true", "false"} {
		delete(v.names, lit)
	}
	return sortedKeys(v.names)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
