package cspec

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// ParsedExpr is the decomposition of an expression string the set/verifyRows
// commands need to pick their variable-assignment vs. function-call
// behavior (§4.4.3–§4.4.4). Either field may be empty.
type ParsedExpr struct {
	VariableName string
	FunctionName string
}

// Evaluator is the C2 contract: decompose an expression string for the
// commands that branch on its shape, and evaluate it against a fixture.
type Evaluator interface {
	Parse(exprStr string) (ParsedExpr, error)
	Evaluate(ctx Context, exprStr string) (any, error)
}

// ExprEvaluator implements Evaluator with github.com/expr-lang/expr.
type ExprEvaluator struct{}

// NewExprEvaluator constructs the default evaluator.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{}
}

var _ Evaluator = (*ExprEvaluator)(nil)

// stripSigils removes every '#' from an expression string. The source
// vocabulary uses a leading '#' to mark a context attribute reference in
// prose (e.g. "#TEXT"), but its own implementation strips every occurrence
// rather than only a leading one, and a worked example embeds the sigil
// mid-expression ("upper(#TEXT)"); this mirrors that behavior exactly.
func stripSigils(s string) string {
	return strings.ReplaceAll(s, "#", "")
}

// splitAssignment looks for a top-level bare '=' (not '==', '!=', '<=',
// '>=', and not nested inside brackets, parens or a string literal) and, if
// found, returns the trimmed left-hand identifier and right-hand
// expression. ok is false when the expression has no top-level assignment.
func splitAssignment(s string) (lhs, rhs string, ok bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote && (i == 0 || s[i-1] != '\\') {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case depth == 0 && c == '=':
			prev := byte(0)
			if i > 0 {
				prev = s[i-1]
			}
			next := byte(0)
			if i+1 < len(s) {
				next = s[i+1]
			}
			if next == '=' || prev == '=' || prev == '!' || prev == '<' || prev == '>' {
				continue
			}
			left := strings.TrimSpace(s[:i])
			right := strings.TrimSpace(s[i+1:])
			if left == "" || !isIdentifier(left) {
				return "", "", false
			}
			return left, right, true
		}
	}
	return "", "", false
}

func isIdentifier(s string) bool {
	for i, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 && !isLetter {
			return false
		}
		if !isLetter && !isDigit {
			return false
		}
	}
	return len(s) > 0
}

// Parse implements Evaluator.Parse (§4.9).
func (e *ExprEvaluator) Parse(exprStr string) (ParsedExpr, error) {
	stripped := stripSigils(exprStr)
	var out ParsedExpr

	if lhs, rhs, ok := splitAssignment(stripped); ok {
		out.VariableName = lhs
		tree, err := parser.Parse(rhs)
		if err != nil {
			return out, fmt.Errorf("parse %q: %w", exprStr, err)
		}
		if call, ok := tree.Node.(*ast.CallNode); ok {
			out.FunctionName = calleeName(call)
		}
		return out, nil
	}

	tree, err := parser.Parse(stripped)
	if err != nil {
		return out, fmt.Errorf("parse %q: %w", exprStr, err)
	}
	switch n := tree.Node.(type) {
	case *ast.IdentifierNode:
		out.VariableName = n.Value
	case *ast.CallNode:
		out.FunctionName = calleeName(n)
	}
	return out, nil
}

func calleeName(call *ast.CallNode) string {
	if id, ok := call.Callee.(*ast.IdentifierNode); ok {
		return id.Value
	}
	return ""
}

// Evaluate implements Evaluator.Evaluate (§4.9): compiles the expression
// against an environment built from the identifiers and call names the
// expression actually references, proxying reads to ctx.Get and calls to
// ctx.Call, then runs it. If the expression is a top-level assignment, the
// result is written back to ctx under the left-hand name before returning.
func (e *ExprEvaluator) Evaluate(ctx Context, exprStr string) (any, error) {
	stripped := stripSigils(exprStr)

	lhs, rhs, isAssign := splitAssignment(stripped)
	body := stripped
	if isAssign {
		body = rhs
	}

	tree, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", exprStr, err)
	}

	vars, calls := collectIdentifiers(tree.Node)
	env := make(map[string]any, len(vars)+len(calls))
	for name := range vars {
		if name == "nil" || name == "true" || name == "false" {
			continue
		}
		v, _ := ctx.Get(name)
		env[name] = v
	}
	for name := range calls {
		name := name
		env[name] = func(args ...any) (any, error) {
			return ctx.Call(name, args)
		}
	}

	program, err := expr.Compile(body, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", exprStr, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", exprStr, err)
	}

	if isAssign {
		ctx.Set(lhs, result)
	}
	return result, nil
}

var nodeType = reflect.TypeOf((*ast.Node)(nil)).Elem()

// collectIdentifiers walks node generically via reflection, returning the
// set of plain variable names it reads and the set of names it invokes as
// functions. Walking by reflection (rather than a hand-maintained type
// switch over every *ast.XNode kind) means new node kinds the grammar
// supports are still traversed correctly as long as their struct fields
// expose child nodes as ast.Node or []ast.Node values.
func collectIdentifiers(node ast.Node) (vars map[string]bool, calls map[string]bool) {
	vars = make(map[string]bool)
	calls = make(map[string]bool)
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		if n == nil || reflect.ValueOf(n).IsNil() {
			return
		}
		switch v := n.(type) {
		case *ast.IdentifierNode:
			vars[v.Value] = true
			return
		case *ast.CallNode:
			if id, ok := v.Callee.(*ast.IdentifierNode); ok {
				calls[id.Value] = true
			} else {
				walk(v.Callee)
			}
			for _, a := range v.Arguments {
				walk(a)
			}
			return
		}
		walkFields(reflect.ValueOf(n), walk)
	}
	walk(node)
	return vars, calls
}

// walkFields inspects v's exported fields for values assignable to
// ast.Node (directly, or element-wise for a slice), invoking visit on each.
func walkFields(v reflect.Value, visit func(ast.Node)) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}
		fv := v.Field(i)
		switch {
		case fv.Type().Implements(nodeType):
			if !fv.IsNil() {
				if n, ok := fv.Interface().(ast.Node); ok {
					visit(n)
				}
			}
		case fv.Kind() == reflect.Slice && fv.Type().Elem().Implements(nodeType):
			for j := 0; j < fv.Len(); j++ {
				ev := fv.Index(j)
				if ev.IsNil() {
					continue
				}
				if n, ok := ev.Interface().(ast.Node); ok {
					visit(n)
				}
			}
		}
	}
}
