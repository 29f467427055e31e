package eval

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
)

// DSLEvaluator evaluates a restricted boolean expression against a scope
// of {task, manifest, events, steps, extras}. Two layers enforce the
// allow-list (boolean ops, comparisons, constants, name lookups,
// subscripts, arithmetic): the expression environment
// is a plain map with no functions registered, and sandboxVisitor walks
// the compiled AST rejecting call, builtin, closure/lambda, and
// method-call nodes outright. The env alone isn't enough — expr-lang's
// built-in functions (len, all, any, filter, map, ...) and lambda syntax
// are reachable regardless of what's registered in the env, so they must
// be rejected at the AST level, not just left uncallable.
type DSLEvaluator struct {
	Name       string
	Expression string
}

// sandboxVisitor implements ast.Visitor, failing compilation the moment
// it sees a node kind outside the allow-list.
type sandboxVisitor struct {
	err error
}

func (v *sandboxVisitor) Visit(node *ast.Node) {
	if v.err != nil {
		return
	}
	switch n := (*node).(type) {
	case *ast.CallNode:
		v.err = fmt.Errorf("call expressions are not allowed")
	case *ast.BuiltinNode:
		v.err = fmt.Errorf("builtin function %q is not allowed", n.Name)
	case *ast.PredicateNode:
		v.err = fmt.Errorf("closures/lambdas are not allowed")
	case *ast.MemberNode:
		if n.Method {
			v.err = fmt.Errorf("method calls are not allowed")
		}
	}
}

// Evaluate implements Evaluator.
func (d DSLEvaluator) Evaluate(ctx Context) Result {
	name := d.Name
	if name == "" {
		name = "dsl_based"
	}

	scope := map[string]any{
		"task": map[string]any{
			"id":        ctx.TaskID,
			"objective": ctx.Objective,
		},
		"manifest": ctx.Manifest,
		"events":   ctx.Events,
		"steps":    ctx.Steps,
		"extras":   ctx.Extras,
	}

	visitor := &sandboxVisitor{}
	program, err := expr.Compile(d.Expression,
		expr.Env(scope), expr.AsBool(), expr.AllowUndefinedVariables(),
		expr.DisableAllBuiltins(), expr.Patch(visitor),
	)
	if err == nil {
		err = visitor.err
	}
	if err != nil {
		return Result{
			Name: name, Success: false, Score: 0,
			Reasons:  []string{fmt.Sprintf("dsl_compile_error:%v", err)},
			Evidence: map[string]any{"expression": d.Expression},
		}
	}

	out, err := expr.Run(program, scope)
	if err != nil {
		return Result{
			Name: name, Success: false, Score: 0,
			Reasons:  []string{fmt.Sprintf("dsl_eval_error:%v", err)},
			Evidence: map[string]any{"expression": d.Expression},
		}
	}

	ok, _ := out.(bool)
	score := 0.0
	var reasons []string
	if ok {
		score = 1.0
	} else {
		reasons = []string{"dsl_expression_false"}
	}
	return Result{
		Name: name, Success: ok, Score: score, Reasons: reasons,
		Evidence: map[string]any{"expression": d.Expression, "value": out},
	}
}

var _ Evaluator = DSLEvaluator{}
