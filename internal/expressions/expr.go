package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rendis/evoflow/pkg/schema"
)

// ExprEngine evaluates Expr expressions against a map scope. Programs are
// compiled once per expression string and cached for reuse across goroutines.
// Extra compile options narrow the accepted grammar; the condition evaluator
// uses this to require boolean-typed expressions.
type ExprEngine struct {
	opts []expr.Option

	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewExprEngine creates an engine accepting the full Expr grammar. Transform
// steps use this variant: any output type is allowed.
func NewExprEngine(opts ...expr.Option) *ExprEngine {
	return &ExprEngine{
		opts:     opts,
		programs: make(map[string]*vm.Program),
	}
}

// NewBoolExprEngine creates an engine restricted to boolean-typed
// expressions: comparisons, logic operators and boolean variables. An
// expression whose static type is provably not bool is rejected at compile
// time; dynamically-typed ones are checked at run time.
func NewBoolExprEngine() *ExprEngine {
	return NewExprEngine(expr.AsBool())
}

// Name returns the engine identifier.
func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate runs the expression against the scope. Scope keys appear as
// top-level variables; unknown identifiers resolve to nil rather than failing.
func (e *ExprEngine) Evaluate(ctx context.Context, expression string, scope map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}
	if scope == nil {
		scope = map[string]any{}
	}

	program, err := e.program(expression, scope)
	if err != nil {
		return nil, err
	}

	out, err := vm.Run(program, scope)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"expr evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	return out, nil
}

// program returns the cached compiled form of the expression, compiling it on
// first use. The scope supplies the environment shape for type checking. Two
// goroutines racing on a cold expression may both compile it; the cache keeps
// whichever stores last.
func (e *ExprEngine) program(expression string, scope map[string]any) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	opts := append([]expr.Option{
		expr.Env(scope),
		expr.AllowUndefinedVariables(),
	}, e.opts...)

	compiled, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"expr compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.mu.Lock()
	e.programs[expression] = compiled
	e.mu.Unlock()
	return compiled, nil
}

var _ Engine = (*ExprEngine)(nil)
