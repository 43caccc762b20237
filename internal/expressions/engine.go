package expressions

import "context"

// Engine evaluates expressions against workflow state.
// Three implementations: Expr (conditions, default), CEL (conditions via
// "cel:" prefix), GoJQ (fitness projections over execution results).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
