package cspec

import "log/slog"

// Engine glues the command-tree builder, executor, decorator, and result
// aggregator together (C1–C7 plus C9) into the single call a Runner needs:
// given a parsed Document and a fixture, produce a Result and leave the
// Document mutated with success/failure/exception markup.
type Engine struct {
	Evaluator Evaluator
	Log       *slog.Logger

	// Namespace overrides the command namespace URI the tree builder scans
	// for (§4.14). Empty uses the well-known Namespace constant.
	Namespace string
}

// NewEngine returns an Engine using the default expr-lang evaluator.
func NewEngine(log *slog.Logger) *Engine {
	return &Engine{Evaluator: NewExprEvaluator(), Log: log}
}

// Execute builds and runs doc's command tree against fixture, returning the
// aggregated Result. delegator may be nil if the document contains no `run`
// commands; if it does, and delegator is nil, the `run` command surfaces
// ErrDelegationNotConfigured as an internal error.
func (e *Engine) Execute(doc *Document, fixture Context, delegator Delegator) (*Result, error) {
	dec := NewDecorator()
	builder := NewTreeBuilder(doc, e.Namespace, fixture, e.Evaluator, dec, delegator)

	roots, err := builder.Build()
	if err != nil {
		return nil, err
	}

	exec := NewExecutor(e.Log)
	if err := exec.Run(roots); err != nil {
		return nil, err
	}

	return Aggregate(doc), nil
}
