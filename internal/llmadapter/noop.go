package llmadapter

import "context"

// Noop never calls out. It is the degraded-mode and test default: every
// generation "succeeds" with an empty result and zero cost, so the rest of
// the pipeline runs against heuristic scoring alone.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) Generate(_ context.Context, _ string, _ int, _ string) (Result, error) {
	return Result{}, nil
}
