package scoring

import (
	"context"

	"github.com/collective-judgment/cjo/internal/model"
)

// Scorer computes a single named dimension's score for an item. Scorers are
// external collaborators — LLM-backed, heuristic, or rule-based — consumed
// through this interface only; the engine never cares which.
type Scorer interface {
	Score(ctx context.Context, item model.Item, class model.Classification, dimension string) (model.DimensionScore, error)
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(ctx context.Context, item model.Item, class model.Classification, dimension string) (model.DimensionScore, error)

func (f ScorerFunc) Score(ctx context.Context, item model.Item, class model.Classification, dimension string) (model.DimensionScore, error) {
	return f(ctx, item, class, dimension)
}

// HeuristicScorer scores dimensions from simple, deterministic signals on
// the item body and context — no network, no LLM. It is the degraded-mode
// and test fallback: always available, never times out.
//
// Grounded on the same additive-factor style as the precedent quality
// scorer: a handful of independent checks, each worth a fixed share of the
// 0-100 range, summed and clamped.
type HeuristicScorer struct {
	Version string
}

func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{Version: "heuristic-v1"}
}

func (h *HeuristicScorer) Score(_ context.Context, item model.Item, _ model.Classification, dimension string) (model.DimensionScore, error) {
	var score float64

	bodyLen := len(item.Body)
	switch {
	case bodyLen > 500:
		score += 40
	case bodyLen > 100:
		score += 25
	case bodyLen > 20:
		score += 10
	}

	if len(item.Context) > 0 {
		score += 20
	}
	if item.SessionID != "" {
		score += 15
	}
	if item.UserID != "" {
		score += 10
	}

	// Dimensions in the BURN axiom measure cost/efficiency; a heuristic
	// scorer without real usage data assumes a neutral midpoint instead of
	// rewarding body length, which would bias toward "longer is cheaper".
	if axiom, _, ok := AxiomForDimension(dimension); ok && axiom == model.AxiomBURN {
		score = 50
	}

	if score > 100 {
		score = 100
	}
	return model.DimensionScore{DimensionName: dimension, Score: score, ScorerVersion: h.Version}, nil
}
