// Package scoring implements the Judgment Engine: it fans a scored Item out
// across 35 named dimensions, aggregates them into five axiom scores and a
// residual, and produces a single Judgment with a banded verdict and a
// hard-clamped confidence.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/collective-judgment/cjo/internal/cjoerr"
	"github.com/collective-judgment/cjo/internal/model"
	"github.com/collective-judgment/cjo/internal/workerpool"
)

const scorerMaxRetries = 3

// Engine runs the dimension-scoring fan-out and aggregation.
type Engine struct {
	scorer      Scorer
	pool        *workerpool.Pool
	softTimeout time.Duration
	hardTimeout time.Duration
	logger      *slog.Logger
}

// NewEngine builds a judgment Engine. scorer answers every (item, dimension)
// query; pool bounds how many dimensions are scored concurrently.
func NewEngine(scorer Scorer, pool *workerpool.Pool, softTimeout, hardTimeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{scorer: scorer, pool: pool, softTimeout: softTimeout, hardTimeout: hardTimeout, logger: logger}
}

// scoreResult is one dimension's outcome: either a populated score or a null
// slot from exhausted retries.
type scoreResult struct {
	dimension string
	score     model.DimensionScore
	failed    bool
}

// Judge scores item across every named dimension, aggregates into axiom
// scores and a residual, and returns the resulting Judgment. Returns
// cjoerr.ErrInsufficientSignal if too few dimensions survived scoring to
// judge responsibly.
func (e *Engine) Judge(ctx context.Context, item model.Item, class model.Classification) (model.Judgment, error) {
	names := AllDimensionNames()

	results, err := workerpool.Map(ctx, e.pool, names, func(ctx context.Context, dimension string) (scoreResult, error) {
		return e.scoreOneDimension(ctx, item, class, dimension), nil
	})
	if err != nil {
		// A scoreOneDimension call never itself returns an error (failures are
		// captured in scoreResult.failed); this can only be cancellation.
		return model.Judgment{}, fmt.Errorf("scoring: judge: %w", cjoerr.ErrCancelled)
	}

	byDimension := make(map[string]model.DimensionScore, len(results))
	var namedForResidual []float64
	var failedCount int
	for _, r := range results {
		if r.failed {
			failedCount++
			continue
		}
		byDimension[r.dimension] = r.score
		namedForResidual = append(namedForResidual, r.score.Score)
	}

	// More than a third of the 35 dimensions missing leaves too little
	// signal to aggregate responsibly.
	if failedCount > len(names)/3 {
		return model.Judgment{}, fmt.Errorf("scoring: %d/%d dimensions failed: %w", failedCount, len(names), cjoerr.ErrInsufficientSignal)
	}

	var axioms [5]model.AxiomScore
	var allDimensions []model.DimensionScore
	for i, axiom := range AxiomOrder {
		var slots [7]model.DimensionScore
		names := AxiomDimensions[axiom]
		for j, name := range names {
			if ds, ok := byDimension[name]; ok {
				slots[j] = ds
			} else {
				// Null slot: treated as the axiom's own running average so a
				// single dropped scorer doesn't silently zero out the axiom.
				slots[j] = model.DimensionScore{DimensionName: name, Score: axiomRunningAverage(slots[:j])}
			}
			allDimensions = append(allDimensions, slots[j])
		}
		axioms[i] = aggregateAxiom(axiom, slots)
	}

	r := residual(namedForResidual)
	allDimensions = append(allDimensions, model.DimensionScore{DimensionName: "residual", Score: r})

	q := qScore(axioms)
	confidence := model.ClampConfidence(1 - float64(failedCount)/float64(len(names)))

	j := model.Judgment{
		ID:          uuid.New(),
		ItemID:      item.ID,
		AxiomScores: axioms,
		Dimensions:  allDimensions,
		Residual:    r,
		QScore:      q,
		Verdict:     model.VerdictForScore(q),
		Confidence:  confidence,
		CreatedAt:   time.Now().UTC(),
	}
	if r < ResidualAnomalyThreshold {
		j.ReasoningPath = append(j.ReasoningPath, fmt.Sprintf("residual %.1f below anomaly threshold %.1f: unexplained variance across dimensions", r, ResidualAnomalyThreshold))
	}
	return j, nil
}

// axiomRunningAverage returns the mean of already-scored slots in an axiom,
// or 50 (neutral midpoint) if none have been scored yet.
func axiomRunningAverage(slots []model.DimensionScore) float64 {
	if len(slots) == 0 {
		return 50
	}
	var sum float64
	for _, s := range slots {
		sum += s.Score
	}
	return sum / float64(len(slots))
}

// scoreOneDimension retries the scorer up to scorerMaxRetries times under
// the hard timeout, logging (and eventually marking null) on exhaustion.
func (e *Engine) scoreOneDimension(ctx context.Context, item model.Item, class model.Classification, dimension string) scoreResult {
	var lastErr error
	for attempt := 0; attempt <= scorerMaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.hardTimeout)
		start := time.Now()
		ds, err := e.scorer.Score(callCtx, item, class, dimension)
		elapsed := time.Since(start)
		cancel()

		if err == nil {
			if elapsed > e.softTimeout {
				e.logger.Warn("scoring: dimension scorer exceeded soft timeout", "dimension", dimension, "elapsed", elapsed)
			}
			return scoreResult{dimension: dimension, score: ds}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	e.logger.Warn("scoring: dimension scorer failed, marking null slot", "dimension", dimension, "error", lastErr, "kind", cjoerr.ErrScorerFailure)
	return scoreResult{dimension: dimension, failed: true}
}
