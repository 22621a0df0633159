// Package router implements the Kabbalistic Router: it classifies an Item,
// consults the static Lightning Paths domain table and a learned Q-table,
// draws a Thompson-sampled bandit weight per candidate voter set, and
// degrades tier against the Cost Ledger's remaining budget.
package router

import (
	"context"
	"strings"
	"time"

	"github.com/collective-judgment/cjo/internal/model"
)

// Classifier derives a Classification from an Item.
type Classifier interface {
	Classify(ctx context.Context, item model.Item) (model.Classification, error)
}

// kindIntent maps an Item's Kind to the intent label the rest of the router
// keys its tables on.
var kindIntent = map[model.Kind]string{
	model.KindCodeReview:       "review",
	model.KindTokenAnalysis:    "analyze",
	model.KindPatternDetection: "detect",
	model.KindToolInvocation:   "invoke",
	model.KindFreeText:         "converse",
}

// HeuristicClassifier derives a Classification without calling out to an
// LLM: domain and intent come from the Item's Kind and context, complexity
// from tiered body-length bands, each band mapping to a fixed seed cost
// estimate.
type HeuristicClassifier struct{}

// Classify implements Classifier.
func (HeuristicClassifier) Classify(_ context.Context, item model.Item) (model.Classification, error) {
	intent, ok := kindIntent[item.Kind]
	if !ok {
		intent = "unknown"
	}

	domain := "general"
	if d, ok := item.Context["domain"].(string); ok && strings.TrimSpace(d) != "" {
		domain = d
	}

	complexity := complexityForBody(item.Body)
	return model.Classification{
		Intent:     intent,
		Domain:     domain,
		Complexity: complexity,
		EstCost:    estimatedCost(complexity),
	}, nil
}

// complexityForBody buckets by body length: longer inputs generally demand
// deeper judgment, though this is a seed heuristic the Q-learner refines
// over time via observed outcomes.
func complexityForBody(body string) model.Complexity {
	n := len(strings.TrimSpace(body))
	switch {
	case n > 4000:
		return model.ComplexityEpic
	case n > 1000:
		return model.ComplexityComplex
	case n > 300:
		return model.ComplexityModerate
	case n > 50:
		return model.ComplexitySimple
	default:
		return model.ComplexityTrivial
	}
}

// estimatedCost is the seed per-complexity cost estimate in budget units,
// consulted before any observed CostRecord history exists for a class.
func estimatedCost(c model.Complexity) float64 {
	switch c {
	case model.ComplexityTrivial:
		return 0.005
	case model.ComplexitySimple:
		return 0.02
	case model.ComplexityModerate:
		return 0.05
	case model.ComplexityComplex:
		return 0.12
	case model.ComplexityEpic:
		return 0.30
	default:
		return 0.05
	}
}

// TimeOfDayBucket buckets a timestamp into the QState feature vector's
// coarse time-of-day slot.
func TimeOfDayBucket(t time.Time) model.TimeOfDayBucket {
	switch h := t.Hour(); {
	case h < 6:
		return model.BucketNight
	case h < 12:
		return model.BucketMorning
	case h < 18:
		return model.BucketAfternoon
	default:
		return model.BucketEvening
	}
}
