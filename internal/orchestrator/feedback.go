package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/collective-judgment/cjo/internal/model"
)

// Outcome is the caller's verdict on a previously returned Judgment.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomePartial   Outcome = "partial"
)

// scoreForOutcome maps a coarse Outcome to the [-1,1] reward Feedback
// carries when the caller doesn't supply an actualScore directly.
func scoreForOutcome(o Outcome) float64 {
	switch o {
	case OutcomeCorrect:
		return 1
	case OutcomeIncorrect:
		return -1
	case OutcomePartial:
		return 0
	default:
		return 0
	}
}

// Feedback records an explicit reward signal against judgmentID and, when
// the judgment's routing context is still held in memory (it is not
// reloaded from the store), applies an immediate TD update using that signal in
// place of the judgment's own quality estimate -- explicit feedback is
// always the preferred reward source per the Router's Reward function.
func (o *Orchestrator) Feedback(ctx context.Context, judgmentID uuid.UUID, outcome Outcome, actualScore *float64) error {
	score := scoreForOutcome(outcome)
	if actualScore != nil {
		score = *actualScore
	}

	fb := model.Feedback{
		ID:         uuid.New(),
		JudgmentID: judgmentID,
		Score:      score,
	}

	if o.store != nil {
		if err := o.store.StoreFeedback(ctx, fb); err != nil {
			return fmt.Errorf("orchestrator: store feedback: %w", err)
		}
	}

	o.mu.RLock()
	var route model.RouteDecision
	var judgment model.Judgment
	for _, rec := range o.submissions {
		if rec.done && rec.judgmentID == judgmentID {
			route = rec.envelope.RouteDecision
			judgment = rec.envelope.Judgment
			break
		}
	}
	o.mu.RUnlock()

	if route.ClassificationKey != "" {
		o.updateQState(route, judgment, &score)
	}

	if o.core != nil {
		o.core.Publish(model.Event{
			Bus:  model.BusCore,
			Kind: "USER_FEEDBACK",
			Payload: map[string]any{
				"judgment_id": judgmentID.String(),
				"outcome":     outcome,
				"score":       score,
			},
		})
	}

	return nil
}
