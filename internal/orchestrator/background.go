package orchestrator

import (
	"time"

	"github.com/collective-judgment/cjo/internal/model"
	"github.com/collective-judgment/cjo/internal/router"
)

// launchBackgroundTail detaches the post-response work named in spec §4.5:
// store judgment, store consensus, emit JUDGMENT_CREATED (store-then-emit),
// debounced Q-state update. Bounded by bgSem so an overload of concurrent
// submissions queues tails rather than spawning unbounded goroutines; runs
// against bgCtx, independent of the caller's ctx, so cancelling the request
// never cancels its learning/persistence.
func (o *Orchestrator) launchBackgroundTail(envelope model.JudgmentEnvelope, route model.RouteDecision) {
	o.bgWG.Add(1)
	go func() {
		defer o.bgWG.Done()

		select {
		case o.bgSem <- struct{}{}:
			defer func() { <-o.bgSem }()
		case <-o.bgCtx.Done():
			return
		}

		o.runBackgroundTail(envelope, route)
	}()
}

func (o *Orchestrator) runBackgroundTail(envelope model.JudgmentEnvelope, route model.RouteDecision) {
	ctx := o.bgCtx
	judgment := envelope.Judgment

	if o.store != nil {
		if err := o.store.StoreJudgment(ctx, judgment); err != nil {
			o.logger.Error("orchestrator: store judgment failed", "judgment_id", judgment.ID, "error", err)
		}
		if envelope.Consensus != nil {
			if err := o.store.StoreConsensus(ctx, judgment.ID.String(), *envelope.Consensus); err != nil {
				o.logger.Error("orchestrator: store consensus failed", "judgment_id", judgment.ID, "error", err)
			}
		}
	}

	// Store-then-emit: the judgment row above is written before this event
	// reaches any subscriber.
	if o.core != nil {
		o.core.Publish(model.Event{
			Bus:  model.BusCore,
			Kind: model.EventJudgmentCreated,
			Payload: map[string]any{
				"judgment_id": judgment.ID.String(),
				"item_id":     judgment.ItemID.String(),
				"q_score":     judgment.QScore,
				"verdict":     judgment.Verdict,
				"confidence":  judgment.Confidence,
				"residual":    judgment.Residual,
			},
			EmittedAt:     time.Now().UTC(),
			CorrelationID: judgment.ID.String(),
		})
	}

	if envelope.Consensus != nil && o.agent != nil {
		o.agent.Publish(model.Event{
			Bus:  model.BusAgent,
			Kind: model.EventConsensusReached,
			Payload: map[string]any{
				"consensus_id": envelope.Consensus.ConsensusID,
				"topic":        envelope.Consensus.Topic,
				"approved":     envelope.Consensus.Approved,
				"agreement":    envelope.Consensus.Agreement,
			},
			EmittedAt:     time.Now().UTC(),
			CorrelationID: judgment.ID.String(),
		})
		if o.pack != nil {
			o.pack.RecordOutcome(envelope.Consensus.Votes, envelope.Consensus.Approved)
		}
	}

	o.updateQState(route, judgment, nil)
}

// updateQState applies one TD update using explicit feedback when present,
// otherwise the judgment's own quality net of a cost penalty. Each judgment
// is treated as a terminal transition (nextBest=0): Router.Route does not
// model a genuine successor state across independent items, so there is no
// continuation value to bootstrap from.
func (o *Orchestrator) updateQState(route model.RouteDecision, judgment model.Judgment, explicitFeedback *float64) {
	if o.qtable == nil || route.ClassificationKey == "" || route.ActionKey == "" {
		return
	}
	costPenalty := route.CostBudget / 100
	reward := router.Reward(explicitFeedback, judgment.QScore, costPenalty)
	router.Update(o.qtable, route.ClassificationKey, route.ActionKey, reward, 0)
}
