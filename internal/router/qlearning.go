package router

import (
	"math/rand"

	"github.com/collective-judgment/cjo/internal/model"
)

const (
	qConvergenceVisits = 20
	qAlpha             = model.PhiInv  // learning rate
	qGamma             = model.PhiInv2 // discount factor

	explorationStart = 0.10
	explorationDecay = 0.99
	explorationFloor = model.PhiInv4
)

// ExplorationPolicy tracks the router's decaying epsilon for epsilon-greedy
// action selection. One policy is shared across the router's lifetime; each
// SelectAction call decays epsilon toward its floor.
type ExplorationPolicy struct {
	epsilon float64
	rng     *rand.Rand
}

// NewExplorationPolicy starts epsilon at its spec-defined seed.
func NewExplorationPolicy(rng *rand.Rand) *ExplorationPolicy {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &ExplorationPolicy{epsilon: explorationStart, rng: rng}
}

// Epsilon returns the current exploration rate.
func (e *ExplorationPolicy) Epsilon() float64 { return e.epsilon }

// ShouldExplore rolls the epsilon-greedy coin.
func (e *ExplorationPolicy) ShouldExplore() bool {
	return e.rng.Float64() < e.epsilon
}

// Decay shrinks epsilon by the spec's per-update factor, floored at phi^-4.
func (e *ExplorationPolicy) Decay() {
	e.epsilon *= explorationDecay
	if e.epsilon < explorationFloor {
		e.epsilon = explorationFloor
	}
}

// ActionKey encodes a candidate action (variant, tier) into the Q-table's
// flat action key.
func ActionKey(variantName string, tier model.Tier) string {
	return variantName + "|" + string(tier)
}

// SelectAction chooses an action key for classificationKey among candidates,
// per spec: if the best candidate has converged (visits >= 20) and the
// exploration roll favors exploitation, take the argmax; otherwise explore.
// Converged means at least one candidate has reached the visit floor, not
// that every candidate has — an unvisited new variant under a converged
// state still gets its fair exploration share.
func SelectAction(table *QTable, policy *ExplorationPolicy, classificationKey string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	best, _, found := table.BestAction(classificationKey, candidates)
	converged := found && table.Visits(classificationKey, best) >= qConvergenceVisits

	if converged && !policy.ShouldExplore() {
		policy.Decay()
		return best
	}
	policy.Decay()
	return candidates[policy.rng.Intn(len(candidates))]
}

// Update applies one Q-learning TD step:
//
//	Q(s,a) <- Q(s,a) + alpha*(r + gamma*max_a' Q(s',a') - Q(s,a))
//
// nextBest is the best known value for the next state (0 if the next state
// is unseen, per the usual bootstrap-from-zero convention).
func Update(table *QTable, classificationKey, actionKey string, reward, nextBest float64) {
	current, _ := table.Get(classificationKey, actionKey)
	newValue := current.Value + qAlpha*(reward+qGamma*nextBest-current.Value)
	table.Update(classificationKey, actionKey, newValue)
}

// Reward derives the Q-learning reward signal from explicit feedback when
// available, otherwise from judgment quality net of a cost penalty.
func Reward(explicitFeedback *float64, qualityScore, costPenalty float64) float64 {
	if explicitFeedback != nil {
		return *explicitFeedback
	}
	return qualityScore/100 - costPenalty
}
