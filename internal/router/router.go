package router

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/collective-judgment/cjo/internal/cjoerr"
	"github.com/collective-judgment/cjo/internal/model"
)

// cheapestTier is the fallback tier when the budget can't sustain anything
// richer, per spec: degrade until a tier fits, and if none does, fall back
// to the cheapest tier with a reduced dimension budget and single-strategy
// judgment rather than refusing to route at all.
const (
	cheapestTier          = model.TierEconomy
	degradedMaxDimensions = 18
	degradedStrategy      = model.StrategySingle
)

// tierOrder is richest-first; degradation walks it in that order and takes
// the first (richest) tier whose estimated cost fits.
var tierOrder = []model.Tier{model.TierPremium, model.TierStandard, model.TierEconomy}

// CostLedger is the subset of costledger.Ledger the Router consults to
// degrade tier against the remaining budget.
type CostLedger interface {
	RemainingBudget() float64
}

// EventPublisher is the Core bus the Router emits routing:decision and
// budget-degradation events onto.
type EventPublisher interface {
	Publish(model.Event)
}

// CircuitBreaker is the budget Circuit Breaker's consumed surface. Satisfied
// by *costledger.Breaker. Nil disables the gate entirely.
type CircuitBreaker interface {
	Allow() bool
}

// Router is the Kabbalistic Router: classify -> consult Q-state/Lightning
// Paths -> Thompson-sample candidate voter sets -> degrade tier against
// budget -> emit the decision.
type Router struct {
	classifier Classifier
	table      *QTable
	policy     *ExplorationPolicy
	bandit     *Bandit
	ledger     CostLedger
	bus        EventPublisher
	breaker    CircuitBreaker
	logger     *slog.Logger

	domainVariants func(domain string) []Variant
}

// SetBreaker wires a Circuit Breaker that Route consults before doing any
// classification or routing work. Optional — a Router with no breaker set
// never blocks on budget-burn grounds (only degradeForBudget's per-request
// tier step-down applies).
func (r *Router) SetBreaker(b CircuitBreaker) {
	r.breaker = b
}

// New builds a Router. bus and ledger may be nil for tests that don't need
// event emission or budget degradation (degradation is skipped when ledger
// is nil).
func New(classifier Classifier, table *QTable, bandit *Bandit, ledger CostLedger, bus EventPublisher, logger *slog.Logger) *Router {
	if classifier == nil {
		classifier = HeuristicClassifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		classifier: classifier,
		table:      table,
		policy:     NewExplorationPolicy(rand.New(rand.NewSource(time.Now().UnixNano()))),
		bandit:     bandit,
		ledger:     ledger,
		bus:        bus,
		logger:     logger,
	}
	r.domainVariants = r.defaultDomainVariants
	return r
}

// Route implements the Router's full algorithm against item.
func (r *Router) Route(ctx context.Context, item model.Item) (model.RouteDecision, error) {
	if r.breaker != nil && !r.breaker.Allow() {
		return model.RouteDecision{}, fmt.Errorf("router: %w", cjoerr.ErrBudgetExhausted)
	}

	classification, err := r.classifier.Classify(ctx, item)
	if err != nil {
		return model.RouteDecision{}, fmt.Errorf("router: classify: %w", err)
	}

	bucket := TimeOfDayBucket(item.ReceivedAt)
	classKey := model.ClassificationKey(classification.Intent, classification.Domain, classification.Complexity, bucket)

	variants := r.domainVariants(classification.Domain)
	if r.bandit != nil {
		if kept := r.bandit.Select(variants); len(kept) > 0 {
			variants = kept
		}
	}

	candidateKeys := make([]string, 0, len(variants)*len(tierOrder))
	byKey := make(map[string]Variant, len(variants)*len(tierOrder))
	for _, v := range variants {
		for _, tier := range tierOrder {
			withTier := v
			withTier.Tier = tier
			key := ActionKey(v.Name, tier)
			candidateKeys = append(candidateKeys, key)
			byKey[key] = withTier
		}
	}

	chosenKey := candidateKeys[0]
	if r.table != nil && len(candidateKeys) > 0 {
		chosenKey = SelectAction(r.table, r.policy, classKey, candidateKeys)
	}
	chosen, ok := byKey[chosenKey]
	if !ok && len(variants) > 0 {
		chosen = Variant{Name: variants[0].Name, Voters: variants[0].Voters, Tier: model.TierStandard}
	}

	decision := model.RouteDecision{
		VoterSet:            chosen.Voters,
		Tier:                chosen.Tier,
		MaxDimensionsScored: 35,
		Strategy:            model.StrategyConsensus,
		CostBudget:          classification.EstCost,
		ClassificationKey:   classKey,
		ActionKey:           chosenKey,
	}

	degraded := r.degradeForBudget(&decision, classification)

	r.emit(model.EventRoutingDecision, map[string]any{
		"classification_key": classKey,
		"action_key":         chosenKey,
		"epsilon":            r.policy.Epsilon(),
		"degraded":           degraded,
		"tier":               decision.Tier,
		"voter_set":          decision.VoterSet,
	}, item)

	return decision, nil
}

// degradeForBudget steps decision.Tier down through tierOrder until its
// estimated cost fits the remaining budget, or falls back to the cheapest
// tier with a reduced dimension budget and single-dog strategy. Returns
// whether any degradation occurred.
func (r *Router) degradeForBudget(decision *model.RouteDecision, classification model.Classification) bool {
	if r.ledger == nil {
		return false
	}
	remaining := r.ledger.RemainingBudget()
	if classification.EstCost <= remaining {
		return false
	}

	originalTier := decision.Tier
	for _, tier := range tierOrder {
		cost := estimatedCostForTier(classification, tier)
		if cost <= remaining {
			decision.Tier = tier
			return tier != originalTier
		}
	}

	decision.Tier = cheapestTier
	decision.MaxDimensionsScored = degradedMaxDimensions
	decision.Strategy = degradedStrategy
	r.emit(model.EventBudgetDegraded, map[string]any{
		"remaining_budget": remaining,
		"est_cost":         classification.EstCost,
	}, model.Item{})
	return true
}

// estimatedCostForTier scales the classification's base cost estimate by
// tier, premium costing the most and economy the least.
func estimatedCostForTier(c model.Classification, tier model.Tier) float64 {
	base := c.EstCost
	switch tier {
	case model.TierPremium:
		return base / model.PhiInv2 // richer tier, phi^2 (about 2.6) times the base cost
	case model.TierEconomy:
		return base * model.PhiInv2
	default:
		return base
	}
}

func (r *Router) emit(kind string, payload map[string]any, item model.Item) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(model.Event{
		Bus:           model.BusCore,
		Kind:          kind,
		Payload:       payload,
		EmittedAt:     time.Now().UTC(),
		CorrelationID: item.ID.String(),
	})
}

// defaultDomainVariants builds the candidate voter-set variants for a
// domain: the static Lightning Path as the "full" variant plus a "lean"
// variant keeping only the path's first three voters (guardian first), giving
// the bandit and Q-learner a genuine choice to learn between.
func (r *Router) defaultDomainVariants(domain string) []Variant {
	full := LightningPath(domain)
	variants := []Variant{{Name: "full", Voters: full}}
	if len(full) > 3 {
		lean := append([]model.DogName(nil), full[:3]...)
		variants = append(variants, Variant{Name: "lean", Voters: lean})
	}
	return variants
}
