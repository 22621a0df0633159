// Package orchestrator implements the Unified Orchestrator: the critical
// path that turns an Item into a JudgmentEnvelope (classify -> route ->
// judge -> consensus -> format_response) plus the detached background tail
// that persists, emits, and learns from the outcome without holding up the
// caller.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/collective-judgment/cjo/internal/cjoerr"
	"github.com/collective-judgment/cjo/internal/dogpack"
	"github.com/collective-judgment/cjo/internal/eventfabric"
	"github.com/collective-judgment/cjo/internal/model"
	"github.com/collective-judgment/cjo/internal/router"
)

// Store is the subset of the persistence layer the Orchestrator consumes.
// Satisfied by *storage.Store.
type Store interface {
	StoreJudgment(ctx context.Context, j model.Judgment) error
	GetJudgment(ctx context.Context, id uuid.UUID) (model.Judgment, error)
	StoreConsensus(ctx context.Context, judgmentID string, result model.ConsensusResult) error
	GetConsensus(ctx context.Context, judgmentID string) (model.ConsensusResult, bool, error)
	StoreFeedback(ctx context.Context, fb model.Feedback) error
}

// CostLedger is the subset of costledger.Ledger the Orchestrator charges
// against and reads for health reporting.
type CostLedger interface {
	Charge(opID string, tier model.Tier, tokensIn, tokensOut int, cost float64, degraded bool) (model.CostRecord, error)
	RemainingBudget() float64
}

// Judger is the Judgment Engine's consumed surface. Satisfied by
// *scoring.Engine.
type Judger interface {
	Judge(ctx context.Context, item model.Item, class model.Classification) (model.Judgment, error)
}

// ConsensusRunner is the Dog Pack's consumed surface. Satisfied by
// *dogpack.Pack.
type ConsensusRunner interface {
	RunConsensus(ctx context.Context, topic string, route model.RouteDecision, voter dogpack.Voter, softTimeout, hardTimeout time.Duration) (model.ConsensusResult, error)
	RecordOutcome(votes []model.Vote, outcomeApproved bool)
}

// Routable is the Router's consumed surface. Satisfied by *router.Router.
type Routable interface {
	Route(ctx context.Context, item model.Item) (model.RouteDecision, error)
}

// Timeouts bundles every deadline the critical path and its sub-steps
// observe, per spec §5.
type Timeouts struct {
	DimensionScoreSoft time.Duration
	DimensionScoreHard time.Duration
	DogVoteSoft        time.Duration
	DogVoteHard        time.Duration
	ConsensusHard      time.Duration
	CriticalPathHard   time.Duration
}

// Config constructs an Orchestrator.
type Config struct {
	// Classifier must be the same instance (or an equivalent, deterministic
	// twin) given to Router: Submit classifies once for its own critical-
	// path steps (judge, consensus topic) and Router.Route classifies a
	// second time internally for its Q-table lookup. Both calls are pure
	// functions of item, so a consistent classifier makes the duplication
	// harmless; a divergent one would desync the two steps silently.
	Classifier router.Classifier
	Router     Routable
	Engine     Judger
	Pack       ConsensusRunner
	Voter      dogpack.Voter
	Ledger     CostLedger
	QTable     *router.QTable
	Store      Store
	Core       *eventfabric.Bus
	Agent      *eventfabric.Bus
	Logger     *slog.Logger

	Timeouts Timeouts

	// BackgroundTailConcurrency bounds how many detached background tails
	// may run at once; excess tails queue for a slot.
	BackgroundTailConcurrency int
	// BackgroundTailGracePeriod bounds how long Shutdown waits for
	// in-flight background tails to finish before giving up on them.
	BackgroundTailGracePeriod time.Duration
}

// Orchestrator owns the critical path and the background fan-out for every
// submitted Item.
type Orchestrator struct {
	classifier router.Classifier
	router     Routable
	engine     Judger
	pack       ConsensusRunner
	voter      dogpack.Voter
	ledger     CostLedger
	qtable     *router.QTable
	store      Store
	core       *eventfabric.Bus
	agent      *eventfabric.Bus
	logger     *slog.Logger

	timeouts Timeouts

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
	bgSem    chan struct{}
	bgGrace  time.Duration

	mu          sync.RWMutex
	submissions map[uuid.UUID]*submission
}

type submission struct {
	judgmentID uuid.UUID
	envelope   model.JudgmentEnvelope
	err        error
	done       bool
	cancel     context.CancelFunc
}

// New builds an Orchestrator. classifier defaults to
// router.HeuristicClassifier{} when nil, matching the Router's own default.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = router.HeuristicClassifier{}
	}
	concurrency := cfg.BackgroundTailConcurrency
	if concurrency <= 0 {
		concurrency = 32
	}
	grace := cfg.BackgroundTailGracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		classifier:  classifier,
		router:      cfg.Router,
		engine:      cfg.Engine,
		pack:        cfg.Pack,
		voter:       cfg.Voter,
		ledger:      cfg.Ledger,
		qtable:      cfg.QTable,
		store:       cfg.Store,
		core:        cfg.Core,
		agent:       cfg.Agent,
		logger:      logger,
		timeouts:    cfg.Timeouts,
		bgCtx:       bgCtx,
		bgCancel:    bgCancel,
		bgSem:       make(chan struct{}, concurrency),
		bgGrace:     grace,
		submissions: make(map[uuid.UUID]*submission),
	}
}

// Submit runs the synchronous critical path to completion and returns its
// JudgmentEnvelope. Detaches persistence, event emission, and learning into
// a background tail that survives ctx's cancellation.
func (o *Orchestrator) Submit(ctx context.Context, item model.Item) (model.JudgmentEnvelope, error) {
	if o.timeouts.CriticalPathHard > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeouts.CriticalPathHard)
		defer cancel()
	}

	class, err := o.classifier.Classify(ctx, item)
	if err != nil {
		envelope := o.barkForClassifierFailure(item, err)
		o.launchBackgroundTail(envelope, model.RouteDecision{})
		return envelope, nil
	}

	route, err := o.router.Route(ctx, item)
	if err != nil {
		envelope := o.barkForClassifierFailure(item, err)
		o.launchBackgroundTail(envelope, model.RouteDecision{})
		return envelope, nil
	}

	judgment, err := o.engine.Judge(ctx, item, class)
	if err != nil {
		if errors.Is(err, cjoerr.ErrInsufficientSignal) {
			judgment = o.growlPlaceholder(item, err)
			envelope := model.JudgmentEnvelope{Judgment: judgment, Classification: class, RouteDecision: route}
			o.chargeAndFinish(ctx, &envelope, route)
			o.launchBackgroundTail(envelope, route)
			return envelope, nil
		}
		return model.JudgmentEnvelope{}, fmt.Errorf("orchestrator: judge: %w", err)
	}

	envelope := model.JudgmentEnvelope{Judgment: judgment, Classification: class, RouteDecision: route}

	consensus, ranConsensus := o.runConsensus(ctx, item, class, route)
	if ranConsensus && !consensus.Insufficient {
		envelope.Consensus = &consensus
	}

	o.chargeAndFinish(ctx, &envelope, route)
	o.launchBackgroundTail(envelope, route)

	o.mu.Lock()
	o.submissions[judgment.ID] = &submission{judgmentID: judgment.ID, envelope: envelope, done: true}
	o.mu.Unlock()

	return envelope, nil
}

// runConsensus convenes the Dog Pack under ConsensusHard, bounded separately
// from the per-dog soft/hard vote timeouts. topic is the classified domain,
// the same namespace the Guardian's veto glob patterns match against.
func (o *Orchestrator) runConsensus(ctx context.Context, item model.Item, class model.Classification, route model.RouteDecision) (model.ConsensusResult, bool) {
	if o.pack == nil || o.voter == nil {
		return model.ConsensusResult{}, false
	}

	topic := class.Domain
	if topic == "" {
		topic = class.Intent
	}

	consensusCtx := ctx
	if o.timeouts.ConsensusHard > 0 {
		var cancel context.CancelFunc
		consensusCtx, cancel = context.WithTimeout(ctx, o.timeouts.ConsensusHard)
		defer cancel()
	}

	result, err := o.pack.RunConsensus(consensusCtx, topic, route, o.voter, o.timeouts.DogVoteSoft, o.timeouts.DogVoteHard)
	if err != nil {
		o.logger.Warn("orchestrator: consensus round failed", "item_id", item.ID, "error", err)
		return model.ConsensusResult{}, false
	}
	return result, true
}

// barkForClassifierFailure builds the spec's fixed failure-mode judgment:
// confidence 0, verdict BARK, reasoning naming what failed.
func (o *Orchestrator) barkForClassifierFailure(item model.Item, cause error) model.JudgmentEnvelope {
	j := model.Judgment{
		ID:            uuid.New(),
		ItemID:        item.ID,
		QScore:        0,
		Verdict:       model.VerdictBark,
		Confidence:    0,
		ReasoningPath: []string{fmt.Sprintf("classification failed: %v", cause)},
		CreatedAt:     time.Now().UTC(),
	}
	return model.JudgmentEnvelope{Judgment: j}
}

// growlPlaceholder builds the spec's fixed failure-mode judgment for a
// judge step that couldn't gather enough dimension signal to score.
func (o *Orchestrator) growlPlaceholder(item model.Item, cause error) model.Judgment {
	return model.Judgment{
		ID:            uuid.New(),
		ItemID:        item.ID,
		QScore:        38.2,
		Verdict:       model.VerdictGrowl,
		Confidence:    model.ClampConfidence(0.1),
		ReasoningPath: []string{fmt.Sprintf("insufficient signal: %v", cause)},
		CreatedAt:     time.Now().UTC(),
	}
}

// chargeAndFinish charges the Cost Ledger for the routed tier and attaches
// the resulting CostRecord to envelope. The charge happens synchronously --
// unlike the persistence/emission/learning steps, it is an in-memory,
// mutex-guarded operation, not I/O, so deferring it to the background tail
// would let a burst of concurrent requests race past the budget cap before
// the charge lands.
func (o *Orchestrator) chargeAndFinish(_ context.Context, envelope *model.JudgmentEnvelope, route model.RouteDecision) {
	if o.ledger == nil {
		return
	}
	degraded := route.MaxDimensionsScored > 0 && route.MaxDimensionsScored < 35
	record, err := o.ledger.Charge(envelope.Judgment.ID.String(), route.Tier, 0, 0, route.CostBudget, degraded)
	if err != nil && !errors.Is(err, cjoerr.ErrBudgetExhausted) {
		o.logger.Warn("orchestrator: cost ledger charge failed", "error", err)
	}
	envelope.CostRecord = record
}
