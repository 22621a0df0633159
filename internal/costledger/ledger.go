// Package costledger tracks the running token-spend budget for the
// orchestrator: an append-only in-memory ring of CostRecord entries with a
// debounced background flush to durable storage, plus the burn-rate and
// exhaustion-forecast queries the Router and Circuit Breaker consult.
package costledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/collective-judgment/cjo/internal/cjoerr"
	"github.com/collective-judgment/cjo/internal/model"
)

// maxRingSize bounds the in-memory ring so a stalled sink can't grow it
// without bound.
const maxRingSize = 50_000

// Sink persists a batch of cost records. Implementations may fail
// transiently; the Ledger retries on the next flush tick rather than
// dropping records.
type Sink interface {
	FlushCostRecords(ctx context.Context, records []model.CostRecord) error
}

// Ledger is the running budget and its append-only record ring.
type Ledger struct {
	mu      sync.Mutex
	budget  float64
	records []model.CostRecord

	sink          Sink
	logger        *slog.Logger
	flushInterval time.Duration

	dirty      atomic.Bool
	started    atomic.Bool
	flushCh    chan struct{}
	done       chan struct{}
	cancelLoop context.CancelFunc
	drainOnce  sync.Once
}

// NewLedger builds a Ledger with the given starting budget. sink may be nil,
// in which case flushes are no-ops (records still accumulate and are
// queryable in memory).
func NewLedger(initialBudget float64, sink Sink, flushInterval time.Duration, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		budget:        initialBudget,
		sink:          sink,
		logger:        logger,
		flushInterval: flushInterval,
		flushCh:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start begins the debounced flush loop. Safe to call once; later calls are
// no-ops.
func (l *Ledger) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	l.cancelLoop = cancel
	go l.flushLoop(loopCtx)
}

// Charge debits cost from the budget and appends a CostRecord, returning it.
// A negative resulting budget does not block the charge — the ledger always
// records what happened — but the returned error wraps
// cjoerr.ErrBudgetExhausted so the Router can react by degrading tier.
func (l *Ledger) Charge(opID string, tier model.Tier, tokensIn, tokensOut int, cost float64, degraded bool) (model.CostRecord, error) {
	l.mu.Lock()
	before := l.budget
	l.budget -= cost
	after := l.budget
	rec := model.CostRecord{
		OpID:         opID,
		TokensIn:     tokensIn,
		TokensOut:    tokensOut,
		ModelTier:    tier,
		Cost:         cost,
		BudgetBefore: before,
		BudgetAfter:  after,
		Degraded:     degraded,
		Timestamp:    time.Now().UTC(),
	}
	l.records = append(l.records, rec)
	if len(l.records) > maxRingSize {
		l.records = l.records[len(l.records)-maxRingSize:]
	}
	l.mu.Unlock()

	l.dirty.Store(true)
	select {
	case l.flushCh <- struct{}{}:
	default:
	}

	if after <= 0 {
		return rec, fmt.Errorf("costledger: budget exhausted after charging %.4f: %w", cost, cjoerr.ErrBudgetExhausted)
	}
	return rec, nil
}

// RemainingBudget returns the current budget.
func (l *Ledger) RemainingBudget() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.budget
}

// BurnRate returns the total cost charged within the trailing window,
// expressed as cost-per-second.
func (l *Ledger) BurnRate(window time.Duration) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if window <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-window)
	var total float64
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].Timestamp.Before(cutoff) {
			break
		}
		total += l.records[i].Cost
	}
	return total / window.Seconds()
}

// ForecastExhaustion estimates time until the remaining budget hits zero at
// the current burn rate (measured over window). Returns -1 if the burn rate
// is zero or negative (budget is not depleting).
func (l *Ledger) ForecastExhaustion(window time.Duration) time.Duration {
	rate := l.BurnRate(window)
	if rate <= 0 {
		return -1
	}
	remaining := l.RemainingBudget()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(remaining / rate * float64(time.Second))
}

// Records returns a copy of the in-memory ring, oldest first.
func (l *Ledger) Records() []model.CostRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.CostRecord(nil), l.records...)
}

func (l *Ledger) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := l.flushOnce(flushCtx); err != nil {
				l.logger.Warn("costledger: final flush failed", "error", err)
			}
			cancel()
			close(l.done)
			return
		case <-ticker.C:
			l.tryFlush(ctx)
		case <-l.flushCh:
			l.tryFlush(ctx)
		}
	}
}

func (l *Ledger) tryFlush(ctx context.Context) {
	if !l.dirty.Load() {
		return
	}
	if err := l.flushOnce(ctx); err != nil {
		l.logger.Warn("costledger: flush failed, will retry next tick", "error", err)
	}
}

func (l *Ledger) flushOnce(ctx context.Context) error {
	if l.sink == nil {
		l.dirty.Store(false)
		return nil
	}
	batch := l.Records()
	if len(batch) == 0 {
		l.dirty.Store(false)
		return nil
	}
	if err := l.sink.FlushCostRecords(ctx, batch); err != nil {
		return err
	}
	l.dirty.Store(false)
	return nil
}

// Drain stops the flush loop after a final flush attempt, blocking until
// done or ctx expires.
func (l *Ledger) Drain(ctx context.Context) {
	l.drainOnce.Do(func() {
		if l.cancelLoop != nil {
			l.cancelLoop()
		}
	})
	select {
	case <-l.done:
	case <-ctx.Done():
		l.logger.Warn("costledger: drain timed out waiting for flush loop")
	}
}
