package costledger

import (
	"sync"
	"time"
)

// BreakerState is one of the three Circuit Breaker states.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// defaultReopenDelay is how long a half-open probe failure re-opens the
// breaker for.
const defaultReopenDelay = 60 * time.Second

// Breaker is the budget Circuit Breaker: it blocks an operation class once
// the ledger signals the budget is exhausted or burning too fast, and
// closes again only after a single successful half-open probe.
type Breaker struct {
	mu            sync.Mutex
	state         BreakerState
	openedAt      time.Time
	openDuration  time.Duration
	probeInFlight bool
}

// NewBreaker builds a closed Breaker. openDuration is how long the breaker
// stays open before allowing a half-open probe; zero uses the 60s default.
func NewBreaker(openDuration time.Duration) *Breaker {
	if openDuration <= 0 {
		openDuration = defaultReopenDelay
	}
	return &Breaker{state: BreakerClosed, openDuration: openDuration}
}

// Evaluate trips the breaker when the ledger's current budget state
// violates either guard: no budget left, or burning more than 2x target.
func (b *Breaker) Evaluate(remainingBudget, burnRate, targetBurnRate float64) {
	if remainingBudget <= 0 || (targetBurnRate > 0 && burnRate > 2*targetBurnRate) {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		b.probeInFlight = false
	}
}

// Allow reports whether an operation may proceed: always in closed state,
// never while open (until the open duration elapses, at which point exactly
// one caller is let through as the half-open probe).
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) < b.openDuration {
			return false
		}
		b.state = BreakerHalfOpen
		b.probeInFlight = true
		return true
	case BreakerHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	default:
		return false
	}
}

// ReportResult resolves a half-open probe: success closes the breaker,
// failure re-opens it for another openDuration. No-op in other states.
func (b *Breaker) ReportResult(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerHalfOpen {
		return
	}
	b.probeInFlight = false
	if success {
		b.state = BreakerClosed
	} else {
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
