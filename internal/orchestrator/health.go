package orchestrator

import (
	"context"
	"time"

	"github.com/collective-judgment/cjo/internal/model"
)

// Pinger is satisfied by *storage.DB; Health uses it to check reachability
// without the orchestrator package depending on storage directly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports readiness per spec §6: ready, degraded, and why. db may be
// nil when the orchestrator runs store-less (tests, or an in-memory-only
// deployment); a nil db is reported ready, not degraded, since there's
// nothing to be unreachable.
func (o *Orchestrator) Health(ctx context.Context, db Pinger) model.Health {
	h := model.Health{Ready: true}

	if db != nil {
		if err := db.Ping(ctx); err != nil {
			h.Ready = false
			h.Reasons = append(h.Reasons, "database unreachable: "+err.Error())
		}
	}

	if o.ledger != nil && o.ledger.RemainingBudget() <= 0 {
		h.Degraded = true
		h.Reasons = append(h.Reasons, "cost budget exhausted")
	}

	return h
}

// Shutdown cancels the background context and waits up to bgGrace for any
// in-flight background tails to finish, per spec §4.5's bounded grace
// period on orchestrator shutdown.
func (o *Orchestrator) Shutdown() {
	o.bgCancel()

	done := make(chan struct{})
	go func() {
		o.bgWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(o.bgGrace):
		o.logger.Warn("orchestrator: background tail drain timed out", "grace_period", o.bgGrace)
	}
}
