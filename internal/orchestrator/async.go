package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/collective-judgment/cjo/internal/cjoerr"
	"github.com/collective-judgment/cjo/internal/model"
)

// SubmitAsync starts Submit in the background and returns immediately with
// a submission id the caller polls via Get (once the judgment is known) or
// cancels via Cancel.
func (o *Orchestrator) SubmitAsync(item model.Item) uuid.UUID {
	submissionID := uuid.New()
	ctx, cancel := context.WithCancel(o.bgCtx)

	o.mu.Lock()
	o.submissions[submissionID] = &submission{cancel: cancel}
	o.mu.Unlock()

	go func() {
		defer cancel()
		envelope, err := o.Submit(ctx, item)

		o.mu.Lock()
		defer o.mu.Unlock()
		rec, ok := o.submissions[submissionID]
		if !ok {
			return
		}
		rec.envelope = envelope
		rec.judgmentID = envelope.Judgment.ID
		rec.err = err
		rec.done = true
	}()

	return submissionID
}

// Cancel aborts a pending async submission. No-op (not an error) if the
// submission already completed -- cancellation racing completion is
// expected, not exceptional. Returns cjoerr.ErrNotFound for an unknown id.
func (o *Orchestrator) Cancel(submissionID uuid.UUID) error {
	o.mu.RLock()
	rec, ok := o.submissions[submissionID]
	o.mu.RUnlock()
	if !ok {
		return cjoerr.ErrNotFound
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	return nil
}

// Get returns a previously submitted judgment by id. Checks the in-memory
// submission cache first (covers judgments not yet durably stored, e.g. a
// background tail still in flight), falling back to the store for anything
// evicted from memory or submitted by a prior process.
func (o *Orchestrator) Get(ctx context.Context, judgmentID uuid.UUID) (model.JudgmentEnvelope, error) {
	o.mu.RLock()
	for _, rec := range o.submissions {
		if rec.done && rec.judgmentID == judgmentID {
			envelope := rec.envelope
			o.mu.RUnlock()
			return envelope, nil
		}
	}
	o.mu.RUnlock()

	if o.store == nil {
		return model.JudgmentEnvelope{}, cjoerr.ErrNotFound
	}

	judgment, err := o.store.GetJudgment(ctx, judgmentID)
	if err != nil {
		return model.JudgmentEnvelope{}, err
	}
	envelope := model.JudgmentEnvelope{Judgment: judgment}

	if result, ok, err := o.store.GetConsensus(ctx, judgmentID.String()); err == nil && ok {
		envelope.Consensus = &result
	}
	return envelope, nil
}
