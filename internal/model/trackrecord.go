package model

import "sync"

// TrackRecord is a per-dog Beta(alpha, beta) distribution over vote
// correctness. Updated by RecordSuccess/RecordFailure as outcomes resolve.
// Guarded by its own mutex rather than a package-level lock: each dog owns
// its TrackRecord independently (spec's "actor per dog" ownership rule).
type TrackRecord struct {
	mu    sync.Mutex
	Alpha float64
	Beta  float64
}

// NewTrackRecord returns a TrackRecord with an uninformative Beta(1,1) prior.
func NewTrackRecord() *TrackRecord {
	return &TrackRecord{Alpha: 1, Beta: 1}
}

// RecordSuccess increments alpha.
func (t *TrackRecord) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Alpha++
}

// RecordFailure increments beta.
func (t *TrackRecord) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Beta++
}

// Accuracy returns alpha/(alpha+beta).
func (t *TrackRecord) Accuracy() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Alpha / (t.Alpha + t.Beta)
}

// Strength returns alpha+beta, the total observation count backing the estimate.
func (t *TrackRecord) Strength() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Alpha + t.Beta
}

// Snapshot returns a consistent (alpha, beta) pair under a single lock
// acquisition, for callers that need both without a torn read.
func (t *TrackRecord) Snapshot() (alpha, beta float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Alpha, t.Beta
}
