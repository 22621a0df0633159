// Package dogpack implements the eleven-dog weighted consensus vote: each
// dog casts a vote backed by its own Beta-distributed TrackRecord, votes are
// blended into a streaming early-exit agreement score, and the guardian dog
// can veto regardless of the tally.
package dogpack

import (
	"context"
	"log/slog"
	"sync"

	"github.com/collective-judgment/cjo/internal/model"
)

// VoteInput is a dog's raw judgment on a topic, before the Pack attaches
// weight/confidence derived from the dog's TrackRecord.
type VoteInput struct {
	Verdict   model.VoteVerdict
	Score     float64
	Reasoning string
}

// Voter casts one dog's vote on a topic. External interface: may be
// LLM-backed, heuristic, or a fixed stub in tests — the Pack never
// distinguishes.
type Voter interface {
	Vote(ctx context.Context, dog model.DogName, topic string) (VoteInput, error)
}

// voteHistoryWindow bounds how many of a dog's past vote scores feed its
// anomaly z-score (Fib(8)).
const voteHistoryWindow = 21

// topicHistoryLimit bounds how many past consensus results are kept per
// topic, oldest evicted first (Fib(10)).
const topicHistoryLimit = 55

// Pack owns the eleven dogs and their TrackRecords. Each TrackRecord is its
// own actor guarded by its own mutex (see model.TrackRecord); Pack's mutex
// only protects the maps themselves, never held across a vote call.
type Pack struct {
	mu            sync.RWMutex
	dogs          map[model.DogName]*model.Dog
	records       map[model.DogName]*model.TrackRecord
	voteHistory   map[model.DogName][]float64
	topicHistory  map[string][]model.ConsensusResult
	predictor     *Predictor
	logger        *slog.Logger
}

// New builds a Pack with all eleven dogs and fresh uninformative
// TrackRecords.
func New() *Pack {
	p := &Pack{
		dogs:         make(map[model.DogName]*model.Dog, len(model.AllDogs)),
		records:      make(map[model.DogName]*model.TrackRecord, len(model.AllDogs)),
		voteHistory:  make(map[model.DogName][]float64, len(model.AllDogs)),
		topicHistory: make(map[string][]model.ConsensusResult),
		predictor:    NewPredictor(),
		logger:       slog.Default(),
	}
	for _, name := range model.AllDogs {
		dog := &model.Dog{Name: name, DomainAffinity: map[string]float64{}}
		if name == model.DogGuardian {
			dog.VetoDomains = model.GuardianVetoDomains
		}
		p.dogs[name] = dog
		p.records[name] = model.NewTrackRecord()
	}
	return p
}

// Dog returns the named dog's static definition.
func (p *Pack) Dog(name model.DogName) (*model.Dog, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.dogs[name]
	return d, ok
}

// TrackRecord returns the named dog's TrackRecord for weight/confidence
// derivation and outcome recording.
func (p *Pack) TrackRecord(name model.DogName) (*model.TrackRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tr, ok := p.records[name]
	return tr, ok
}

// recordVoteScore appends a non-abstain vote's score to the dog's rolling
// history, trimmed to voteHistoryWindow entries.
func (p *Pack) recordVoteScore(dog model.DogName, score float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := append(p.voteHistory[dog], score)
	if len(h) > voteHistoryWindow {
		h = h[len(h)-voteHistoryWindow:]
	}
	p.voteHistory[dog] = h
}

// voteHistorySnapshot returns a copy of the dog's vote-score history prior
// to recording the current vote, so z-scores are computed against past
// behavior rather than the value being judged.
func (p *Pack) voteHistorySnapshot(dog model.DogName) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]float64(nil), p.voteHistory[dog]...)
}

// recordConsensusHistory appends a completed round to its topic's bounded
// history, evicting the oldest entry once topicHistoryLimit is exceeded.
func (p *Pack) recordConsensusHistory(result model.ConsensusResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := append(p.topicHistory[result.Topic], result)
	if len(h) > topicHistoryLimit {
		h = h[len(h)-topicHistoryLimit:]
	}
	p.topicHistory[result.Topic] = h
}

// TopicHistory returns the bounded history of past consensus results for a
// topic, oldest first.
func (p *Pack) TopicHistory(topic string) []model.ConsensusResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]model.ConsensusResult(nil), p.topicHistory[topic]...)
}

// RecordOutcome updates every voting dog's TrackRecord once the true
// outcome of a judgment is known (via feedback): dogs whose vote matched
// the outcome get a success, the rest a failure.
func (p *Pack) RecordOutcome(votes []model.Vote, outcomeApproved bool) {
	for _, v := range votes {
		if v.Verdict == model.VoteAbstain {
			continue
		}
		tr, ok := p.TrackRecord(v.Dog)
		if !ok {
			continue
		}
		matched := (v.Verdict == model.VoteApprove) == outcomeApproved
		if matched {
			tr.RecordSuccess()
		} else {
			tr.RecordFailure()
		}
	}
}
