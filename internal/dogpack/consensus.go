package dogpack

import (
	"context"
	"math"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/collective-judgment/cjo/internal/model"
)

// earlyExitMinNonAbstain is the minimum number of non-abstain votes
// required before the blended agreement is even considered for early exit.
const earlyExitMinNonAbstain = 7

// earlyExitAgreement is the blended-agreement threshold beyond which a
// round is decisive enough to stop early, on either the approve or the
// reject side.
const earlyExitAgreement = 0.85

// minApprovedNonAbstain is the floor below which a round cannot be
// approved or rejected on its merits — it is insufficient.
const minApprovedNonAbstain = 3

// approvalThreshold is the blended-agreement floor for an approved verdict.
const approvalThreshold = model.PhiInv

type voteOutcome struct {
	dog  model.DogName
	vote model.Vote
}

// RunConsensus convenes the voters named in route, in the order the Router
// supplied them, and streams their votes into a blended agreement score:
// 70% weighted agreement (by TrackRecord-derived vote weight) and 30%
// simple agreement (raw vote count), exiting early once either side of that
// blend crosses 0.85 among at least seven non-abstain voters. A guardian
// reject on a veto-matching topic overrides the tally. softTimeout bounds
// how long a vote may run before being logged as slow; hardTimeout is the
// point past which a pending vote is abstained.
func (p *Pack) RunConsensus(ctx context.Context, topic string, route model.RouteDecision, voter Voter, softTimeout, hardTimeout time.Duration) (model.ConsensusResult, error) {
	voters := route.VoterSet
	if len(voters) == 0 {
		voters = model.AllDogs[:]
	}

	voteCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan voteOutcome, len(voters))
	var wg sync.WaitGroup
	for _, dog := range voters {
		wg.Add(1)
		go func(dog model.DogName) {
			defer wg.Done()
			outcomes <- p.castVote(voteCtx, voter, dog, topic, softTimeout, hardTimeout)
		}(dog)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var (
		votes                          []model.Vote
		tallies                        model.Tallies
		weightedApprove, weightedTotal float64
		guardianVeto                   bool
		earlyExit                      bool
		anomalies                      []model.DogName
		received                       = make(map[model.DogName]bool, len(voters))
	)

	for outcome := range outcomes {
		received[outcome.dog] = true
		v := outcome.vote
		votes = append(votes, v)

		switch v.Verdict {
		case model.VoteApprove:
			tallies.Approve++
			weightedApprove += v.Weight
			weightedTotal += v.Weight
			if sev, dogName := p.noteVote(v); sev == anomalySignificant {
				anomalies = append(anomalies, dogName)
			}
		case model.VoteReject:
			tallies.Reject++
			weightedTotal += v.Weight
			if sev, dogName := p.noteVote(v); sev == anomalySignificant {
				anomalies = append(anomalies, dogName)
			}
		default:
			tallies.Abstain++
		}

		if v.Dog == model.DogGuardian && v.Verdict == model.VoteReject && guardianVetoApplies(topic) {
			guardianVeto = true
			earlyExit = true
			cancel()
			break
		}

		nonAbstain := tallies.Approve + tallies.Reject
		if nonAbstain >= earlyExitMinNonAbstain {
			bAgree := blendedAgreement(weightedApprove, weightedTotal, tallies)
			if bAgree >= earlyExitAgreement || bAgree <= 1-earlyExitAgreement {
				earlyExit = true
				cancel()
				break
			}
		}
	}

	nonAbstain := tallies.Approve + tallies.Reject
	agreement := blendedAgreement(weightedApprove, weightedTotal, tallies)
	insufficient := !guardianVeto && nonAbstain < minApprovedNonAbstain
	approved := !guardianVeto && !insufficient && agreement >= approvalThreshold
	if insufficient {
		agreement = 0
	}

	prediction := p.predictor.Predict()
	p.predictor.Observe(approved)

	result := model.ConsensusResult{
		ConsensusID:   uuid.NewString(),
		Topic:         topic,
		Approved:      approved,
		Insufficient:  insufficient,
		Agreement:     agreement,
		GuardianVeto:  guardianVeto,
		Votes:         votes,
		Tallies:       tallies,
		Division:      divisionFromEntropy(voteEntropy(tallies)),
		EarlyExit:     earlyExit,
		SkippedVoters: skippedVoters(voters, received),
		Entropy:       voteEntropy(tallies),
		Prediction:    prediction,
		Anomalies:     anomalies,
	}
	p.recordConsensusHistory(result)
	return result, nil
}

// blendedAgreement computes B_agree = 0.7*W_agree + 0.3*S_agree, where
// W_agree is the weighted share of non-abstain weight on the approve side
// and S_agree is the raw approve share of non-abstain votes. Returns 0 when
// no non-abstain votes have been cast yet.
func blendedAgreement(weightedApprove, weightedTotal float64, t model.Tallies) float64 {
	nonAbstain := t.Approve + t.Reject
	if nonAbstain == 0 {
		return 0
	}
	wAgree := 0.0
	if weightedTotal > 0 {
		wAgree = weightedApprove / weightedTotal
	}
	sAgree := float64(t.Approve) / float64(nonAbstain)
	return 0.7*wAgree + 0.3*sAgree
}

// noteVote records a cast vote's score into its dog's rolling history and
// returns the anomaly severity of that vote against the dog's prior
// history (computed before the current vote is appended).
func (p *Pack) noteVote(v model.Vote) (anomalySeverity, model.DogName) {
	history := p.voteHistorySnapshot(v.Dog)
	_, severity := classifyVoteAnomaly(v.Score, history)
	if severity == anomalyMinor {
		p.logger.Info("dogpack: minor vote anomaly", "dog", v.Dog, "score", v.Score)
	}
	p.recordVoteScore(v.Dog, v.Score)
	return severity, v.Dog
}

// castVote calls the voter under a per-dog hard timeout, abstaining on
// error, timeout, or early-exit cancellation rather than failing the round.
func (p *Pack) castVote(ctx context.Context, voter Voter, dog model.DogName, topic string, soft, hard time.Duration) voteOutcome {
	tr, ok := p.TrackRecord(dog)
	var weight, confidence float64
	if ok {
		weight = model.WeightForAccuracy(tr.Accuracy())
		confidence = model.ConfidenceForStrength(tr.Strength())
	}

	callCtx, cancel := context.WithTimeout(ctx, hard)
	defer cancel()

	start := time.Now()
	in, err := voter.Vote(callCtx, dog, topic)
	elapsed := time.Since(start)

	if err != nil || callCtx.Err() != nil {
		return voteOutcome{dog: dog, vote: model.Vote{
			Dog: dog, Verdict: model.VoteAbstain, Weight: 0, Confidence: confidence, CastAt: time.Now().UTC(),
		}}
	}
	if elapsed > soft {
		p.logger.Warn("dogpack: vote exceeded soft timeout", "dog", dog, "elapsed", elapsed)
	}
	return voteOutcome{dog: dog, vote: model.Vote{
		Dog: dog, Verdict: in.Verdict, Score: in.Score, Reasoning: in.Reasoning,
		Weight: weight, Confidence: confidence, CastAt: time.Now().UTC(),
	}}
}

// guardianVetoApplies reports whether topic matches one of the guardian's
// veto-triggering glob patterns.
func guardianVetoApplies(topic string) bool {
	for _, pattern := range model.GuardianVetoDomains {
		if pattern == topic {
			return true
		}
		if matched, err := path.Match(pattern, topic); err == nil && matched {
			return true
		}
	}
	return false
}

// skippedVoters lists voters in the round's set that never reported a
// result, because the round exited early before their vote arrived.
func skippedVoters(voters []model.DogName, received map[model.DogName]bool) []model.DogName {
	var out []model.DogName
	for _, d := range voters {
		if !received[d] {
			out = append(out, d)
		}
	}
	return out
}

// divisionFromEntropy buckets a round by its normalized Shannon entropy
// using the phi-inverse thresholds from the spec.
func divisionFromEntropy(normalized float64) model.Division {
	switch {
	case normalized > model.PhiInv:
		return model.DivisionDeeplyDivided
	case normalized > model.PhiInv2:
		return model.DivisionDivided
	case normalized > model.PhiInv3:
		return model.DivisionSlight
	default:
		return model.DivisionUnanimous
	}
}

// voteEntropy is the Shannon entropy of the approve/reject/abstain
// distribution, normalized to [0,1] by the maximum entropy of three
// categories (ln 3).
func voteEntropy(t model.Tallies) float64 {
	total := t.Approve + t.Reject + t.Abstain
	if total == 0 {
		return 0
	}
	probs := []float64{
		float64(t.Approve) / float64(total),
		float64(t.Reject) / float64(total),
		float64(t.Abstain) / float64(total),
	}
	return stat.Entropy(probs) / math.Log(3)
}
