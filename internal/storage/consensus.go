package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/collective-judgment/cjo/internal/model"
)

// StoreConsensus persists one Dog Pack consensus round, scoped to the
// judgment it was run for.
func (s *Store) StoreConsensus(ctx context.Context, judgmentID string, result model.ConsensusResult) error {
	votes, err := json.Marshal(result.Votes)
	if err != nil {
		return fmt.Errorf("storage: marshal votes: %w", err)
	}
	skipped, err := json.Marshal(result.SkippedVoters)
	if err != nil {
		return fmt.Errorf("storage: marshal skipped voters: %w", err)
	}
	anomalies, err := json.Marshal(result.Anomalies)
	if err != nil {
		return fmt.Errorf("storage: marshal anomalies: %w", err)
	}

	const q = `
INSERT INTO consensus_results (
	consensus_id, judgment_id, topic, approved, insufficient, agreement, guardian_veto,
	votes, approve_count, reject_count, abstain_count, division, early_exit,
	skipped_voters, entropy, prediction, anomalies
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err = s.db.pool.Exec(ctx, q,
		result.ConsensusID, judgmentID, result.Topic, result.Approved, result.Insufficient, result.Agreement, result.GuardianVeto,
		votes, result.Tallies.Approve, result.Tallies.Reject, result.Tallies.Abstain, string(result.Division), result.EarlyExit,
		skipped, result.Entropy, result.Prediction, anomalies,
	)
	if err != nil {
		return fmt.Errorf("storage: store consensus: %w", err)
	}
	return nil
}

// GetConsensus loads the consensus round stored for a judgment, if any.
func (s *Store) GetConsensus(ctx context.Context, judgmentID string) (model.ConsensusResult, bool, error) {
	const q = `
SELECT consensus_id, topic, approved, insufficient, agreement, guardian_veto,
       votes, approve_count, reject_count, abstain_count, division, early_exit,
       skipped_voters, entropy, prediction, anomalies
FROM consensus_results WHERE judgment_id = $1`
	row := s.db.pool.QueryRow(ctx, q, judgmentID)

	var r model.ConsensusResult
	var division string
	var votes, skipped, anomalies []byte
	err := row.Scan(&r.ConsensusID, &r.Topic, &r.Approved, &r.Insufficient, &r.Agreement, &r.GuardianVeto,
		&votes, &r.Tallies.Approve, &r.Tallies.Reject, &r.Tallies.Abstain, &division, &r.EarlyExit,
		&skipped, &r.Entropy, &r.Prediction, &anomalies)
	if err != nil {
		if isNoRows(err) {
			return model.ConsensusResult{}, false, nil
		}
		return model.ConsensusResult{}, false, fmt.Errorf("storage: get consensus: %w", err)
	}
	r.Division = model.Division(division)
	if err := json.Unmarshal(votes, &r.Votes); err != nil {
		return model.ConsensusResult{}, false, fmt.Errorf("storage: unmarshal votes: %w", err)
	}
	if err := json.Unmarshal(skipped, &r.SkippedVoters); err != nil {
		return model.ConsensusResult{}, false, fmt.Errorf("storage: unmarshal skipped voters: %w", err)
	}
	if err := json.Unmarshal(anomalies, &r.Anomalies); err != nil {
		return model.ConsensusResult{}, false, fmt.Errorf("storage: unmarshal anomalies: %w", err)
	}
	return r, true, nil
}
