package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/collective-judgment/cjo/internal/model"
)

// Store is the orchestrator's persistence surface: append-only judgments
// and consensus results, cost records, feedback, and (via qstate.go) the
// router's learned Q-state.
type Store struct {
	db *DB
}

// NewStore wraps db as a Store.
func NewStore(db *DB) *Store { return &Store{db: db} }

// StoreJudgment persists a Judgment. Judgments are append-only: callers
// never update an existing row.
func (s *Store) StoreJudgment(ctx context.Context, j model.Judgment) error {
	dimensions, err := json.Marshal(j.Dimensions)
	if err != nil {
		return fmt.Errorf("storage: marshal dimensions: %w", err)
	}
	axioms, err := json.Marshal(j.AxiomScores)
	if err != nil {
		return fmt.Errorf("storage: marshal axiom scores: %w", err)
	}
	reasoning, err := json.Marshal(j.ReasoningPath)
	if err != nil {
		return fmt.Errorf("storage: marshal reasoning path: %w", err)
	}

	const q = `
INSERT INTO judgments (id, item_id, axiom_scores, dimensions, residual, q_score, verdict, confidence, reasoning_path, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = s.db.pool.Exec(ctx, q, j.ID, j.ItemID, axioms, dimensions, j.Residual, j.QScore, string(j.Verdict), j.Confidence, reasoning, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: store judgment: %w", err)
	}
	return nil
}

// GetJudgment loads a Judgment by ID.
func (s *Store) GetJudgment(ctx context.Context, id uuid.UUID) (model.Judgment, error) {
	const q = `
SELECT id, item_id, axiom_scores, dimensions, residual, q_score, verdict, confidence, reasoning_path, created_at
FROM judgments WHERE id = $1`
	row := s.db.pool.QueryRow(ctx, q, id)

	var j model.Judgment
	var verdict string
	var axioms, dimensions, reasoning []byte
	err := row.Scan(&j.ID, &j.ItemID, &axioms, &dimensions, &j.Residual, &j.QScore, &verdict, &j.Confidence, &reasoning, &j.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return model.Judgment{}, fmt.Errorf("storage: judgment %s: %w", id, ErrNotFound)
		}
		return model.Judgment{}, fmt.Errorf("storage: get judgment: %w", err)
	}
	j.Verdict = model.Verdict(verdict)
	if err := json.Unmarshal(axioms, &j.AxiomScores); err != nil {
		return model.Judgment{}, fmt.Errorf("storage: unmarshal axiom scores: %w", err)
	}
	if err := json.Unmarshal(dimensions, &j.Dimensions); err != nil {
		return model.Judgment{}, fmt.Errorf("storage: unmarshal dimensions: %w", err)
	}
	if err := json.Unmarshal(reasoning, &j.ReasoningPath); err != nil {
		return model.Judgment{}, fmt.Errorf("storage: unmarshal reasoning path: %w", err)
	}
	return j, nil
}

// StoreFeedback persists explicit feedback against a prior Judgment.
func (s *Store) StoreFeedback(ctx context.Context, fb model.Feedback) error {
	const q = `INSERT INTO feedback (id, judgment_id, score, comment, submitted_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.pool.Exec(ctx, q, fb.ID, fb.JudgmentID, fb.Score, fb.Comment, ensureTimestamp(fb.SubmittedAt))
	if err != nil {
		return fmt.Errorf("storage: store feedback: %w", err)
	}
	return nil
}

// ensureTimestamp defaults a zero time.Time to now, used by callers that
// build records without a caller-supplied timestamp.
func ensureTimestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
