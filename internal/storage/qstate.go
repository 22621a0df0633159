package storage

import (
	"context"
	"fmt"

	"github.com/collective-judgment/cjo/internal/model"
)

// LoadAll and SaveAll implement router.Store against Postgres, so the
// router's Q-table can be backed by the same durable store as judgments
// instead of (or alongside) the standalone sqlite file, in deployments
// that run the orchestrator as more than one replica sharing state.
func (s *Store) LoadAll(ctx context.Context) ([]model.QState, error) {
	const q = `SELECT classification_key, action_key, value, visits, last_update FROM router_qstate`
	rows, err := s.db.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("storage: load qstate: %w", err)
	}
	defer rows.Close()

	var out []model.QState
	for rows.Next() {
		var qs model.QState
		if err := rows.Scan(&qs.ClassificationKey, &qs.ActionKey, &qs.Value, &qs.Visits, &qs.LastUpdate); err != nil {
			return nil, fmt.Errorf("storage: scan qstate row: %w", err)
		}
		out = append(out, qs)
	}
	return out, rows.Err()
}

// SaveAll implements router.Store, upserting every row in one transaction.
func (s *Store) SaveAll(ctx context.Context, states []model.QState) error {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin qstate save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	const q = `
INSERT INTO router_qstate (classification_key, action_key, value, visits, last_update)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (classification_key, action_key) DO UPDATE SET
	value = excluded.value, visits = excluded.visits, last_update = excluded.last_update`
	for _, qs := range states {
		if _, err := tx.Exec(ctx, q, qs.ClassificationKey, qs.ActionKey, qs.Value, qs.Visits, qs.LastUpdate); err != nil {
			return fmt.Errorf("storage: upsert qstate row: %w", err)
		}
	}
	return tx.Commit(ctx)
}
