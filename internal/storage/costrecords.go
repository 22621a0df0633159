package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/collective-judgment/cjo/internal/model"
)

// FlushCostRecords implements costledger.Sink: it bulk-inserts a batch of
// CostRecord via COPY, keeping per-operation cost writes off the hot path
// even when the ledger is flushing thousands of records at once.
func (s *Store) FlushCostRecords(ctx context.Context, records []model.CostRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.OpID, string(r.ModelTier), r.TokensIn, r.TokensOut, r.Cost, r.BudgetBefore, r.BudgetAfter, r.Degraded, r.Timestamp}
	}

	_, err := s.db.pool.CopyFrom(
		ctx,
		pgx.Identifier{"cost_records"},
		[]string{"op_id", "model_tier", "tokens_in", "tokens_out", "cost", "budget_before", "budget_after", "degraded", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("storage: copy cost records: %w", err)
	}
	return nil
}
