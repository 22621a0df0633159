package model

import "time"

// CostRecord is a single cost-ledger entry for one routed operation.
type CostRecord struct {
	OpID          string
	TokensIn      int
	TokensOut     int
	ModelTier     Tier
	Cost          float64
	BudgetBefore  float64
	BudgetAfter   float64
	Degraded      bool
	Timestamp     time.Time
}
