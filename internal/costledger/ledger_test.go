package costledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collective-judgment/cjo/internal/cjoerr"
	"github.com/collective-judgment/cjo/internal/model"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]model.CostRecord
}

func (s *recordingSink) FlushCostRecords(_ context.Context, records []model.CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]model.CostRecord(nil), records...)
	s.batches = append(s.batches, cp)
	return nil
}

func (s *recordingSink) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func TestCharge_DebitsBudgetAndRecords(t *testing.T) {
	l := NewLedger(10, nil, time.Hour, nil)
	rec, err := l.Charge("op1", model.TierStandard, 100, 50, 2.5, false)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rec.BudgetBefore)
	assert.Equal(t, 7.5, rec.BudgetAfter)
	assert.Equal(t, 7.5, l.RemainingBudget())
}

func TestCharge_ReturnsBudgetExhaustedWhenDepleted(t *testing.T) {
	l := NewLedger(1, nil, time.Hour, nil)
	_, err := l.Charge("op1", model.TierPremium, 1000, 500, 5, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cjoerr.ErrBudgetExhausted))
}

func TestBurnRate_ExcludesRecordsOutsideWindow(t *testing.T) {
	l := NewLedger(100, nil, time.Hour, nil)
	l.mu.Lock()
	l.records = []model.CostRecord{
		{Cost: 10, Timestamp: time.Now().Add(-2 * time.Hour)},
		{Cost: 5, Timestamp: time.Now()},
	}
	l.mu.Unlock()

	rate := l.BurnRate(time.Minute)
	assert.InDelta(t, 5.0/60.0, rate, 1e-9)
}

func TestForecastExhaustion_NegativeWhenNotBurning(t *testing.T) {
	l := NewLedger(100, nil, time.Hour, nil)
	assert.Equal(t, time.Duration(-1), l.ForecastExhaustion(time.Minute))
}

func TestForecastExhaustion_ZeroWhenAlreadyDepleted(t *testing.T) {
	l := NewLedger(0, nil, time.Hour, nil)
	l.mu.Lock()
	l.records = []model.CostRecord{{Cost: 1, Timestamp: time.Now()}}
	l.mu.Unlock()
	assert.Equal(t, time.Duration(0), l.ForecastExhaustion(time.Minute))
}

func TestLedger_FlushesOnChargeAndDrainsCleanly(t *testing.T) {
	sink := &recordingSink{}
	l := NewLedger(100, sink, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	_, err := l.Charge("op1", model.TierEconomy, 10, 5, 1, false)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sink.flushCount() > 0 }, time.Second, 5*time.Millisecond)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Second)
	defer drainCancel()
	l.Drain(drainCtx)
}
