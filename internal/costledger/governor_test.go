package costledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collective-judgment/cjo/internal/model"
)

func TestGovernor_DeadZoneLeavesBudgetUnchanged(t *testing.T) {
	g := NewGovernor(1.0) // alpha=1 so EMA tracks the observation exactly
	initial := g.InjectionBudget()
	g.Observe(50, 100) // ratio 0.5, inside [phi^-2, phi^-1] ~ [0.382, 0.618]
	assert.InDelta(t, initial, g.InjectionBudget(), 1e-9)
}

func TestGovernor_AboveDeadZoneShrinksBudget(t *testing.T) {
	g := NewGovernor(1.0)
	before := g.InjectionBudget()
	g.Observe(90, 100) // ratio 0.9, above phi^-1
	assert.Less(t, g.InjectionBudget(), before)
}

func TestGovernor_BelowDeadZoneGrowsBudget(t *testing.T) {
	g := NewGovernor(1.0)
	g.Observe(90, 100) // shrink first so there's room to grow
	shrunk := g.InjectionBudget()
	g.Observe(1, 100) // ratio 0.01, below phi^-2
	assert.Greater(t, g.InjectionBudget(), shrunk)
}

func TestGovernor_NeverExceedsPhiInv(t *testing.T) {
	g := NewGovernor(1.0)
	for i := 0; i < 50; i++ {
		g.Observe(1, 1000) // far below dead zone every time, pushing budget up
	}
	assert.LessOrEqual(t, g.InjectionBudget(), model.PhiInv)
}
