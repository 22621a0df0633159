package costledger

import (
	"sync"

	"github.com/collective-judgment/cjo/internal/model"
)

// Governor is the phi-Governor: it tracks an EMA of the injected/total token
// ratio and adjusts the next operation's injection budget. The dead zone
// [phi^-2, phi^-1] is left untouched; above it the budget shrinks by 5%,
// below it grows by 5%, and the budget itself never exceeds phi^-1.
type Governor struct {
	mu              sync.Mutex
	alpha           float64
	haveEMA         bool
	ema             float64
	injectionBudget float64
}

// NewGovernor builds a Governor with the given EMA smoothing factor
// (0 < alpha <= 1) and an initial injection budget of phi^-1.
func NewGovernor(alpha float64) *Governor {
	return &Governor{alpha: alpha, injectionBudget: model.PhiInv}
}

// Observe folds one operation's injected/total token ratio into the EMA and
// adjusts the injection budget accordingly.
func (g *Governor) Observe(injectedTokens, totalTokens int) {
	ratio := 0.0
	if totalTokens > 0 {
		ratio = float64(injectedTokens) / float64(totalTokens)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.haveEMA {
		g.ema = ratio
		g.haveEMA = true
	} else {
		g.ema = g.alpha*ratio + (1-g.alpha)*g.ema
	}

	switch {
	case g.ema > model.PhiInv:
		g.injectionBudget *= 0.95
	case g.ema < model.PhiInv2:
		g.injectionBudget *= 1.05
	}
	if g.injectionBudget > model.PhiInv {
		g.injectionBudget = model.PhiInv
	}
}

// InjectionBudget returns the current injection budget, always <= phi^-1.
func (g *Governor) InjectionBudget() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.injectionBudget
}

// EMA returns the current influence-ratio EMA, for diagnostics.
func (g *Governor) EMA() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ema
}
