package dogpack

import "sync"

// outcomeState is a Markov state derived from a single consensus round's
// approved/rejected result.
type outcomeState string

const (
	stateApproved outcomeState = "approved"
	stateRejected outcomeState = "rejected"
)

// Predictor is an order-1 Markov chain over consensus outcomes: it predicts
// the next round's likely outcome from whatever the previous round's
// outcome was, learning the approved->approved / approved->rejected /
// rejected->approved / rejected->rejected transition counts as history
// accumulates.
type Predictor struct {
	mu          sync.Mutex
	last        outcomeState
	hasLast     bool
	transitions map[outcomeState]map[outcomeState]int
}

// NewPredictor builds an empty Predictor with no observed history.
func NewPredictor() *Predictor {
	return &Predictor{
		transitions: map[outcomeState]map[outcomeState]int{
			stateApproved: {stateApproved: 0, stateRejected: 0},
			stateRejected: {stateApproved: 0, stateRejected: 0},
		},
	}
}

// Predict returns a label for the most likely next-round outcome given the
// last observed outcome, or "unknown" if no history has been recorded yet.
func (m *Predictor) Predict() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasLast {
		return "unknown"
	}
	row := m.transitions[m.last]
	if row[stateApproved] == row[stateRejected] {
		return "uncertain"
	}
	if row[stateApproved] > row[stateRejected] {
		return string(stateApproved)
	}
	return string(stateRejected)
}

// Observe records a completed round's outcome, advancing the chain.
func (m *Predictor) Observe(approved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := stateRejected
	if approved {
		next = stateApproved
	}
	if m.hasLast {
		m.transitions[m.last][next]++
	}
	m.last = next
	m.hasLast = true
}
