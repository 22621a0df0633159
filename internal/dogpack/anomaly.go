package dogpack

import (
	"gonum.org/v1/gonum/stat"
)

// Anomaly severity bands: a vote's z-score against a dog's own recent
// history, not against the round's other dogs.
const (
	anomalySignificantZ = 2.5
	anomalyMinorZ       = 1.5
)

// anomalySeverity classifies a vote score against the dog's prior history
// (at least 3 points required). "none" means not enough history or no
// deviation worth flagging.
type anomalySeverity int

const (
	anomalyNone anomalySeverity = iota
	anomalyMinor
	anomalySignificant
)

// classifyVoteAnomaly computes the z-score of score against history (the
// dog's own past vote scores, not including the current one) and bands it.
func classifyVoteAnomaly(score float64, history []float64) (z float64, severity anomalySeverity) {
	if len(history) < 3 {
		return 0, anomalyNone
	}
	mean := stat.Mean(history, nil)
	sigma := stat.StdDev(history, nil)
	if sigma == 0 {
		return 0, anomalyNone
	}
	z = (score - mean) / sigma
	abs := z
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs > anomalySignificantZ:
		return z, anomalySignificant
	case abs > anomalyMinorZ:
		return z, anomalyMinor
	default:
		return z, anomalyNone
	}
}
