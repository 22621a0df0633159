package dogpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyVoteAnomaly_NotEnoughHistoryIsNone(t *testing.T) {
	_, sev := classifyVoteAnomaly(90, []float64{80, 82})
	assert.Equal(t, anomalyNone, sev)
}

func TestClassifyVoteAnomaly_FlagsSignificantOutlier(t *testing.T) {
	history := []float64{80, 81, 79, 80, 82, 80, 81}
	_, sev := classifyVoteAnomaly(5, history)
	assert.Equal(t, anomalySignificant, sev)
}

func TestClassifyVoteAnomaly_FlagsMinorButNotSignificant(t *testing.T) {
	history := []float64{48, 52, 49, 51, 50, 49, 51, 50, 52, 48} // mean 50, sample stddev ~1.49
	_, sev := classifyVoteAnomaly(53, history)                   // z ~ 2.0
	assert.Equal(t, anomalyMinor, sev)
}

func TestClassifyVoteAnomaly_ZeroVarianceNeverFlags(t *testing.T) {
	history := []float64{70, 70, 70, 70}
	_, sev := classifyVoteAnomaly(99, history)
	assert.Equal(t, anomalyNone, sev)
}
