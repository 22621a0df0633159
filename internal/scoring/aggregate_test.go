package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collective-judgment/cjo/internal/model"
)

func flat(score float64) [7]model.DimensionScore {
	var out [7]model.DimensionScore
	for i := range out {
		out[i] = model.DimensionScore{Score: score}
	}
	return out
}

func TestAggregateAxiom_FlatScoresReturnSameValue(t *testing.T) {
	a := aggregateAxiom(model.AxiomPHI, flat(70))
	assert.InDelta(t, 70, a.Value, 1e-9)
}

func TestAggregateAxiom_WeightsDimensionsByTemplate(t *testing.T) {
	var scores [7]model.DimensionScore
	scores[0] = model.DimensionScore{Score: 100} // weight = phi, heaviest
	for i := 1; i < 7; i++ {
		scores[i] = model.DimensionScore{Score: 0}
	}
	a := aggregateAxiom(model.AxiomVERIFY, scores)
	// phi / sum(template) share of 100.
	var total float64
	for _, w := range model.AxiomWeightTemplate {
		total += w
	}
	expected := 100 * model.Phi / total
	assert.InDelta(t, expected, a.Value, 1e-6)
}

func TestResidual_ZeroVarianceIsMaxResidual(t *testing.T) {
	same := make([]float64, 35)
	for i := range same {
		same[i] = 60
	}
	assert.InDelta(t, 100, residual(same), 1e-9)
}

func TestResidual_HighVarianceLowersResidual(t *testing.T) {
	spread := []float64{0, 100, 0, 100, 0, 100, 0, 100}
	assert.Less(t, residual(spread), 50.0)
}

func TestResidual_BelowAnomalyThresholdSignalsVariance(t *testing.T) {
	spread := []float64{10, 90, 20, 80, 5, 95, 0, 100, 50}
	assert.Less(t, residual(spread), ResidualAnomalyThreshold)
}

func TestQScore_AllAxiomsAtMaxYieldMax(t *testing.T) {
	var axioms [5]model.AxiomScore
	for i := range axioms {
		axioms[i] = model.AxiomScore{Value: 100}
	}
	assert.InDelta(t, 100, qScore(axioms), 1e-6)
}

func TestQScore_IsGeometricNotArithmeticMean(t *testing.T) {
	var axioms [5]model.AxiomScore
	axioms[0] = model.AxiomScore{Value: 100}
	for i := 1; i < 5; i++ {
		axioms[i] = model.AxiomScore{Value: 0.0001}
	}
	// A single near-zero axiom collapses the geometric mean far below the
	// arithmetic mean (~20), unlike an arithmetic aggregate would.
	assert.Less(t, qScore(axioms), 5.0)
}
