package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/collective-judgment/cjo/internal/model"
)

// ResidualAnomalyThreshold is the point below which THE_UNNAMEABLE residual
// signals unexplained variance among the 35 named dimensions.
const ResidualAnomalyThreshold = 38.2

// aggregateAxiom reduces an axiom's seven dimension scores to its weighted
// mean using the universal weight template, in the axiom's declared
// dimension order.
func aggregateAxiom(axiom model.Axiom, scores [7]model.DimensionScore) model.AxiomScore {
	var weightedSum, weightTotal float64
	for i, ds := range scores {
		w := model.AxiomWeightTemplate[i]
		weightedSum += ds.Score * w
		weightTotal += w
	}
	return model.AxiomScore{
		Axiom:  axiom,
		Value:  weightedSum / weightTotal,
		Inputs: scores[:],
	}
}

// residual computes THE_UNNAMEABLE: R = 100*(1 - sigma/50) clamped to
// [0,100], where sigma is the standard deviation of the 35 named dimension
// scores (residual excluded).
func residual(namedScores []float64) float64 {
	if len(namedScores) < 2 {
		return 100
	}
	sigma := stat.StdDev(namedScores, nil)
	r := 100 * (1 - sigma/50)
	if r > 100 {
		return 100
	}
	if r < 0 {
		return 0
	}
	return r
}

// qScore computes the geometric mean of the five axiom scores, scaled back
// to [0,100]: Q = 100 * (prod(axioms)/100^5)^(1/5).
func qScore(axioms [5]model.AxiomScore) float64 {
	product := 1.0
	for _, a := range axioms {
		product *= a.Value
	}
	return 100 * math.Pow(product/math.Pow(100, 5), 1.0/5.0)
}
