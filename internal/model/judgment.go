package model

import (
	"time"

	"github.com/google/uuid"
)

// Phi is the golden ratio, used throughout scoring, consensus weighting, and
// the cost governor's dead zone.
const Phi = 1.61803398875

// PhiInv, PhiInv2, PhiInv3, PhiInv4 are successive negative powers of Phi.
// Tabulated rather than recomputed so every subsystem compares against the
// same bits; differences are checked with a 1e-9 tolerance, per spec.
var (
	PhiInv  = 1 / Phi
	PhiInv2 = PhiInv * PhiInv
	PhiInv3 = PhiInv2 * PhiInv
	PhiInv4 = PhiInv3 * PhiInv
)

// PhiTolerance is the comparison tolerance used wherever a computed value is
// checked against one of the Phi constants above.
const PhiTolerance = 1e-9

// Axiom names the five weighted aggregates a Judgment's 35 named dimensions
// roll up into.
type Axiom string

const (
	AxiomPHI     Axiom = "PHI"
	AxiomVERIFY  Axiom = "VERIFY"
	AxiomCULTURE Axiom = "CULTURE"
	AxiomBURN    Axiom = "BURN"
	AxiomFIDELITY Axiom = "FIDELITY"
)

// AxiomWeightTemplate is the universal per-dimension weight template applied
// in the dimension order of every axiom: [phi, 1/phi, 1, phi, 1/phi^2, 1/phi, 1/phi].
var AxiomWeightTemplate = [7]float64{Phi, PhiInv, 1.0, Phi, PhiInv2, PhiInv, PhiInv}

// DimensionScore is produced by a scorer for one of an Item's 35 named
// dimensions (residual excluded). Exactly one per (judgment_id, dimension_name).
type DimensionScore struct {
	DimensionName string
	Score         float64 // in [0, 100]
	ScorerVersion string
}

// AxiomScore is a weight-template-weighted mean of its seven dimensions.
type AxiomScore struct {
	Axiom  Axiom
	Value  float64 // in [0, 100]
	Inputs []DimensionScore
}

// Verdict is the banded outcome of a Judgment's Q-Score.
type Verdict string

const (
	VerdictHowl  Verdict = "HOWL"  // Q >= 80
	VerdictWag   Verdict = "WAG"   // 50 <= Q < 80
	VerdictGrowl Verdict = "GROWL" // 38.2 <= Q < 50
	VerdictBark  Verdict = "BARK"  // Q < 38.2
)

// VerdictForScore bands a Q-Score into its Verdict per the fixed thresholds.
func VerdictForScore(q float64) Verdict {
	switch {
	case q >= 80:
		return VerdictHowl
	case q >= 50:
		return VerdictWag
	case q >= 38.2:
		return VerdictGrowl
	default:
		return VerdictBark
	}
}

// Judgment is the Judgment Engine's output for a single Item. Append-only:
// feedback references a Judgment by ID but never mutates it.
type Judgment struct {
	ID            uuid.UUID
	ItemID        uuid.UUID
	AxiomScores   [5]AxiomScore
	Dimensions    []DimensionScore // 35 named + residual = 36
	Residual      float64          // THE_UNNAMEABLE, in [0, 100]
	QScore        float64          // in [0, 100]
	Verdict       Verdict
	Confidence    float64 // hard-clamped to [0, PhiInv]
	ReasoningPath []string
	CreatedAt     time.Time
}

// ClampConfidence enforces the Judgment's confidence invariant: confidence
// never exceeds 1/phi regardless of what upstream computed.
func ClampConfidence(c float64) float64 {
	if c > PhiInv {
		return PhiInv
	}
	if c < 0 {
		return 0
	}
	return c
}
