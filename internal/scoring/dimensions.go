package scoring

import "github.com/collective-judgment/cjo/internal/model"

// AxiomDimensions lists, in weight-template order, the seven named
// dimensions that roll up into each axiom. Order matters: it is paired
// positionally with model.AxiomWeightTemplate.
var AxiomDimensions = map[model.Axiom][7]string{
	model.AxiomPHI: {
		"structural_clarity", "abstraction_fit", "naming_quality",
		"complexity_control", "modularity", "consistency", "aesthetic_coherence",
	},
	model.AxiomVERIFY: {
		"test_coverage", "edge_case_handling", "input_validation",
		"error_propagation", "type_safety", "determinism", "regression_risk",
	},
	model.AxiomCULTURE: {
		"convention_adherence", "documentation_quality", "review_readiness",
		"collaboration_signal", "knowledge_transfer", "onboarding_friction", "communication_clarity",
	},
	model.AxiomBURN: {
		"resource_efficiency", "latency_impact", "token_cost",
		"scalability_headroom", "rate_limit_risk", "retry_amplification", "degradation_grace",
	},
	model.AxiomFIDELITY: {
		"intent_alignment", "requirement_coverage", "scope_discipline",
		"precedent_consistency", "side_effect_containment", "reversibility", "traceability",
	},
}

// AxiomOrder is the fixed iteration order over the five axioms, used
// wherever axiom scores must be combined deterministically (Q-Score).
var AxiomOrder = [5]model.Axiom{
	model.AxiomPHI, model.AxiomVERIFY, model.AxiomCULTURE, model.AxiomBURN, model.AxiomFIDELITY,
}

// AllDimensionNames returns the 35 named dimensions across all five axioms,
// in axiom order then within-axiom order.
func AllDimensionNames() []string {
	names := make([]string, 0, 35)
	for _, axiom := range AxiomOrder {
		names = append(names, AxiomDimensions[axiom][:]...)
	}
	return names
}

// AxiomForDimension returns which axiom a named dimension belongs to, and
// its position (0-6) within that axiom's weight template.
func AxiomForDimension(name string) (axiom model.Axiom, position int, ok bool) {
	for _, a := range AxiomOrder {
		for i, d := range AxiomDimensions[a] {
			if d == name {
				return a, i, true
			}
		}
	}
	return "", 0, false
}
