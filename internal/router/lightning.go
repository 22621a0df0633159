package router

import "github.com/collective-judgment/cjo/internal/model"

// lightningPaths is the static, deterministic domain -> voter-set seed the
// Router falls back to whenever Q-State is missing, stale, or unconverged.
// Every path includes the guardian so veto power is never routed away.
var lightningPaths = map[string][]model.DogName{
	"security": {
		model.DogGuardian, model.DogAnalyst, model.DogCynic, model.DogArchitect, model.DogOracle,
	},
	"deployment": {
		model.DogGuardian, model.DogDeployer, model.DogJanitor, model.DogArchitect,
	},
	"code_quality": {
		model.DogGuardian, model.DogAnalyst, model.DogScholar, model.DogJanitor,
	},
	"architecture": {
		model.DogGuardian, model.DogArchitect, model.DogSage, model.DogCartographer,
	},
	"research": {
		model.DogGuardian, model.DogScholar, model.DogOracle, model.DogScout,
	},
	"general": {
		model.DogGuardian, model.DogAnalyst, model.DogSage, model.DogCynic,
	},
}

// defaultLightningPath is used for any domain absent from the table.
var defaultLightningPath = lightningPaths["general"]

// LightningPath returns the static voter set for a domain, in declaration
// order, falling back to the general path for unknown domains.
func LightningPath(domain string) []model.DogName {
	if path, ok := lightningPaths[domain]; ok {
		return append([]model.DogName(nil), path...)
	}
	return append([]model.DogName(nil), defaultLightningPath...)
}
