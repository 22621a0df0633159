package router

import (
	"math"
	"math/rand"

	"github.com/collective-judgment/cjo/internal/model"
)

// TrackRecords looks up a dog's learned (alpha, beta) Beta-distribution
// parameters, the same accuracy prior the Dog Pack itself weights votes by.
type TrackRecords interface {
	TrackRecord(dog model.DogName) (*model.TrackRecord, bool)
}

// Bandit draws Thompson samples from each candidate voter set's pack
// TrackRecords and retains the variants whose summed sampled weight clears
// a fixed floor (one value shared by every domain), so consistently unreliable voter sets stop being
// offered to the Q-learner without being removed from the table entirely.
type Bandit struct {
	records TrackRecords
	rng     *rand.Rand
}

// NewBandit builds a Bandit sampling from records. rng may be nil, in which
// case a new source seeded with 1 is created. A Bandit is not safe for
// concurrent calls from multiple goroutines, since *rand.Rand is not —
// callers should construct one Bandit per goroutine or guard externally.
func NewBandit(records TrackRecords, rng *rand.Rand) *Bandit {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Bandit{records: records, rng: rng}
}

// Variant is one candidate voter-set configuration the router may route to.
type Variant struct {
	Name   string
	Voters []model.DogName
	Tier   model.Tier
}

// sampledVariant pairs a Variant with its drawn Thompson weight.
type sampledVariant struct {
	Variant
	weight float64
}

// domainMinWeight is the per-domain floor a variant's summed sampled weight
// must clear to remain a candidate this round. A single shared floor is
// used across domains; nothing in the spec calls for per-domain tuning of
// it beyond what the Q-learner itself already captures in Q(s,a).
const domainMinWeight = 0.5

// Select samples every variant's voters and returns those whose summed
// weight meets the floor, highest weight first. If none clear the floor the
// single highest-weighted variant is still returned so the router always
// has a candidate.
func (b *Bandit) Select(variants []Variant) []Variant {
	sampled := make([]sampledVariant, 0, len(variants))
	for _, v := range variants {
		sampled = append(sampled, sampledVariant{Variant: v, weight: b.sampleWeight(v.Voters)})
	}

	kept := make([]Variant, 0, len(sampled))
	best := 0
	for i, sv := range sampled {
		if sv.weight > sampled[best].weight {
			best = i
		}
		if sv.weight >= domainMinWeight {
			kept = append(kept, sv.Variant)
		}
	}
	if len(kept) == 0 && len(sampled) > 0 {
		kept = append(kept, sampled[best].Variant)
	}
	return kept
}

// sampleWeight draws one Beta(alpha, beta) sample per voter and sums them,
// mirroring the Dog Pack's own w = min(phi^-1, accuracy) cap.
func (b *Bandit) sampleWeight(voters []model.DogName) float64 {
	var total float64
	for _, dog := range voters {
		alpha, beta := 1.0, 1.0
		if rec, ok := b.records.TrackRecord(dog); ok {
			alpha, beta = rec.Snapshot()
		}
		sample := sampleBeta(b.rng, alpha, beta)
		if sample > model.PhiInv {
			sample = model.PhiInv
		}
		total += sample
	}
	return total
}

// sampleBeta draws from Beta(alpha, beta) via two Gamma draws, the standard
// construction: X/(X+Y) where X~Gamma(alpha,1), Y~Gamma(beta,1).
func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	if alpha <= 0 {
		alpha = 1
	}
	if beta <= 0 {
		beta = 1
	}
	x := sampleGamma(rng, alpha)
	y := sampleGamma(rng, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) via Marsaglia-Tsang, boosting
// shape<1 by the standard u^(1/shape) trick.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		x2 := x * x
		if u < 1-0.0331*x2*x2 {
			return d * v
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
