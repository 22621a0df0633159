package router

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/collective-judgment/cjo/internal/model"
)

func TestHeuristicClassifier_DerivesIntentFromKind(t *testing.T) {
	c := HeuristicClassifier{}
	cls, err := c.Classify(context.Background(), model.Item{Kind: model.KindCodeReview, Body: "short"})
	assert.NoError(t, err)
	assert.Equal(t, "review", cls.Intent)
}

func TestHeuristicClassifier_UnknownKindFallsBack(t *testing.T) {
	c := HeuristicClassifier{}
	cls, err := c.Classify(context.Background(), model.Item{Kind: model.Kind("mystery")})
	assert.NoError(t, err)
	assert.Equal(t, "unknown", cls.Intent)
}

func TestHeuristicClassifier_DomainFromContextOrGeneral(t *testing.T) {
	c := HeuristicClassifier{}
	withDomain, _ := c.Classify(context.Background(), model.Item{Context: map[string]any{"domain": "security"}})
	assert.Equal(t, "security", withDomain.Domain)

	withoutDomain, _ := c.Classify(context.Background(), model.Item{})
	assert.Equal(t, "general", withoutDomain.Domain)
}

func TestComplexityForBody_Bands(t *testing.T) {
	cases := []struct {
		name string
		n    int
		want model.Complexity
	}{
		{"trivial", 10, model.ComplexityTrivial},
		{"simple", 100, model.ComplexitySimple},
		{"moderate", 500, model.ComplexityModerate},
		{"complex", 2000, model.ComplexityComplex},
		{"epic", 5000, model.ComplexityEpic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := strings.Repeat("x", tc.n)
			assert.Equal(t, tc.want, complexityForBody(body))
		})
	}
}

func TestEstimatedCost_IncreasesWithComplexity(t *testing.T) {
	assert.Less(t, estimatedCost(model.ComplexityTrivial), estimatedCost(model.ComplexitySimple))
	assert.Less(t, estimatedCost(model.ComplexitySimple), estimatedCost(model.ComplexityModerate))
	assert.Less(t, estimatedCost(model.ComplexityModerate), estimatedCost(model.ComplexityComplex))
	assert.Less(t, estimatedCost(model.ComplexityComplex), estimatedCost(model.ComplexityEpic))
}

func TestTimeOfDayBucket_Boundaries(t *testing.T) {
	day := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, model.BucketNight, TimeOfDayBucket(day.Add(3*time.Hour)))
	assert.Equal(t, model.BucketMorning, TimeOfDayBucket(day.Add(9*time.Hour)))
	assert.Equal(t, model.BucketAfternoon, TimeOfDayBucket(day.Add(15*time.Hour)))
	assert.Equal(t, model.BucketEvening, TimeOfDayBucket(day.Add(21*time.Hour)))
}
