package dogpack

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collective-judgment/cjo/internal/model"
)

func TestNew_HasAllElevenDogsWithUninformativePriors(t *testing.T) {
	p := New()
	for _, name := range model.AllDogs {
		d, ok := p.Dog(name)
		assert.True(t, ok)
		assert.Equal(t, name, d.Name)

		tr, ok := p.TrackRecord(name)
		assert.True(t, ok)
		assert.InDelta(t, 0.5, tr.Accuracy(), 1e-9)
	}
}

func TestNew_OnlyGuardianHasVetoDomains(t *testing.T) {
	p := New()
	guardian, _ := p.Dog(model.DogGuardian)
	assert.Equal(t, model.GuardianVetoDomains, guardian.VetoDomains)

	analyst, _ := p.Dog(model.DogAnalyst)
	assert.Empty(t, analyst.VetoDomains)
}

func TestTopicHistory_StartsEmpty(t *testing.T) {
	p := New()
	assert.Empty(t, p.TopicHistory("some:topic"))
}

func TestRecordOutcome_UpdatesMatchingAndMismatchingDogs(t *testing.T) {
	p := New()
	votes := []model.Vote{
		{Dog: model.DogAnalyst, Verdict: model.VoteApprove},
		{Dog: model.DogScout, Verdict: model.VoteReject},
		{Dog: model.DogCynic, Verdict: model.VoteAbstain},
	}
	p.RecordOutcome(votes, true)

	analystTR, _ := p.TrackRecord(model.DogAnalyst)
	assert.Greater(t, analystTR.Accuracy(), 0.5)

	scoutTR, _ := p.TrackRecord(model.DogScout)
	assert.Less(t, scoutTR.Accuracy(), 0.5)

	cynicTR, _ := p.TrackRecord(model.DogCynic)
	assert.InDelta(t, 0.5, cynicTR.Accuracy(), 1e-9) // abstain never recorded
}
