package router

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collective-judgment/cjo/internal/model"
)

type fakeRecords struct {
	byDog map[model.DogName]*model.TrackRecord
}

func (f fakeRecords) TrackRecord(dog model.DogName) (*model.TrackRecord, bool) {
	tr, ok := f.byDog[dog]
	return tr, ok
}

func strongRecord() *model.TrackRecord {
	tr := model.NewTrackRecord()
	for i := 0; i < 50; i++ {
		tr.RecordSuccess()
	}
	return tr
}

func weakRecord() *model.TrackRecord {
	tr := model.NewTrackRecord()
	for i := 0; i < 50; i++ {
		tr.RecordFailure()
	}
	return tr
}

func TestBandit_RetainsVariantsAboveFloor(t *testing.T) {
	records := fakeRecords{byDog: map[model.DogName]*model.TrackRecord{
		model.DogGuardian: strongRecord(),
		model.DogAnalyst:  strongRecord(),
		model.DogCynic:    weakRecord(),
	}}
	b := NewBandit(records, rand.New(rand.NewSource(42)))

	variants := []Variant{
		{Name: "strong", Voters: []model.DogName{model.DogGuardian, model.DogAnalyst}},
		{Name: "weak", Voters: []model.DogName{model.DogCynic}},
	}
	kept := b.Select(variants)
	names := make([]string, 0, len(kept))
	for _, v := range kept {
		names = append(names, v.Name)
	}
	assert.Contains(t, names, "strong")
}

func TestBandit_AlwaysReturnsAtLeastOneVariant(t *testing.T) {
	records := fakeRecords{byDog: map[model.DogName]*model.TrackRecord{
		model.DogCynic: weakRecord(),
	}}
	b := NewBandit(records, rand.New(rand.NewSource(7)))
	kept := b.Select([]Variant{{Name: "weak", Voters: []model.DogName{model.DogCynic}}})
	assert.Len(t, kept, 1)
}

func TestBandit_EmptyVariantsReturnsEmpty(t *testing.T) {
	b := NewBandit(fakeRecords{byDog: map[model.DogName]*model.TrackRecord{}}, nil)
	assert.Empty(t, b.Select(nil))
}

func TestSampleBeta_StaysInUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		v := sampleBeta(rng, 3, 5)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}
