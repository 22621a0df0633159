package router

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collective-judgment/cjo/internal/model"
)

type stubLedger struct{ remaining float64 }

func (s stubLedger) RemainingBudget() float64 { return s.remaining }

type recordingBus struct{ events []model.Event }

func (r *recordingBus) Publish(e model.Event) { r.events = append(r.events, e) }

func TestRouter_RouteReturnsVoterSetIncludingGuardian(t *testing.T) {
	r := New(HeuristicClassifier{}, NewQTable(nil, nil), nil, stubLedger{remaining: 100}, nil, nil)
	decision, err := r.Route(context.Background(), model.Item{
		ID:      uuid.New(),
		Kind:    model.KindCodeReview,
		Body:    "a short review body",
		Context: map[string]any{"domain": "security"},
	})
	require.NoError(t, err)
	assert.Contains(t, decision.VoterSet, model.DogGuardian)
	assert.NotEmpty(t, decision.Tier)
}

func TestRouter_DegradesTierWhenBudgetInsufficient(t *testing.T) {
	r := New(HeuristicClassifier{}, NewQTable(nil, nil), nil, stubLedger{remaining: 0}, nil, nil)
	decision, err := r.Route(context.Background(), model.Item{
		ID:   uuid.New(),
		Kind: model.KindCodeReview,
		Body: "anything",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TierEconomy, decision.Tier)
	assert.Equal(t, degradedMaxDimensions, decision.MaxDimensionsScored)
	assert.Equal(t, model.StrategySingle, decision.Strategy)
}

func TestRouter_EmitsRoutingDecisionEvent(t *testing.T) {
	bus := &recordingBus{}
	r := New(HeuristicClassifier{}, NewQTable(nil, nil), nil, stubLedger{remaining: 100}, bus, nil)
	_, err := r.Route(context.Background(), model.Item{ID: uuid.New(), Kind: model.KindFreeText, Body: "hi"})
	require.NoError(t, err)
	require.Len(t, bus.events, 1)
	assert.Equal(t, model.EventRoutingDecision, bus.events[0].Kind)
	assert.Equal(t, model.BusCore, bus.events[0].Bus)
}

func TestRouter_NilLedgerSkipsDegradation(t *testing.T) {
	r := New(HeuristicClassifier{}, NewQTable(nil, nil), nil, nil, nil, nil)
	decision, err := r.Route(context.Background(), model.Item{ID: uuid.New(), Kind: model.KindFreeText, Body: "hi"})
	require.NoError(t, err)
	assert.NotEqual(t, 0, decision.MaxDimensionsScored)
}

func TestDefaultDomainVariants_AlwaysHasFullVariant(t *testing.T) {
	r := New(HeuristicClassifier{}, NewQTable(nil, nil), nil, nil, nil, nil)
	variants := r.defaultDomainVariants("security")
	names := make([]string, 0, len(variants))
	for _, v := range variants {
		names = append(names, v.Name)
	}
	assert.Contains(t, names, "full")
}
