package eventfabric_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collective-judgment/cjo/internal/eventfabric"
	"github.com/collective-judgment/cjo/internal/model"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := eventfabric.NewBus(model.BusCore, 8, nil)

	var mu sync.Mutex
	var received []model.Event
	unsubscribe := bus.Subscribe(eventfabric.SubscriberFunc(func(e model.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	}))
	defer unsubscribe()

	bus.Publish(model.Event{Bus: model.BusCore, Kind: "TEST_EVENT"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)
}

func TestBusMiddlewareCanDropEvents(t *testing.T) {
	bus := eventfabric.NewBus(model.BusCore, 8, nil)
	bus.Use(eventfabric.ValidateMiddleware())

	var mu sync.Mutex
	count := 0
	unsubscribe := bus.Subscribe(eventfabric.SubscriberFunc(func(model.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	}))
	defer unsubscribe()

	bus.Publish(model.Event{Bus: model.BusCore, Kind: ""})       // dropped: no kind
	bus.Publish(model.Event{Bus: "unknown-bus", Kind: "x"})       // dropped: bad bus
	bus.Publish(model.Event{Bus: model.BusCore, Kind: "GOOD"})    // admitted

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestEnrichMiddlewareStampsTimestamp(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mw := eventfabric.EnrichMiddleware(func() time.Time { return fixed })

	e, ok := mw(model.Event{Bus: model.BusCore, Kind: "K"})
	require.True(t, ok)
	assert.Equal(t, fixed, e.EmittedAt)

	already := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	e2, ok := mw(model.Event{Bus: model.BusCore, Kind: "K", EmittedAt: already})
	require.True(t, ok)
	assert.Equal(t, already, e2.EmittedAt)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := eventfabric.NewBus(model.BusCore, 8, nil)

	var mu sync.Mutex
	count := 0
	unsubscribe := bus.Subscribe(eventfabric.SubscriberFunc(func(model.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	}))

	bus.Publish(model.Event{Bus: model.BusCore, Kind: "BEFORE"})
	time.Sleep(20 * time.Millisecond)
	unsubscribe()
	bus.Publish(model.Event{Bus: model.BusCore, Kind: "AFTER"})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestBusSlowSubscriberDropsWithoutBlockingOthers(t *testing.T) {
	bus := eventfabric.NewBus(model.BusCore, 1, nil)

	blockCh := make(chan struct{})
	unblock := bus.Subscribe(eventfabric.SubscriberFunc(func(model.Event) {
		<-blockCh // first event never returns until test unblocks it
	}))
	defer unblock()

	var mu sync.Mutex
	fastCount := 0
	unsubFast := bus.Subscribe(eventfabric.SubscriberFunc(func(model.Event) {
		mu.Lock()
		defer mu.Unlock()
		fastCount++
	}))
	defer unsubFast()

	for i := 0; i < 5; i++ {
		bus.Publish(model.Event{Bus: model.BusCore, Kind: "SPAM"})
	}
	close(blockCh)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fastCount == 5
	}, time.Second, time.Millisecond)
}
