package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/collective-judgment/cjo/internal/eventfabric"
	"github.com/collective-judgment/cjo/internal/model"
)

// Broker fans out Core-bus events to SSE subscribers. Unlike a
// Postgres-LISTEN-backed broker, there is no reconnect/backoff path: the bus
// subscription is in-process and never drops, so the broker only needs to
// bridge Bus.Subscribe's push model onto per-client buffered channels.
type Broker struct {
	bus    *eventfabric.Bus
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}

	unsubscribeBus func()
}

// NewBroker builds a Broker fed by bus. Call Start to begin forwarding.
func NewBroker(bus *eventfabric.Bus, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		bus:         bus,
		logger:      logger,
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Start subscribes the broker to its bus. Non-blocking: forwarding happens
// on the bus's own dispatch goroutine. Call Stop to unsubscribe.
func (b *Broker) Start() {
	b.unsubscribeBus = b.bus.Subscribe(eventfabric.SubscriberFunc(b.handle))
	b.logger.Info("broker: subscribed to bus")
}

// Stop unsubscribes from the bus and closes every remaining subscriber
// channel.
func (b *Broker) Stop() {
	if b.unsubscribeBus != nil {
		b.unsubscribeBus()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *Broker) handle(e model.Event) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		b.logger.Warn("broker: failed to marshal event payload", "kind", e.Kind, "error", err)
		return
	}
	b.broadcast(formatSSE(e.Kind, string(payload)))
}

// Subscribe returns a channel that receives SSE-formatted events for every
// event the bus admits.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64) // Buffered to avoid blocking the broadcast loop.
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// broadcast sends an event to every subscriber, skipping any whose buffer is
// full rather than letting one slow client stall the rest.
func (b *Broker) broadcast(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Warn("broker: dropped event for slow subscriber", "buffer_cap", cap(ch), "event_size", len(event))
		}
	}
}

// formatSSE formats an event as a Server-Sent Events message. Per the SSE
// spec, each line in a multi-line data field must be prefixed with
// "data: " to avoid desynchronizing the client parser.
func formatSSE(eventType, data string) []byte {
	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(eventType)
	buf.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}
