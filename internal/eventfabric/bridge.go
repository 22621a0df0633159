package eventfabric

import (
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/collective-judgment/cjo/internal/cjoerr"
	"github.com/collective-judgment/cjo/internal/model"
)

// Rule forwards an event from one bus/kind to another, optionally
// transforming its payload in transit.
type Rule struct {
	FromBus   model.Bus
	FromKind  string
	ToBus     model.Bus
	ToKind    string
	Transform func(any) any // nil keeps the payload as-is
}

// Bridge forwards events between buses according to a fixed set of Rules,
// refusing to forward the same (bus, kind, payload) tuple twice within TTL
// so a Rule cycle can't loop an event around the fabric forever.
type Bridge struct {
	rules  []Rule
	buses  map[model.Bus]*Bus
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	visited map[string]time.Time
}

// NewBridge wires rules across buses (keyed by model.Bus), expiring
// visited-set entries after ttl.
func NewBridge(buses map[model.Bus]*Bus, rules []Rule, ttl time.Duration, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		rules:   rules,
		buses:   buses,
		ttl:     ttl,
		logger:  logger,
		visited: make(map[string]time.Time),
	}
}

// Attach subscribes the Bridge to every bus named as a Rule source, so it
// forwards matching events as they're published.
func (b *Bridge) Attach() {
	fromBuses := make(map[model.Bus]bool)
	for _, r := range b.rules {
		fromBuses[r.FromBus] = true
	}
	for busName := range fromBuses {
		bus, ok := b.buses[busName]
		if !ok {
			continue
		}
		bus.Subscribe(SubscriberFunc(b.handle))
	}
}

func (b *Bridge) handle(e model.Event) {
	for _, r := range b.rules {
		if r.FromBus != e.Bus || r.FromKind != e.Kind {
			continue
		}

		key := e.VisitedKey(payloadHash(e.Payload))
		if b.seen(key) {
			b.logger.Debug("eventfabric: bridge skipped re-entrant event", "key", key, "error", cjoerr.ErrBusLoop)
			continue
		}

		payload := e.Payload
		if r.Transform != nil {
			payload = r.Transform(payload)
		}

		forwarded := model.Event{
			Bus:           r.ToBus,
			Kind:          r.ToKind,
			Payload:       payload,
			EmittedAt:     time.Now().UTC(),
			CorrelationID: e.CorrelationID,
		}
		if target, ok := b.buses[r.ToBus]; ok {
			target.Publish(forwarded)
		}
	}
}

// seen reports whether key was already visited within ttl, recording it as
// visited either way. Stale entries are swept opportunistically.
func (b *Bridge) seen(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if t, ok := b.visited[key]; ok && now.Sub(t) < b.ttl {
		return true
	}
	b.visited[key] = now

	cutoff := now.Add(-b.ttl)
	for k, t := range b.visited {
		if t.Before(cutoff) {
			delete(b.visited, k)
		}
	}
	return false
}

// payloadHash derives a stable short hash of an event payload for the
// visited-set key; payload shapes are small JSON-able maps/structs, so a
// marshal-then-hash round trip is cheap and deterministic enough for loop
// detection (it does not need to be collision-proof, only cycle-proof).
func payloadHash(payload any) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return strconv.FormatUint(h.Sum64(), 16)
}
