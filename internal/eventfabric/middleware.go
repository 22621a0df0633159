package eventfabric

import (
	"log/slog"
	"time"

	"github.com/collective-judgment/cjo/internal/model"
)

// ValidateMiddleware drops events with no Kind or an unrecognized Bus — the
// first stage of the Core bus's validate→enrich→log chain.
func ValidateMiddleware() Middleware {
	return func(e model.Event) (model.Event, bool) {
		if e.Kind == "" {
			return e, false
		}
		switch e.Bus {
		case model.BusCore, model.BusAutomation, model.BusAgent:
		default:
			return e, false
		}
		return e, true
	}
}

// EnrichMiddleware stamps EmittedAt on events the publisher left zero, so
// every subscriber and every Bridge-forwarded copy carries a timestamp.
func EnrichMiddleware(now func() time.Time) Middleware {
	return func(e model.Event) (model.Event, bool) {
		if e.EmittedAt.IsZero() {
			e.EmittedAt = now().UTC()
		}
		return e, true
	}
}

// LogMiddleware logs every event that survives validate+enrich, the last
// stage before subscriber dispatch.
func LogMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(e model.Event) (model.Event, bool) {
		logger.Debug("eventfabric: event admitted", "bus", e.Bus, "kind", e.Kind, "correlation_id", e.CorrelationID)
		return e, true
	}
}
