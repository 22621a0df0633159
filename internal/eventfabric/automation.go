package eventfabric

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/collective-judgment/cjo/internal/model"
)

// Automation drives the Automation bus's time-triggered AUTOMATION_TICK
// event on a cron schedule.
type Automation struct {
	cron   *cron.Cron
	bus    *Bus
	logger *slog.Logger
}

// NewAutomation builds an Automation ticker publishing onto bus per
// schedule, a standard five-field cron expression (or a "@every" entry).
func NewAutomation(bus *Bus, schedule string, logger *slog.Logger) (*Automation, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New()
	a := &Automation{cron: c, bus: bus, logger: logger}
	if _, err := c.AddFunc(schedule, a.tick); err != nil {
		return nil, fmt.Errorf("eventfabric: parse automation schedule %q: %w", schedule, err)
	}
	return a, nil
}

// Start begins the cron scheduler. Non-blocking: ticks run in their own
// goroutine managed by the cron library.
func (a *Automation) Start() { a.cron.Start() }

// Stop halts the scheduler, waiting for any in-flight tick to finish.
func (a *Automation) Stop() { <-a.cron.Stop().Done() }

func (a *Automation) tick() {
	a.bus.Publish(model.Event{
		Bus:       model.BusAutomation,
		Kind:      model.EventAutomationTick,
		Payload:   map[string]any{"ts": time.Now().UTC()},
		EmittedAt: time.Now().UTC(),
	})
}
