package eventfabric

import (
	"log/slog"
	"time"

	"github.com/collective-judgment/cjo/internal/model"
)

// Fabric owns the three logical buses, the Core bus's middleware chain, the
// inter-bus Bridge, and the Automation cron ticker.
type Fabric struct {
	Core       *Bus
	Automation *Bus
	Agent      *Bus

	bridge     *Bridge
	automation *Automation
}

// Config controls Fabric construction.
type Config struct {
	CoreQueueDepth       int
	AutomationQueueDepth int
	AgentQueueDepth      int
	BridgeVisitedTTL     time.Duration
	AutomationCron       string
	Logger               *slog.Logger
}

// DefaultBridgeRules mirrors the selected forwarding rules named in the
// event shapes: user feedback lands on the Automation bus as a judgment
// feedback trigger, and every consensus round reaching the Agent bus is
// mirrored onto Core so non-dog subscribers can see it without subscribing
// to the Agent bus directly.
func DefaultBridgeRules() []Rule {
	return []Rule{
		{FromBus: model.BusCore, FromKind: "USER_FEEDBACK", ToBus: model.BusAutomation, ToKind: "TRIGGER_JUDGMENT_FEEDBACK"},
		{FromBus: model.BusAgent, FromKind: model.EventConsensusReached, ToBus: model.BusCore, ToKind: model.EventConsensusReached},
	}
}

// New builds a Fabric: three buses (queue depths per cfg), the Core bus's
// validate→enrich→log chain, a Bridge wired with DefaultBridgeRules, and an
// Automation ticker on cfg.AutomationCron.
func New(cfg Config) (*Fabric, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	core := NewBus(model.BusCore, cfg.CoreQueueDepth, logger)
	automationBus := NewBus(model.BusAutomation, cfg.AutomationQueueDepth, logger)
	agent := NewBus(model.BusAgent, cfg.AgentQueueDepth, logger)

	core.Use(ValidateMiddleware())
	core.Use(EnrichMiddleware(time.Now))
	core.Use(LogMiddleware(logger))

	ttl := cfg.BridgeVisitedTTL
	if ttl <= 0 {
		ttl = time.Second
	}
	buses := map[model.Bus]*Bus{model.BusCore: core, model.BusAutomation: automationBus, model.BusAgent: agent}
	bridge := NewBridge(buses, DefaultBridgeRules(), ttl, logger)
	bridge.Attach()

	automation, err := NewAutomation(automationBus, cfg.AutomationCron, logger)
	if err != nil {
		return nil, err
	}

	return &Fabric{
		Core:       core,
		Automation: automationBus,
		Agent:      agent,
		bridge:     bridge,
		automation: automation,
	}, nil
}

// Start begins the Automation cron ticker.
func (f *Fabric) Start() { f.automation.Start() }

// Stop halts the Automation cron ticker, waiting for any in-flight tick.
func (f *Fabric) Stop() { f.automation.Stop() }
