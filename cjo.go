// Package cjo is the public composition root for the Collective Judgment
// Orchestrator. It wires every internal subsystem -- cost ledger, router,
// judgment engine, dog pack, event fabric, storage, and the HTTP ingress --
// into a single runnable App.
//
//	app, err := cjo.New(cjo.WithVersion(version), cjo.WithLogger(logger))
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
package cjo

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/collective-judgment/cjo/internal/auth"
	"github.com/collective-judgment/cjo/internal/config"
	"github.com/collective-judgment/cjo/internal/costledger"
	"github.com/collective-judgment/cjo/internal/dogpack"
	"github.com/collective-judgment/cjo/internal/eventfabric"
	"github.com/collective-judgment/cjo/internal/ingest"
	"github.com/collective-judgment/cjo/internal/llmadapter"
	"github.com/collective-judgment/cjo/internal/orchestrator"
	"github.com/collective-judgment/cjo/internal/ratelimit"
	"github.com/collective-judgment/cjo/internal/router"
	"github.com/collective-judgment/cjo/internal/scoring"
	"github.com/collective-judgment/cjo/internal/server"
	"github.com/collective-judgment/cjo/internal/storage"
	"github.com/collective-judgment/cjo/internal/telemetry"
	"github.com/collective-judgment/cjo/internal/workerpool"
	"github.com/collective-judgment/cjo/migrations"
)

// metricsMonitorInterval is how often the cost-ledger Prometheus gauges and
// the Circuit Breaker's Evaluate are refreshed from the Ledger's running
// state.
const metricsMonitorInterval = 5 * time.Second

// burnRateWindow bounds the trailing window BurnRate and Evaluate consult.
const burnRateWindow = time.Minute

// App is the orchestrator's process lifecycle. Construct with New(), run
// with Run(). App has no public fields -- use New() options to configure it.
type App struct {
	cfg    config.Config
	db     *storage.DB
	srv    *server.Server
	orch   *orchestrator.Orchestrator
	ledger *costledger.Ledger
	qtable *router.QTable

	fabric  *eventfabric.Fabric
	watcher *ingest.Watcher // nil when CJO_INGEST_DIR is unset

	breaker     *costledger.Breaker
	governor    *costledger.Governor
	metrics     *costledger.Metrics
	metricsDone chan struct{}

	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initializes the orchestrator. It connects to storage, runs
// migrations, wires every subsystem, and returns a ready-to-run App. It
// does NOT start any goroutines or accept HTTP connections -- call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.llmAdapter != "" {
		cfg.LLMAdapter = o.llmAdapter
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("cjo starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}
	store := storage.NewStore(db)

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}

	// Prometheus registry: isolated so repeated App construction in tests
	// never collides with prometheus.DefaultRegisterer.
	promReg := prometheus.NewRegistry()
	metrics := costledger.NewMetrics(promReg)

	// Cost Ledger + phi-Governor + Circuit Breaker.
	ledger := costledger.NewLedger(cfg.BudgetCap, store, cfg.CostLedgerFlushInterval, logger)
	governor := costledger.NewGovernor(cfg.GovernorEMAAlpha)
	breaker := costledger.NewBreaker(cfg.CircuitBreakerOpenDuration)
	if cfg.DegradedMode {
		breaker.Evaluate(0, 0, 0) // force-open at startup when operators request degraded mode
	}

	// Router: learned Q-table over a SQLite-backed store, Thompson-sampling
	// bandit over the pack's own TrackRecords, gated by the breaker.
	qstateStore, err := router.NewSQLiteStore(cfg.QStatePath)
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("router qstate: %w", err)
	}
	qtable := router.NewQTable(qstateStore, logger)
	if err := qtable.Load(context.Background()); err != nil {
		logger.Warn("router: q-table load failed, starting from an empty table", "error", err)
	}

	pack := dogpack.New()
	bandit := router.NewBandit(pack, rand.New(rand.NewSource(time.Now().UnixNano())))

	fabric, err := eventfabric.New(eventfabric.Config{
		CoreQueueDepth:       cfg.CoreBusQueueDepth,
		AutomationQueueDepth: cfg.AutomationBusQueueDepth,
		AgentQueueDepth:      cfg.AgentBusQueueDepth,
		BridgeVisitedTTL:     cfg.BridgeVisitedTTL,
		AutomationCron:       cfg.AutomationCronSchedule,
		Logger:               logger,
	})
	if err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("event fabric: %w", err)
	}

	rt := router.New(router.HeuristicClassifier{}, qtable, bandit, ledger, fabric.Core, logger)
	rt.SetBreaker(breaker)

	// Judgment Engine + Dog Pack voter, both backed by the same LLM adapter
	// selection so "noop" degrades both to heuristics rather than one
	// silently outrunning the other's signal quality.
	adapter := llmadapter.Select(cfg.LLMAdapter, cfg.LLMAdapterURL)
	var scorer scoring.Scorer
	if cfg.LLMAdapter == "http" {
		scorer = scoring.NewLLMScorer(adapter, cfg.DefaultTier, 256)
	} else {
		scorer = scoring.NewHeuristicScorer()
	}
	pool := workerpool.New(cfg.WorkerPoolSize)
	engine := scoring.NewEngine(scorer, pool, cfg.DimensionScoreSoftTimeout, cfg.DimensionScoreHardTimeout, logger)
	voter := dogpack.NewLLMVoter(adapter, cfg.DefaultTier, 128)

	orch := orchestrator.New(orchestrator.Config{
		Classifier:                router.HeuristicClassifier{},
		Router:                    rt,
		Engine:                    engine,
		Pack:                      pack,
		Voter:                     voter,
		Ledger:                    ledger,
		QTable:                    qtable,
		Store:                     store,
		Core:                      fabric.Core,
		Agent:                     fabric.Agent,
		Logger:                    logger,
		Timeouts:                  orchestratorTimeouts(cfg),
		BackgroundTailConcurrency: cfg.BackgroundTailSemaphoreSize,
		BackgroundTailGracePeriod: cfg.BackgroundTailGracePeriod,
	})

	var limiter ratelimit.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.ServerConfig{
		Orchestrator:        orch,
		DB:                  db,
		JWTMgr:              jwtMgr,
		AdminAPIKey:         cfg.AdminAPIKey,
		CallerAPIKey:        cfg.CallerAPIKey,
		Logger:              logger,
		CoreBus:             fabric.Core,
		AgentBus:            fabric.Agent,
		RateLimiter:         limiter,
		MetricsRegistry:     promReg,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
	})

	var watcher *ingest.Watcher
	if cfg.IngestDir != "" {
		watcher, err = ingest.New(ingest.Config{
			Dir:        cfg.IngestDir,
			Submitter:  orch,
			Logger:     logger,
			DebounceMs: cfg.IngestDebounceMs,
		})
		if err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("ingest watcher: %w", err)
		}
	}

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		orch:         orch,
		ledger:       ledger,
		qtable:       qtable,
		fabric:       fabric,
		watcher:      watcher,
		breaker:      breaker,
		governor:     governor,
		metrics:      metrics,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// orchestratorTimeouts projects the flat config fields onto the
// orchestrator's Timeouts struct.
func orchestratorTimeouts(cfg config.Config) orchestrator.Timeouts {
	return orchestrator.Timeouts{
		DimensionScoreSoft: cfg.DimensionScoreSoftTimeout,
		DimensionScoreHard: cfg.DimensionScoreHardTimeout,
		DogVoteSoft:        cfg.DogVoteSoftTimeout,
		DogVoteHard:        cfg.DogVoteHardTimeout,
		ConsensusHard:      cfg.ConsensusHardTimeout,
		CriticalPathHard:   cfg.CriticalPathHardTimeout,
	}
}

// Run starts every background goroutine and the HTTP server, then blocks
// until ctx is cancelled or a fatal server error occurs. When ctx is
// cancelled, Run calls Shutdown itself before returning -- callers should
// not call Shutdown separately. When Run returns an error (the ingest
// watcher failed to start, or the server failed), Shutdown has not been
// called.
func (a *App) Run(ctx context.Context) error {
	a.ledger.Start(ctx)
	a.qtable.Start(ctx)
	a.fabric.Start()
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			return fmt.Errorf("ingest watcher: %w", err)
		}
	}

	a.metricsDone = make(chan struct{})
	go a.monitorLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !isServerClosed(err) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// monitorLoop periodically samples the ledger's burn rate and updates the
// Circuit Breaker and the phi-Governor's Prometheus gauges, per spec's
// budget-driven veto on expensive operations.
func (a *App) monitorLoop(ctx context.Context) {
	defer close(a.metricsDone)
	ticker := time.NewTicker(metricsMonitorInterval)
	defer ticker.Stop()

	targetBurnRate := a.cfg.BudgetCap / burnRateWindow.Seconds()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			burnRate := a.ledger.BurnRate(burnRateWindow)
			a.breaker.Evaluate(a.ledger.RemainingBudget(), burnRate, targetBurnRate)
			a.metrics.Observe(a.ledger, a.breaker, a.governor, burnRateWindow)
		}
	}
}

// Shutdown performs a three-phase graceful shutdown: (1) stop accepting
// HTTP requests and drain in-flight, (2) drain the orchestrator's
// detached background tails, (3) stop the event fabric and ingest watcher.
// It then flushes the cost ledger and closes the database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("cjo shutting down")

	httpCtx, httpCancel := context.WithTimeout(ctx, a.cfg.ShutdownHTTPTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	httpCancel()

	a.orch.Shutdown()

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Error("ingest watcher shutdown error", "error", err)
		}
	}
	a.fabric.Stop()

	drainCtx, drainCancel := context.WithTimeout(ctx, a.cfg.BackgroundTailGracePeriod)
	a.ledger.Drain(drainCtx)
	drainCancel()
	a.qtable.Drain(ctx)

	_ = a.otelShutdown(context.Background())
	a.db.Close()

	a.logger.Info("cjo stopped")
	return nil
}

func isServerClosed(err error) bool {
	return err == http.ErrServerClosed
}
