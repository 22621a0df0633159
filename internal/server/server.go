package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/collective-judgment/cjo/internal/auth"
	"github.com/collective-judgment/cjo/internal/eventfabric"
	"github.com/collective-judgment/cjo/internal/orchestrator"
	"github.com/collective-judgment/cjo/internal/ratelimit"
)

// Server is the orchestrator's ingress HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	broker     *Broker
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// RateLimiter and Broker are nil-safe: a nil RateLimiter disables throttling,
// a nil Broker makes HandleSubscribe respond 503.
type ServerConfig struct {
	Orchestrator Orchestrator
	DB           orchestrator.Pinger
	JWTMgr       *auth.JWTManager
	AdminAPIKey  string
	CallerAPIKey string
	Logger       *slog.Logger

	CoreBus  *eventfabric.Bus
	AgentBus *eventfabric.Bus

	RateLimiter ratelimit.Limiter
	TrustProxy  bool

	// MetricsRegistry, when non-nil, is served at GET /metrics (no auth) via
	// promhttp. Nil disables the endpoint.
	MetricsRegistry *prometheus.Registry

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	CORSAllowedOrigins  []string
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	var broker *Broker
	if cfg.CoreBus != nil {
		broker = NewBroker(cfg.CoreBus, cfg.Logger)
		broker.Start()
	}

	h := NewHandlers(HandlersDeps{
		Orchestrator:        cfg.Orchestrator,
		DB:                  cfg.DB,
		JWTMgr:              cfg.JWTMgr,
		AdminAPIKey:         cfg.AdminAPIKey,
		CallerAPIKey:        cfg.CallerAPIKey,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		Broker:              broker,
		AgentBus:            cfg.AgentBus,
	})

	mux := http.NewServeMux()

	// Auth (no auth required to obtain a token).
	mux.Handle("POST /auth/token", http.HandlerFunc(h.HandleAuthToken))

	// Item submission and retrieval (caller+).
	callerRole := requireRole(auth.RoleCaller)
	mux.Handle("POST /v1/items", callerRole(http.HandlerFunc(h.HandleSubmit)))
	mux.Handle("POST /v1/items/async", callerRole(http.HandlerFunc(h.HandleSubmitAsync)))
	mux.Handle("DELETE /v1/items/async/{submission_id}", callerRole(http.HandlerFunc(h.HandleCancel)))
	mux.Handle("GET /v1/items/{id}", callerRole(http.HandlerFunc(h.HandleGetJudgment)))
	mux.Handle("POST /v1/items/{id}/feedback", callerRole(http.HandlerFunc(h.HandleFeedback)))

	// Event streaming (caller+).
	mux.Handle("GET /v1/events", callerRole(http.HandlerFunc(h.HandleSubscribe)))
	mux.Handle("GET /v1/votes/stream", callerRole(http.HandlerFunc(h.HandleVoteStream)))

	// Config, health, and metrics (no auth).
	mux.HandleFunc("GET /config", h.HandleConfig)
	mux.HandleFunc("GET /health", h.HandleHealth)
	if cfg.MetricsRegistry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → CORS → tracing → logging → auth → recovery → rateLimit → handler.
	var handler http.Handler = mux
	if cfg.RateLimiter != nil {
		keyFunc := ratelimit.IPKeyFunc
		handler = ratelimit.Middleware(cfg.RateLimiter, keyFunc)(handler)
	}
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(cfg.CORSAllowedOrigins, handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  2 * cfg.ReadTimeout,
		},
		handler:  handler,
		handlers: h,
		broker:   broker,
		logger:   cfg.Logger,
	}
}

// Handlers returns the underlying Handlers, mostly for tests.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server and stops the event broker.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	if s.broker != nil {
		s.broker.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
