package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/collective-judgment/cjo/internal/auth"
	"github.com/collective-judgment/cjo/internal/cjoerr"
	"github.com/collective-judgment/cjo/internal/ctxutil"
	"github.com/collective-judgment/cjo/internal/eventfabric"
	"github.com/collective-judgment/cjo/internal/model"
	"github.com/collective-judgment/cjo/internal/orchestrator"
)

// Orchestrator is the subset of *orchestrator.Orchestrator the HTTP surface
// drives.
type Orchestrator interface {
	Submit(ctx context.Context, item model.Item) (model.JudgmentEnvelope, error)
	SubmitAsync(item model.Item) uuid.UUID
	Cancel(submissionID uuid.UUID) error
	Get(ctx context.Context, judgmentID uuid.UUID) (model.JudgmentEnvelope, error)
	Feedback(ctx context.Context, judgmentID uuid.UUID, outcome orchestrator.Outcome, actualScore *float64) error
	Health(ctx context.Context, db orchestrator.Pinger) model.Health
}

// HandlersDeps bundles every dependency a Handlers needs.
type HandlersDeps struct {
	Orchestrator        Orchestrator
	DB                  orchestrator.Pinger
	JWTMgr              *auth.JWTManager
	AdminAPIKey         string
	CallerAPIKey        string
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	Broker              *Broker
	AgentBus            *eventfabric.Bus
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	orch         Orchestrator
	db           orchestrator.Pinger
	jwtMgr       *auth.JWTManager
	adminAPIKey  string
	callerAPIKey string
	logger       *slog.Logger
	version      string
	maxBodyBytes int64
	startedAt    time.Time
	broker       *Broker
	agentBus     *eventfabric.Bus
}

// NewHandlers builds a Handlers from its dependencies.
func NewHandlers(deps HandlersDeps) *Handlers {
	maxBody := deps.MaxRequestBodyBytes
	if maxBody <= 0 {
		maxBody = 1 * 1024 * 1024
	}
	return &Handlers{
		orch:         deps.Orchestrator,
		db:           deps.DB,
		jwtMgr:       deps.JWTMgr,
		adminAPIKey:  deps.AdminAPIKey,
		callerAPIKey: deps.CallerAPIKey,
		logger:       deps.Logger,
		version:      deps.Version,
		maxBodyBytes: maxBody,
		startedAt:    time.Now(),
		broker:       deps.Broker,
		agentBus:     deps.AgentBus,
	}
}

// HandleAuthToken handles POST /auth/token: exchange one of the two
// configured shared secrets for a role-scoped JWT.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := decodeJSON(r, &req, h.maxBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}
	if req.CallerID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "caller_id is required")
		return
	}

	role, ok := h.resolveRole(req.APIKey)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid api key")
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken(req.CallerID, role)
	if err != nil {
		h.writeInternalError(w, r, "failed to issue token", err)
		return
	}
	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{Token: token, ExpiresAt: expiresAt})
}

// resolveRole checks apiKey against both configured shared secrets in
// constant time, admin first. An empty configured secret never matches,
// so an operator who never set CJO_ADMIN_API_KEY/CJO_CALLER_API_KEY simply
// disables that role rather than accepting an empty key as a credential.
func (h *Handlers) resolveRole(apiKey string) (auth.Role, bool) {
	if h.adminAPIKey != "" && constantTimeEqual(apiKey, h.adminAPIKey) {
		return auth.RoleAdmin, true
	}
	if h.callerAPIKey != "" && constantTimeEqual(apiKey, h.callerAPIKey) {
		return auth.RoleCaller, true
	}
	return "", false
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HandleSubmit handles POST /v1/items: runs the critical path synchronously
// and returns the full JudgmentEnvelope.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	item, ok := h.decodeItem(w, r)
	if !ok {
		return
	}

	envelope, err := h.orch.Submit(r.Context(), item)
	if err != nil {
		if errors.Is(err, cjoerr.ErrBudgetExhausted) {
			writeError(w, r, http.StatusPaymentRequired, model.ErrCodeBudgetExceeded, "cost budget exhausted")
			return
		}
		h.writeInternalError(w, r, "submit failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, envelope)
}

// HandleSubmitAsync handles POST /v1/items/async: enqueues the item and
// returns a submission id immediately.
func (h *Handlers) HandleSubmitAsync(w http.ResponseWriter, r *http.Request) {
	item, ok := h.decodeItem(w, r)
	if !ok {
		return
	}
	submissionID := h.orch.SubmitAsync(item)
	writeJSON(w, r, http.StatusAccepted, model.SubmitAsyncResponse{SubmissionID: submissionID.String()})
}

// HandleCancel handles DELETE /v1/items/async/{submission_id}.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("submission_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid submission_id")
		return
	}
	if err := h.orch.Cancel(id); err != nil {
		if errors.Is(err, cjoerr.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "submission not found")
			return
		}
		h.writeInternalError(w, r, "cancel failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetJudgment handles GET /v1/items/{id}.
func (h *Handlers) HandleGetJudgment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid judgment id")
		return
	}
	envelope, err := h.orch.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, cjoerr.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "judgment not found")
			return
		}
		h.writeInternalError(w, r, "get judgment failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, envelope)
}

// HandleFeedback handles POST /v1/items/{id}/feedback.
func (h *Handlers) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid judgment id")
		return
	}

	var req model.FeedbackRequest
	if err := decodeJSON(r, &req, h.maxBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return
	}

	outcome := orchestrator.Outcome(req.Outcome)
	switch outcome {
	case orchestrator.OutcomeCorrect, orchestrator.OutcomeIncorrect, orchestrator.OutcomePartial:
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "outcome must be correct, incorrect, or partial")
		return
	}

	if err := h.orch.Feedback(r.Context(), id, outcome, req.ActualScore); err != nil {
		h.writeInternalError(w, r, "feedback failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth handles GET /health (no auth).
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.orch.Health(r.Context(), h.db)
	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, map[string]any{
		"ready":     health.Ready,
		"degraded":  health.Degraded,
		"reasons":   health.Reasons,
		"version":   h.version,
		"uptime_ms": time.Since(h.startedAt).Milliseconds(),
	})
}

// decodeItem decodes and validates a SubmitItemRequest, writing an error
// response and returning ok=false on failure.
func (h *Handlers) decodeItem(w http.ResponseWriter, r *http.Request) (model.Item, bool) {
	var req model.SubmitItemRequest
	if err := decodeJSON(r, &req, h.maxBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body")
		return model.Item{}, false
	}
	if req.Body == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "body is required")
		return model.Item{}, false
	}

	claims := ctxutil.ClaimsFromContext(r.Context())
	item := model.Item{
		ID:         uuid.New(),
		Kind:       req.Kind,
		Body:       req.Body,
		Context:    req.Context,
		SessionID:  req.SessionID,
		ReceivedAt: time.Now().UTC(),
	}
	if claims != nil {
		item.UserID = claims.CallerID
	}
	return item, true
}

// writeInternalError logs the underlying error and writes a generic 500
// response so internal errors are never silently swallowed.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", ctxutil.RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

// HandleConfig handles GET /config (no auth): returns the service version
// for a UI.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"version": h.version})
}
