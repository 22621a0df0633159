package model

import "time"

// Error codes returned in APIError.Error.Code, stable across API versions
// so callers can switch on them instead of parsing Message.
const (
	ErrCodeInvalidInput   = "invalid_input"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeForbidden      = "forbidden"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeBudgetExceeded = "budget_exceeded"
	ErrCodeInternalError  = "internal_error"
)

// ResponseMeta rides on every API response, success or error.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// APIResponse is the standard success envelope for the ingress HTTP surface.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// ErrorDetail names a single failure in the standard error envelope.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is the standard error envelope for the ingress HTTP surface.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// AuthTokenRequest is the body of POST /auth/token: a caller identifier plus
// one of the two shared secrets (admin or caller) configured at startup.
type AuthTokenRequest struct {
	CallerID string `json:"caller_id"`
	APIKey   string `json:"api_key"`
}

// AuthTokenResponse is the successful response to POST /auth/token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmitItemRequest is the body of POST /v1/items.
type SubmitItemRequest struct {
	Kind      Kind           `json:"kind"`
	Body      string         `json:"body"`
	Context   map[string]any `json:"context,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// SubmitAsyncResponse is the response to POST /v1/items/async.
type SubmitAsyncResponse struct {
	SubmissionID string `json:"submission_id"`
}

// FeedbackRequest is the body of POST /v1/items/{id}/feedback.
type FeedbackRequest struct {
	Outcome     string   `json:"outcome"`
	ActualScore *float64 `json:"actual_score,omitempty"`
}

// JudgmentEnvelope is the Orchestrator's synchronous response to Submit: the
// Judgment itself plus the context that produced it. Consensus is nil when
// the consensus round never ran or timed out with too few voters -- callers
// must treat a nil Consensus as "no consensus annotation", not an error.
type JudgmentEnvelope struct {
	Judgment       Judgment
	Consensus      *ConsensusResult
	Classification Classification
	RouteDecision  RouteDecision
	CostRecord     CostRecord
}

// Health reports the Orchestrator's readiness for traffic.
type Health struct {
	Ready    bool
	Degraded bool
	Reasons  []string
}
