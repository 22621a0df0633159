package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collective-judgment/cjo/internal/auth"
	"github.com/collective-judgment/cjo/internal/cjoerr"
	"github.com/collective-judgment/cjo/internal/model"
	"github.com/collective-judgment/cjo/internal/orchestrator"
	"github.com/collective-judgment/cjo/internal/server"
)

type fakeOrchestrator struct {
	submitFn    func(item model.Item) (model.JudgmentEnvelope, error)
	cancelErr   error
	getErr      error
	getEnv      model.JudgmentEnvelope
	feedbackErr error
	health      model.Health
}

func (f *fakeOrchestrator) Submit(_ context.Context, item model.Item) (model.JudgmentEnvelope, error) {
	return f.submitFn(item)
}

func (f *fakeOrchestrator) SubmitAsync(model.Item) uuid.UUID { return uuid.New() }

func (f *fakeOrchestrator) Cancel(uuid.UUID) error { return f.cancelErr }

func (f *fakeOrchestrator) Get(context.Context, uuid.UUID) (model.JudgmentEnvelope, error) {
	return f.getEnv, f.getErr
}

func (f *fakeOrchestrator) Feedback(context.Context, uuid.UUID, orchestrator.Outcome, *float64) error {
	return f.feedbackErr
}

func (f *fakeOrchestrator) Health(context.Context, orchestrator.Pinger) model.Health {
	return f.health
}

func newTestServer(t *testing.T, orch *fakeOrchestrator) (*httptest.Server, *auth.JWTManager) {
	t.Helper()
	jwtMgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.New(server.ServerConfig{
		Orchestrator:        orch,
		JWTMgr:              jwtMgr,
		AdminAPIKey:         "admin-secret",
		CallerAPIKey:        "caller-secret",
		Logger:              logger,
		Port:                0,
		ReadTimeout:         5 * time.Second,
		WriteTimeout:        5 * time.Second,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
		CORSAllowedOrigins:  []string{"*"},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, jwtMgr
}

func issueToken(t *testing.T, ts *httptest.Server, apiKey, callerID string) string {
	t.Helper()
	body, _ := json.Marshal(model.AuthTokenRequest{CallerID: callerID, APIKey: apiKey})
	resp, err := http.Post(ts.URL+"/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Data model.AuthTokenResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Data.Token
}

func TestHandleAuthToken_WrongKeyIsUnauthorized(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOrchestrator{})
	body, _ := json.Marshal(model.AuthTokenRequest{CallerID: "c1", APIKey: "not-the-secret"})
	resp, err := http.Post(ts.URL+"/auth/token", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleAuthToken_CallerKeyIssuesToken(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOrchestrator{})
	token := issueToken(t, ts, "caller-secret", "c1")
	assert.NotEmpty(t, token)
}

func TestHandleSubmit_RequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOrchestrator{})
	resp, err := http.Post(ts.URL+"/v1/items", "application/json", bytes.NewReader([]byte(`{"body":"x"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleSubmit_HappyPath(t *testing.T) {
	judgmentID := uuid.New()
	orch := &fakeOrchestrator{
		submitFn: func(item model.Item) (model.JudgmentEnvelope, error) {
			assert.Equal(t, "hello world", item.Body)
			return model.JudgmentEnvelope{Judgment: model.Judgment{ID: judgmentID}}, nil
		},
	}
	ts, _ := newTestServer(t, orch)
	token := issueToken(t, ts, "caller-secret", "c1")

	body, _ := json.Marshal(model.SubmitItemRequest{Kind: model.KindFreeText, Body: "hello world"})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/items", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleSubmit_BudgetExhaustedReturns402(t *testing.T) {
	orch := &fakeOrchestrator{
		submitFn: func(model.Item) (model.JudgmentEnvelope, error) {
			return model.JudgmentEnvelope{}, cjoerr.ErrBudgetExhausted
		},
	}
	ts, _ := newTestServer(t, orch)
	token := issueToken(t, ts, "caller-secret", "c1")

	body, _ := json.Marshal(model.SubmitItemRequest{Kind: model.KindFreeText, Body: "x"})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/items", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
}

func TestHandleGetJudgment_NotFound(t *testing.T) {
	orch := &fakeOrchestrator{getErr: cjoerr.ErrNotFound}
	ts, _ := newTestServer(t, orch)
	token := issueToken(t, ts, "caller-secret", "c1")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/items/"+uuid.New().String(), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleHealth_NoAuthRequired(t *testing.T) {
	orch := &fakeOrchestrator{health: model.Health{Ready: true}}
	ts, _ := newTestServer(t, orch)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleHealth_NotReadyReturns503(t *testing.T) {
	orch := &fakeOrchestrator{health: model.Health{Ready: false, Reasons: []string{"budget exhausted"}}}
	ts, _ := newTestServer(t, orch)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleFeedback_RejectsUnknownOutcome(t *testing.T) {
	orch := &fakeOrchestrator{}
	ts, _ := newTestServer(t, orch)
	token := issueToken(t, ts, "caller-secret", "c1")

	body, _ := json.Marshal(model.FeedbackRequest{Outcome: "maybe"})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/items/"+uuid.New().String()+"/feedback", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
