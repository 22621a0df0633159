package config

import (
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	v, err := envInt("TEST_INT_MISSING", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	if err == nil {
		t.Fatal("expected error for non-integer value, got nil")
	}
	if got := err.Error(); got != `TEST_INT_BAD="abc" is not a valid integer` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvBoolValid(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	v, err := envBool("TEST_BOOL", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Fatal("expected true")
	}
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	if err == nil {
		t.Fatal("expected error for non-boolean value, got nil")
	}
	if got := err.Error(); got != `TEST_BOOL_BAD="maybe" is not a valid boolean` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	v, err := envDuration("TEST_DUR", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Seconds() != 5 {
		t.Fatalf("expected 5s, got %s", v)
	}
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err := envDuration("TEST_DUR_BAD", 0)
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	if got := err.Error(); got != `TEST_DUR_BAD="five-seconds" is not a valid duration` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvFloatValid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "1.618")
	v, err := envFloat("TEST_FLOAT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1.618 {
		t.Fatalf("expected 1.618, got %f", v)
	}
}

func TestEnvFloatInvalid(t *testing.T) {
	t.Setenv("TEST_FLOAT_BAD", "not-a-number")
	_, err := envFloat("TEST_FLOAT_BAD", 0)
	if err == nil {
		t.Fatal("expected error for invalid float, got nil")
	}
}

func TestLoadFailsOnInvalidPort(t *testing.T) {
	t.Setenv("CJO_PORT", "abc")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with invalid CJO_PORT")
	}
	if got := err.Error(); !contains(got, "CJO_PORT") || !contains(got, "abc") {
		t.Fatalf("error should mention CJO_PORT and value 'abc', got: %s", got)
	}
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	t.Setenv("CJO_PORT", "abc")
	t.Setenv("CJO_WORKER_POOL_SIZE", "xyz")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with multiple invalid vars")
	}
	got := err.Error()
	if !contains(got, "CJO_PORT") {
		t.Fatalf("error should mention CJO_PORT, got: %s", got)
	}
	if !contains(got, "CJO_WORKER_POOL_SIZE") {
		t.Fatalf("error should mention CJO_WORKER_POOL_SIZE, got: %s", got)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.DefaultTier != "standard" {
		t.Fatalf("expected default tier 'standard', got %q", cfg.DefaultTier)
	}
	if cfg.LLMAdapter != "noop" {
		t.Fatalf("expected default LLM adapter 'noop', got %q", cfg.LLMAdapter)
	}
	if cfg.DegradedMode {
		t.Fatal("expected degraded mode disabled by default")
	}
}

func TestLoadRejectsUnknownTier(t *testing.T) {
	t.Setenv("CJO_DEFAULT_TIER", "platinum")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with an unrecognized tier")
	}
	if !contains(err.Error(), "CJO_DEFAULT_TIER") {
		t.Fatalf("error should mention CJO_DEFAULT_TIER, got: %s", err.Error())
	}
}

func TestLoadRejectsHTTPAdapterWithoutURL(t *testing.T) {
	t.Setenv("CJO_LLM_ADAPTER", "http")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail when CJO_LLM_ADAPTER=http without a URL")
	}
	if !contains(err.Error(), "CJO_LLM_ADAPTER_URL") {
		t.Fatalf("error should mention CJO_LLM_ADAPTER_URL, got: %s", err.Error())
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchSubstring(s, substr)
}

func searchSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestLoad_JWTKeyPathValidation(t *testing.T) {
	bogusPath := "/tmp/cjo-test-nonexistent-key-file.pem"
	t.Setenv("CJO_JWT_PRIVATE_KEY", bogusPath)
	t.Setenv("CJO_JWT_PUBLIC_KEY", bogusPath)

	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail when CJO_JWT_PRIVATE_KEY points to a nonexistent file")
	}
	got := err.Error()
	if !contains(got, bogusPath) {
		t.Fatalf("error should mention the path %q, got: %s", bogusPath, got)
	}
	if !contains(got, "CJO_JWT_PRIVATE_KEY") {
		t.Fatalf("error should mention CJO_JWT_PRIVATE_KEY, got: %s", got)
	}
}

func TestLoad_OTELEndpointParsing(t *testing.T) {
	endpoint := "https://otel.example.com:4317"
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", endpoint)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}
	if cfg.OTELEndpoint != endpoint {
		t.Fatalf("expected OTELEndpoint %q, got %q", endpoint, cfg.OTELEndpoint)
	}
}

func TestLoad_TimeoutOrderingValidation(t *testing.T) {
	t.Setenv("CJO_DIM_SCORE_SOFT_TIMEOUT", "10s")
	t.Setenv("CJO_DIM_SCORE_HARD_TIMEOUT", "1s")

	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail when the hard timeout is below the soft timeout")
	}
	if !contains(err.Error(), "CJO_DIM_SCORE_HARD_TIMEOUT") {
		t.Fatalf("error should mention CJO_DIM_SCORE_HARD_TIMEOUT, got: %s", err.Error())
	}
}

func TestLoad_AllEnvVarsHonored(t *testing.T) {
	t.Setenv("CJO_PORT", "9090")
	t.Setenv("CJO_BUDGET_CAP", "250.5")
	t.Setenv("CJO_DEFAULT_TIER", "premium")
	t.Setenv("CJO_QSTATE_PATH", "/tmp/qstate.db")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/testdb")
	t.Setenv("CJO_JWT_EXPIRATION", "12h")
	t.Setenv("OTEL_SERVICE_NAME", "cjo-test")
	t.Setenv("CJO_LOG_LEVEL", "debug")
	t.Setenv("CJO_RATE_LIMIT_RPS", "50.5")
	t.Setenv("CJO_RATE_LIMIT_BURST", "100")
	t.Setenv("CJO_CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("CJO_WORKER_POOL_SIZE", "16")
	t.Setenv("CJO_ADMIN_API_KEY", "admin-secret")
	t.Setenv("CJO_CALLER_API_KEY", "caller-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}

	if cfg.Port != 9090 {
		t.Fatalf("expected Port 9090, got %d", cfg.Port)
	}
	if cfg.BudgetCap != 250.5 {
		t.Fatalf("expected BudgetCap 250.5, got %f", cfg.BudgetCap)
	}
	if cfg.DefaultTier != "premium" {
		t.Fatalf("expected DefaultTier premium, got %q", cfg.DefaultTier)
	}
	if cfg.QStatePath != "/tmp/qstate.db" {
		t.Fatalf("expected QStatePath /tmp/qstate.db, got %q", cfg.QStatePath)
	}
	if cfg.DatabaseURL != "postgres://test:test@db:5432/testdb" {
		t.Fatalf("expected DatabaseURL %q, got %q", "postgres://test:test@db:5432/testdb", cfg.DatabaseURL)
	}
	if cfg.JWTExpiration != 12*time.Hour {
		t.Fatalf("expected JWTExpiration 12h, got %s", cfg.JWTExpiration)
	}
	if cfg.ServiceName != "cjo-test" {
		t.Fatalf("expected ServiceName %q, got %q", "cjo-test", cfg.ServiceName)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected LogLevel %q, got %q", "debug", cfg.LogLevel)
	}
	if cfg.RateLimitRPS != 50.5 {
		t.Fatalf("expected RateLimitRPS 50.5, got %f", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 100 {
		t.Fatalf("expected RateLimitBurst 100, got %d", cfg.RateLimitBurst)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 CORS origins, got %d", len(cfg.CORSAllowedOrigins))
	}
	if cfg.CORSAllowedOrigins[0] != "https://a.example.com" {
		t.Fatalf("expected first CORS origin %q, got %q", "https://a.example.com", cfg.CORSAllowedOrigins[0])
	}
	if cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("expected second CORS origin %q, got %q", "https://b.example.com", cfg.CORSAllowedOrigins[1])
	}
	if cfg.WorkerPoolSize != 16 {
		t.Fatalf("expected WorkerPoolSize 16, got %d", cfg.WorkerPoolSize)
	}
	if cfg.AdminAPIKey != "admin-secret" {
		t.Fatalf("expected AdminAPIKey %q, got %q", "admin-secret", cfg.AdminAPIKey)
	}
	if cfg.CallerAPIKey != "caller-secret" {
		t.Fatalf("expected CallerAPIKey %q, got %q", "caller-secret", cfg.CallerAPIKey)
	}
}
