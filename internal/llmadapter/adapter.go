// Package llmadapter defines the generation interface the Judgment Engine's
// scorers and the Dog Pack's voters consume to reach an LLM, plus a noop
// fallback and a generic HTTP-backed implementation.
package llmadapter

import "context"

// Result is one generation call's outcome: the adapter observes its own
// token usage and cost so the Router and Cost Ledger can forecast against
// real numbers instead of estimates.
type Result struct {
	Text      string
	TokensIn  int
	TokensOut int
	Cost      float64
}

// Adapter generates text from a prompt at a requested tier. Adapters may
// time out, rate-limit, or silently downgrade tier; callers observe the
// returned cost to update their forecasts, they never inspect which tier
// actually served the request.
type Adapter interface {
	Generate(ctx context.Context, prompt string, maxTokens int, tier string) (Result, error)
}

// Select returns the configured Adapter for name ("noop" or "http").
// Unknown names fall back to Noop rather than failing construction --
// degraded mode must always have something to score with.
func Select(name, httpURL string) Adapter {
	if name == "http" && httpURL != "" {
		return NewHTTPAdapter(httpURL)
	}
	return NewNoop()
}
