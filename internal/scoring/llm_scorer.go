package scoring

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/collective-judgment/cjo/internal/llmadapter"
	"github.com/collective-judgment/cjo/internal/model"
)

// LLMScorer scores a dimension by asking an llmadapter.Adapter to judge the
// item against that dimension's prompt and parsing a 0-100 score back out
// of its response. It has no fallback: an adapter error or a response with
// no number is returned as an error, and Engine's per-dimension retry calls
// this same scorer again before marking the dimension null.
type LLMScorer struct {
	adapter   llmadapter.Adapter
	maxTokens int
	tier      string
	version   string
}

func NewLLMScorer(adapter llmadapter.Adapter, tier string, maxTokens int) *LLMScorer {
	return &LLMScorer{adapter: adapter, maxTokens: maxTokens, tier: tier, version: "llm-v1"}
}

func (s *LLMScorer) Score(ctx context.Context, item model.Item, class model.Classification, dimension string) (model.DimensionScore, error) {
	prompt := fmt.Sprintf(
		"Score the %s dimension (0-100) for this %s item in domain %q, intent %q.\n\n%s",
		dimension, item.Kind, class.Domain, class.Intent, item.Body,
	)

	result, err := s.adapter.Generate(ctx, prompt, s.maxTokens, s.tier)
	if err != nil {
		return model.DimensionScore{}, fmt.Errorf("scoring: llm generate for %s: %w", dimension, err)
	}

	score, err := parseScore(result.Text)
	if err != nil {
		return model.DimensionScore{}, fmt.Errorf("scoring: parse score for %s: %w", dimension, err)
	}

	return model.DimensionScore{DimensionName: dimension, Score: score, ScorerVersion: s.version}, nil
}

// parseScore extracts the first decimal number in text and clamps it to
// [0, 100]. LLM responses are free text; this is deliberately lenient
// rather than requiring strict JSON, since the prompt only asks for a
// number, not a schema.
func parseScore(text string) (float64, error) {
	var token strings.Builder
	for _, r := range text {
		isDigit := (r >= '0' && r <= '9') || r == '.'
		if isDigit {
			token.WriteRune(r)
			continue
		}
		if token.Len() > 0 {
			break
		}
	}

	raw := token.String()
	if raw == "" {
		return 0, fmt.Errorf("no numeric score found in %q", text)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric score %q: %w", raw, err)
	}
	if v > 100 {
		v = 100
	}
	if v < 0 {
		v = 0
	}
	return v, nil
}
