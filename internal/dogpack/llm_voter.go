package dogpack

import (
	"context"
	"fmt"
	"strings"

	"github.com/collective-judgment/cjo/internal/llmadapter"
	"github.com/collective-judgment/cjo/internal/model"
)

// LLMVoter asks an llmadapter.Adapter to judge a topic from a named dog's
// persona and parses its reply into a VoteInput. Each dog gets the same
// adapter but a distinct persona line in the prompt, matching the spec's
// model of eleven distinct perspectives over one shared generation path.
type LLMVoter struct {
	adapter   llmadapter.Adapter
	maxTokens int
	tier      string
	personas  map[model.DogName]string
}

func NewLLMVoter(adapter llmadapter.Adapter, tier string, maxTokens int) *LLMVoter {
	return &LLMVoter{adapter: adapter, maxTokens: maxTokens, tier: tier, personas: defaultPersonas()}
}

func defaultPersonas() map[model.DogName]string {
	personas := make(map[model.DogName]string, len(model.AllDogs))
	for _, name := range model.AllDogs {
		personas[name] = fmt.Sprintf("You are %s, weighing in with your specialty's lens.", name)
	}
	return personas
}

func (v *LLMVoter) Vote(ctx context.Context, dog model.DogName, topic string) (VoteInput, error) {
	prompt := fmt.Sprintf("%s\n\nTopic: %s\n\nReply with one of APPROVE, REJECT, or ABSTAIN, a 0-100 score, and a one-line reason.",
		v.personas[dog], topic)

	result, err := v.adapter.Generate(ctx, prompt, v.maxTokens, v.tier)
	if err != nil {
		return VoteInput{}, fmt.Errorf("dogpack: llm vote for %s: %w", dog, err)
	}

	return parseVote(result.Text), nil
}

func parseVote(text string) VoteInput {
	upper := strings.ToUpper(text)
	verdict := model.VoteAbstain
	switch {
	case strings.Contains(upper, "APPROVE"):
		verdict = model.VoteApprove
	case strings.Contains(upper, "REJECT"):
		verdict = model.VoteReject
	}

	score := 50.0
	if v, err := parseLeadingNumber(text); err == nil {
		score = v
	}

	return VoteInput{Verdict: verdict, Score: score, Reasoning: strings.TrimSpace(text)}
}

func parseLeadingNumber(text string) (float64, error) {
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
	if token.Len() == 0 {
		return 0, fmt.Errorf("no numeric score found")
	}
	var v float64
	if _, err := fmt.Sscanf(token.String(), "%f", &v); err != nil {
		return 0, err
	}
	if v > 100 {
		v = 100
	}
	return v, nil
}
