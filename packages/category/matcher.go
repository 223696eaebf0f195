package category

import (
	"context"
	"fmt"
	"strings"

	"harvester/packages/jsonfix"
	"harvester/packages/llm"
)

// SemanticMatcher resolves a free-text label to one of the candidate names,
// or reports an explicit no-match. Implementations must never invent a name
// outside the candidate list.
type SemanticMatcher interface {
	Match(ctx context.Context, label string, candidates []string) (string, bool, error)
}

const matcherSystemPrompt = "You map a product category label to the single " +
	"best semantic match from a fixed list of known categories. Respond with a " +
	"JSON object {\"match\": \"<name from the list>\"} or {\"match\": null} if " +
	"none of them fits. Never answer with a name that is not in the list."

// AIMatcher implements SemanticMatcher over the shared LLM client.
type AIMatcher struct {
	client *llm.Client
}

func NewAIMatcher(client *llm.Client) *AIMatcher {
	if client == nil || !client.Configured() {
		return nil
	}
	return &AIMatcher{client: client}
}

func (m *AIMatcher) Match(ctx context.Context, label string, candidates []string) (string, bool, error) {
	prompt := fmt.Sprintf("Label: %q\n\nKnown categories:\n- %s", label, strings.Join(candidates, "\n- "))

	raw, err := m.client.Complete(ctx, matcherSystemPrompt, prompt)
	if err != nil {
		return "", false, fmt.Errorf("semantic match call: %w", err)
	}

	var parsed struct {
		Match *string `json:"match"`
	}
	if err := jsonfix.Default.Unmarshal(raw, &parsed); err != nil {
		return "", false, fmt.Errorf("semantic match parse: %w", err)
	}
	if parsed.Match == nil || *parsed.Match == "" {
		return "", false, nil
	}

	// Guard against fabricated names: accept only exact candidates.
	for _, candidate := range candidates {
		if strings.EqualFold(strings.TrimSpace(*parsed.Match), candidate) {
			return candidate, true, nil
		}
	}
	return "", false, nil
}
