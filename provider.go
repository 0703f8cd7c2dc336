package catalyst

import "context"

// Provider is the interface all language model backends implement.
type Provider interface {
	// Name returns a short provider identifier (e.g. "azure", "gemini").
	Name() string

	// ModelName returns the configured model or deployment name.
	ModelName() string

	// Chat sends a chat completion request and returns the complete
	// response. When req.JSONMode is set, providers that support it
	// constrain output to a single JSON object.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// EstimateTokens returns an approximate token count for text.
	// Estimates are heuristic; callers use them for budgeting only.
	EstimateTokens(text string) int
}

// ApproxTokens estimates tokens as one per four characters, rounded up.
// Providers without a native tokenizer use this.
func ApproxTokens(text string) int {
	return (len(text) + 3) / 4
}
