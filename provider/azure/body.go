package azure

import "github.com/nevindra/catalyst"

// BuildBody converts a catalyst ChatRequest into the Azure OpenAI wire
// format. JSONMode maps to response_format {"type": "json_object"}.
// Options are applied last and override request values.
func BuildBody(req catalyst.ChatRequest, opts ...Option) ChatRequest {
	msgs := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}

	body := ChatRequest{Messages: msgs}
	if req.Temperature != 0 {
		t := req.Temperature
		body.Temperature = &t
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.JSONMode {
		body.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	for _, opt := range opts {
		opt(&body)
	}
	return body
}
