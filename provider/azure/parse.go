package azure

import "github.com/nevindra/catalyst"

// ParseResponse converts an Azure wire response into a catalyst
// ChatResponse, extracting content and usage from choices[0].
func ParseResponse(resp ChatResponse) (catalyst.ChatResponse, error) {
	var out catalyst.ChatResponse
	out.Model = resp.Model

	if len(resp.Choices) == 0 {
		return out, &catalyst.ErrLLM{Provider: "azure", Message: "response has no choices"}
	}

	choice := resp.Choices[0]
	if choice.Message != nil {
		out.Content = choice.Message.Content
	}

	if resp.Usage != nil {
		out.Usage = catalyst.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return out, nil
}
