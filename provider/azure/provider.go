package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nevindra/catalyst"
)

const defaultAPIVersion = "2024-06-01"

// Provider implements catalyst.Provider against an Azure OpenAI
// deployment.
type Provider struct {
	apiKey     string
	endpoint   string
	deployment string
	apiVersion string
	client     *http.Client
	opts       []Option
}

// NewProvider creates an Azure OpenAI chat provider. endpoint is the
// resource URL (e.g. "https://myresource.openai.azure.com"); deployment
// is the model deployment name, also reported by ModelName.
func NewProvider(apiKey, endpoint, deployment string, opts ...ProviderOption) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		apiVersion: defaultAPIVersion,
		client:     &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns "azure".
func (p *Provider) Name() string { return "azure" }

// ModelName returns the deployment name.
func (p *Provider) ModelName() string { return p.deployment }

// EstimateTokens approximates the token count for text. Azure exposes
// no tokenizer endpoint, so this uses the shared length heuristic.
func (p *Provider) EstimateTokens(text string) int {
	return catalyst.ApproxTokens(text)
}

// Chat sends a chat completion request and returns the response.
func (p *Provider) Chat(ctx context.Context, req catalyst.ChatRequest) (catalyst.ChatResponse, error) {
	body := BuildBody(req, p.opts...)

	resp, err := p.sendHTTP(ctx, body)
	if err != nil {
		return catalyst.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return catalyst.ChatResponse{}, p.httpErr(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return catalyst.ChatResponse{}, &catalyst.ErrLLM{Provider: "azure", Message: fmt.Sprintf("decode response: %v", err)}
	}

	return ParseResponse(chatResp)
}

// sendHTTP marshals the request body and posts it to the deployment's
// chat completions endpoint.
func (p *Provider) sendHTTP(ctx context.Context, body ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &catalyst.ErrLLM{Provider: "azure", Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, p.deployment, p.apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &catalyst.ErrLLM{Provider: "azure", Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)

	return p.client.Do(httpReq)
}

// httpErr reads the response body and returns an ErrHTTP for retry
// middleware. Parses the Retry-After header when present.
func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &catalyst.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       string(body),
		RetryAfter: catalyst.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// Compile-time interface check.
var _ catalyst.Provider = (*Provider)(nil)
