package azure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nevindra/catalyst"
)

func TestProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/openai/deployments/gpt-4o/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != defaultAPIVersion {
			t.Errorf("unexpected api-version %q", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("unexpected api-key header: %s", r.Header.Get("api-key"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content-type: %s", r.Header.Get("Content-Type"))
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" {
			t.Errorf("expected system message first, got %s", req.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o",
			Choices: []Choice{{
				Index:   0,
				Message: &ChoiceMessage{Role: "assistant", Content: "Hello!"},
			}},
			Usage: &Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
		})
	}))
	defer srv.Close()

	p := NewProvider("test-key", srv.URL, "gpt-4o")

	resp, err := p.Chat(context.Background(), catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{
			catalyst.SystemMessage("You are helpful."),
			catalyst.UserMessage("Hi"),
		},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	if resp.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", resp.Content)
	}
	if resp.Usage.InputTokens != 5 {
		t.Errorf("expected 5 input tokens, got %d", resp.Usage.InputTokens)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("expected 7 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestProvider_Chat_JSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected response_format json_object, got %+v", req.ResponseFormat)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{
				Message: &ChoiceMessage{Role: "assistant", Content: `{"plan": []}`},
			}},
		})
	}))
	defer srv.Close()

	p := NewProvider("test-key", srv.URL, "gpt-4o")

	resp, err := p.Chat(context.Background(), catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{catalyst.UserMessage("Plan this")},
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if resp.Content != `{"plan": []}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
}

func TestProvider_Chat_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	p := NewProvider("test-key", srv.URL, "gpt-4o")

	_, err := p.Chat(context.Background(), catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{catalyst.UserMessage("Hi")},
	})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}

	httpErr, ok := err.(*catalyst.ErrHTTP)
	if !ok {
		t.Fatalf("expected *catalyst.ErrHTTP, got %T", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", httpErr.Status)
	}
	if httpErr.RetryAfter != 3*time.Second {
		t.Errorf("expected retry-after 3s, got %v", httpErr.RetryAfter)
	}
}

func TestProvider_Chat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{ID: "chatcmpl-2"})
	}))
	defer srv.Close()

	p := NewProvider("test-key", srv.URL, "gpt-4o")

	_, err := p.Chat(context.Background(), catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{catalyst.UserMessage("Hi")},
	})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if _, ok := err.(*catalyst.ErrLLM); !ok {
		t.Fatalf("expected *catalyst.ErrLLM, got %T", err)
	}
}

func TestProvider_WithOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("expected temperature 0.2, got %v", req.Temperature)
		}
		if req.MaxTokens != 2048 {
			t.Errorf("expected max_tokens 2048, got %d", req.MaxTokens)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{
				Message: &ChoiceMessage{Role: "assistant", Content: "OK"},
			}},
		})
	}))
	defer srv.Close()

	p := NewProvider("key", srv.URL, "gpt-4o",
		WithOptions(WithTemperature(0.2), WithMaxTokens(2048)),
	)

	_, err := p.Chat(context.Background(), catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{catalyst.UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
}

func TestProvider_ModelName(t *testing.T) {
	p := NewProvider("key", "https://example.openai.azure.com/", "my-deployment")
	if p.ModelName() != "my-deployment" {
		t.Errorf("expected my-deployment, got %q", p.ModelName())
	}
	if p.Name() != "azure" {
		t.Errorf("expected azure, got %q", p.Name())
	}
}

func TestBuildBody_TemperatureOmittedWhenZero(t *testing.T) {
	body := BuildBody(catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{catalyst.UserMessage("Hi")},
	})
	if body.Temperature != nil {
		t.Errorf("expected nil temperature, got %v", *body.Temperature)
	}
	if body.ResponseFormat != nil {
		t.Error("expected no response_format without JSON mode")
	}
}
