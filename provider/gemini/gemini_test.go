package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nevindra/catalyst"
)

// testGemini returns a Gemini instance with default config for testing buildBody.
func testGemini() *Gemini {
	return New("test-key", "test-model")
}

func TestBuildBody_SystemMessages(t *testing.T) {
	g := testGemini()
	body := g.buildBody(catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "system", Content: "Be concise."},
			{Role: "user", Content: "Hello"},
		},
	})

	// System messages should be extracted to systemInstruction.
	si, ok := body["systemInstruction"].(map[string]any)
	if !ok {
		t.Fatal("expected systemInstruction in body")
	}
	parts, ok := si["parts"].([]map[string]any)
	if !ok || len(parts) != 1 {
		t.Fatal("expected exactly 1 systemInstruction part")
	}
	text, ok := parts[0]["text"].(string)
	if !ok {
		t.Fatal("expected text field in systemInstruction part")
	}
	if text != "You are a helpful assistant.\n\nBe concise." {
		t.Errorf("unexpected system text: %q", text)
	}

	// Contents should only have the user message (no system messages).
	contents, ok := body["contents"].([]map[string]any)
	if !ok {
		t.Fatal("expected contents array in body")
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content entry (user only), got %d", len(contents))
	}
	if contents[0]["role"] != "user" {
		t.Errorf("expected role 'user', got %q", contents[0]["role"])
	}
}

func TestBuildBody_AssistantMapsToModel(t *testing.T) {
	g := testGemini()
	body := g.buildBody(catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{
			{Role: "user", Content: "Hi"},
			{Role: "assistant", Content: "Hello!"},
			{Role: "user", Content: "How are you?"},
		},
	})

	contents := body["contents"].([]map[string]any)
	if len(contents) != 3 {
		t.Fatalf("expected 3 content entries, got %d", len(contents))
	}

	// Second message (assistant) should be mapped to "model".
	if contents[1]["role"] != "model" {
		t.Errorf("expected assistant role mapped to 'model', got %q", contents[1]["role"])
	}
	if contents[0]["role"] != "user" {
		t.Errorf("expected first role 'user', got %q", contents[0]["role"])
	}
}

func TestBuildBody_GenerationConfig(t *testing.T) {
	g := testGemini()
	body := g.buildBody(catalyst.ChatRequest{
		Messages:    []catalyst.ChatMessage{{Role: "user", Content: "Hi"}},
		Temperature: 0.7,
		MaxTokens:   500,
	})

	genConfig, ok := body["generationConfig"].(map[string]any)
	if !ok {
		t.Fatal("expected generationConfig in body")
	}
	if genConfig["temperature"] != 0.7 {
		t.Errorf("expected request temperature 0.7, got %v", genConfig["temperature"])
	}
	if genConfig["topP"] != 0.9 {
		t.Errorf("expected topP 0.9, got %v", genConfig["topP"])
	}
	if genConfig["maxOutputTokens"] != 500 {
		t.Errorf("expected maxOutputTokens 500, got %v", genConfig["maxOutputTokens"])
	}
	if _, ok := genConfig["responseMimeType"]; ok {
		t.Error("expected no responseMimeType without JSON mode")
	}
}

func TestBuildBody_JSONMode(t *testing.T) {
	g := testGemini()
	body := g.buildBody(catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{{Role: "user", Content: "Plan this"}},
		JSONMode: true,
	})

	genConfig := body["generationConfig"].(map[string]any)
	if genConfig["responseMimeType"] != "application/json" {
		t.Errorf("expected responseMimeType application/json, got %v", genConfig["responseMimeType"])
	}
}

func TestBuildBody_DefaultTemperature(t *testing.T) {
	g := New("key", "model", WithTemperature(0.3))
	body := g.buildBody(catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{{Role: "user", Content: "Hi"}},
	})

	genConfig := body["generationConfig"].(map[string]any)
	if genConfig["temperature"] != 0.3 {
		t.Errorf("expected provider temperature 0.3, got %v", genConfig["temperature"])
	}
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/test-model:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("unexpected key %q", r.URL.Query().Get("key"))
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if _, ok := body["contents"]; !ok {
			t.Error("expected contents in request body")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "Hello "}, {"text": "there!"}], "role": "model"}}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 3, "totalTokenCount": 7}
		}`))
	}))
	defer server.Close()

	origBaseURL := baseURL
	defer func() { baseURL = origBaseURL }()
	baseURL = server.URL

	g := testGemini()
	resp, err := g.Chat(context.Background(), catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{catalyst.UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	if resp.Content != "Hello there!" {
		t.Errorf("expected concatenated parts 'Hello there!', got %q", resp.Content)
	}
	if resp.Usage.InputTokens != 4 {
		t.Errorf("expected 4 input tokens, got %d", resp.Usage.InputTokens)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("expected 7 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestChat_SkipsThoughtParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [
				{"text": "internal reasoning", "thought": true},
				{"text": "Final answer"}
			], "role": "model"}}]
		}`))
	}))
	defer server.Close()

	origBaseURL := baseURL
	defer func() { baseURL = origBaseURL }()
	baseURL = server.URL

	g := testGemini()
	resp, err := g.Chat(context.Background(), catalyst.ChatRequest{
		Messages: []catalyst.ChatMessage{catalyst.UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if resp.Content != "Final answer" {
		t.Errorf("expected thought parts skipped, got %q", resp.Content)
	}
}

func TestChat_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{
			"error": {
				"code": 429,
				"details": [
					{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "30s"}
				]
			}
		}`))
	}))
	defer server.Close()

	origBaseURL := baseURL
	defer func() { baseURL = origBaseURL }()
	baseURL = server.URL

	g := testGemini()
	_, err := g.Chat(context.Background(), catalyst.ChatRequest{
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
	if httpErr.RetryAfter != 30*time.Second {
		t.Errorf("expected retry-after 30s from RetryInfo detail, got %v", httpErr.RetryAfter)
	}
}

func TestParseRetryInfo(t *testing.T) {
	body := `{"error": {"details": [{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "2.5s"}]}}`
	if d := parseRetryInfo(body); d != 2500*time.Millisecond {
		t.Errorf("expected 2.5s, got %v", d)
	}
	if d := parseRetryInfo("not json"); d != 0 {
		t.Errorf("expected 0 for invalid body, got %v", d)
	}
	if d := parseRetryInfo(`{"error": {"details": []}}`); d != 0 {
		t.Errorf("expected 0 for missing detail, got %v", d)
	}
}

func TestName(t *testing.T) {
	g := testGemini()
	if g.Name() != "gemini" {
		t.Errorf("expected gemini, got %q", g.Name())
	}
	if g.ModelName() != "test-model" {
		t.Errorf("expected test-model, got %q", g.ModelName())
	}
}
