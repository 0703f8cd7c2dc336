package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nevindra/catalyst"
)

// fakeAgent implements the Agent interface with scripted behavior.
type fakeAgent struct {
	response     string
	err          error
	delay        time.Duration
	publishFinal bool

	bus      *catalyst.Bus
	registry *catalyst.Registry

	gotMessage string
}

func (f *fakeAgent) ProcessMessage(_ context.Context, message string, _ ...catalyst.ProcessOption) (string, error) {
	f.gotMessage = message
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	if f.publishFinal {
		f.bus.PublishFinalSolution(f.response)
	}
	return f.response, nil
}

func (f *fakeAgent) ModelName() string            { return "test-model" }
func (f *fakeAgent) Registry() *catalyst.Registry { return f.registry }

// echoTool is a minimal tool for catalog tests.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes its input back." }
func (echoTool) Schema() catalyst.Schema {
	return catalyst.Schema{
		Params:  []catalyst.Param{{Name: "text", Type: "string", Description: "Text to echo.", Required: true}},
		Example: `echo(text="hi")`,
	}
}
func (echoTool) Execute(_ context.Context, args map[string]any) (any, error) {
	return args["text"], nil
}

func newTestServer(t *testing.T, agent *fakeAgent, opts ...Option) *httptest.Server {
	t.Helper()
	if agent.bus == nil {
		agent.bus = catalyst.NewBus()
	}
	if agent.registry == nil {
		agent.registry = catalyst.NewRegistry()
	}
	srv := New(agent, agent.bus, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestChat(t *testing.T) {
	agent := &fakeAgent{response: "The answer is **42**."}
	ts := newTestServer(t, agent)

	resp := postJSON(t, ts.URL+"/api/chat", map[string]string{"message": "what is the answer?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out chatResponse
	decodeBody(t, resp, &out)
	if out.Response != "The answer is **42**." {
		t.Errorf("unexpected response %q", out.Response)
	}
	if !strings.Contains(out.HTML, "<strong>42</strong>") {
		t.Errorf("expected rendered markdown in html, got %q", out.HTML)
	}
	if out.ID == "" || out.Timestamp == 0 {
		t.Errorf("expected id and timestamp to be set, got %+v", out)
	}
	if agent.gotMessage != "what is the answer?" {
		t.Errorf("agent received %q", agent.gotMessage)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{})

	resp := postJSON(t, ts.URL+"/api/chat", map[string]string{"message": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var out map[string]string
	decodeBody(t, resp, &out)
	if out["error"] != "message is required" {
		t.Errorf("unexpected error %q", out["error"])
	}
}

func TestChatInvalidJSON(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{})

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{})

	resp, err := http.Get(ts.URL + "/api/chat")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestChatAgentError(t *testing.T) {
	agent := &fakeAgent{err: errors.New("provider down")}
	ts := newTestServer(t, agent)

	resp := postJSON(t, ts.URL+"/api/chat", map[string]string{"message": "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out chatResponse
	decodeBody(t, resp, &out)
	if out.Response != errorResponseText {
		t.Errorf("expected error fallback, got %q", out.Response)
	}
}

func TestChatEmptyResponse(t *testing.T) {
	agent := &fakeAgent{response: "  "}
	ts := newTestServer(t, agent)

	resp := postJSON(t, ts.URL+"/api/chat", map[string]string{"message": "hi"})
	var out chatResponse
	decodeBody(t, resp, &out)
	if out.Response != emptyResponseText {
		t.Errorf("expected empty fallback, got %q", out.Response)
	}
}

func TestStatus(t *testing.T) {
	agent := &fakeAgent{registry: catalyst.NewRegistry()}
	agent.registry.Register(echoTool{})
	ts := newTestServer(t, agent)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
		Model  string `json:"model"`
		Tools  int    `json:"tools"`
	}
	decodeBody(t, resp, &out)
	if out.Status != "ok" {
		t.Errorf("expected ok, got %q", out.Status)
	}
	if out.Model != "test-model" {
		t.Errorf("expected test-model, got %q", out.Model)
	}
	if out.Tools != 1 {
		t.Errorf("expected 1 tool, got %d", out.Tools)
	}
}

func TestTools(t *testing.T) {
	agent := &fakeAgent{registry: catalyst.NewRegistry()}
	agent.registry.Register(echoTool{})
	ts := newTestServer(t, agent)

	resp, err := http.Get(ts.URL + "/api/tools")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Tools []toolInfo `json:"tools"`
	}
	decodeBody(t, resp, &out)
	if len(out.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out.Tools))
	}
	tool := out.Tools[0]
	if tool.Name != "echo" {
		t.Errorf("expected echo, got %q", tool.Name)
	}
	if len(tool.Params) != 1 || tool.Params[0].Name != "text" || !tool.Params[0].Required {
		t.Errorf("unexpected params %+v", tool.Params)
	}
}

// readSSE reads the full stream body and parses data frames into events.
// Comment lines are returned separately.
func readSSE(t *testing.T, body io.Reader) ([]catalyst.Event, []string) {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	var events []catalyst.Event
	var comments []string
	for _, frame := range strings.Split(string(raw), "\n\n") {
		frame = strings.TrimSpace(frame)
		switch {
		case frame == "":
		case strings.HasPrefix(frame, ":"):
			comments = append(comments, frame)
		case strings.HasPrefix(frame, "data: "):
			var ev catalyst.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev); err != nil {
				t.Fatalf("unmarshal frame %q: %v", frame, err)
			}
			events = append(events, ev)
		default:
			t.Fatalf("unexpected frame %q", frame)
		}
	}
	return events, comments
}

func TestStream(t *testing.T) {
	bus := catalyst.NewBus()
	agent := &fakeAgent{response: "done", publishFinal: true, bus: bus}
	ts := newTestServer(t, agent)

	// Pre-seed an event so the stream carries more than the final solution.
	bus.PublishToolInput("calculator", map[string]any{"a": 1}, nil)

	resp := postJSON(t, ts.URL+"/api/chat/stream", map[string]string{"message": "add"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	events, _ := readSSE(t, resp.Body)
	if len(events) < 2 {
		t.Fatalf("expected at least 2 events, got %d", len(events))
	}
	if events[0].Type != catalyst.EventToolInput {
		t.Errorf("expected tool_input first, got %s", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != catalyst.EventFinalSolution {
		t.Fatalf("expected final_solution last, got %s", last.Type)
	}
	if last.Data["solution"] != "done" {
		t.Errorf("unexpected solution %v", last.Data["solution"])
	}
}

func TestStreamSynthesizesFinal(t *testing.T) {
	// Agent that never publishes a final_solution event.
	agent := &fakeAgent{response: "plain answer"}
	ts := newTestServer(t, agent)

	resp := postJSON(t, ts.URL+"/api/chat/stream", map[string]string{"message": "hi"})
	events, _ := readSSE(t, resp.Body)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != catalyst.EventFinalSolution {
		t.Errorf("expected final_solution, got %s", events[0].Type)
	}
	if events[0].Data["solution"] != "plain answer" {
		t.Errorf("unexpected solution %v", events[0].Data["solution"])
	}
}

func TestStreamAgentError(t *testing.T) {
	agent := &fakeAgent{err: errors.New("boom")}
	ts := newTestServer(t, agent)

	resp := postJSON(t, ts.URL+"/api/chat/stream", map[string]string{"message": "hi"})
	events, _ := readSSE(t, resp.Body)
	if len(events) != 1 || events[0].Type != catalyst.EventFinalSolution {
		t.Fatalf("expected a single synthesized final event, got %v", events)
	}
	if events[0].Data["solution"] != errorResponseText {
		t.Errorf("expected error fallback, got %v", events[0].Data["solution"])
	}
}

func TestStreamHeartbeat(t *testing.T) {
	bus := catalyst.NewBus()
	agent := &fakeAgent{response: "slow", publishFinal: true, bus: bus, delay: 250 * time.Millisecond}
	ts := newTestServer(t, agent, WithHeartbeat(50*time.Millisecond))

	resp := postJSON(t, ts.URL+"/api/chat/stream", map[string]string{"message": "hi"})
	_, comments := readSSE(t, resp.Body)
	if len(comments) == 0 {
		t.Error("expected keep-alive comments during idle stream")
	}
}

func TestStreamEmptyMessage(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{})

	resp := postJSON(t, ts.URL+"/api/chat/stream", map[string]string{"message": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<title>Catalyst Chat</title>") {
		t.Error("expected chat page body")
	}

	notFound, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	defer notFound.Body.Close()
	if notFound.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", notFound.StatusCode)
	}
}

func TestRenderHTML(t *testing.T) {
	html := RenderHTML("**bold** and ~~gone~~ and [link](https://example.com)")
	for _, want := range []string{"<strong>bold</strong>", "<del>gone</del>", `<a href="https://example.com">link</a>`} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in %q", want, html)
		}
	}
}

func TestRenderHTMLEscapesRawHTML(t *testing.T) {
	html := RenderHTML(`hello <script>alert(1)</script>`)
	if strings.Contains(html, "<script>") {
		t.Errorf("raw HTML should not pass through, got %q", html)
	}
}
