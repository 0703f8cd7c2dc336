// Package web serves the catalyst chat API over HTTP: a JSON chat
// endpoint, an SSE stream of agent events, and introspection routes
// for the model and tool catalog.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nevindra/catalyst"
)

// Agent is the slice of the agent surface the server needs. Both
// *catalyst.Agent and *observer.ObservedAgent satisfy it.
type Agent interface {
	ProcessMessage(ctx context.Context, message string, opts ...catalyst.ProcessOption) (string, error)
	ModelName() string
	Registry() *catalyst.Registry
}

const (
	maxRequestBodyBytes = 1 << 20 // 1MB

	// Texts returned when the agent yields nothing or fails outright.
	emptyResponseText = "I processed your message but couldn't generate a response."
	errorResponseText = "I'm having trouble processing your request right now."
)

//go:embed static/index.html
var indexHTML []byte

// Server exposes an Agent over HTTP.
type Server struct {
	agent  Agent
	bus    *catalyst.Bus
	logger *slog.Logger

	heartbeat time.Duration
	finalWait time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. If not set, a no-op logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHeartbeat sets the interval between SSE comment lines written to
// keep idle stream connections alive (default 15s).
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// New creates a Server streaming events from bus. The bus must be the
// one the agent publishes to; the stream endpoint drains it, so it
// supports one concurrent streaming client.
func New(agent Agent, bus *catalyst.Bus, opts ...Option) *Server {
	s := &Server{
		agent:     agent,
		bus:       bus,
		heartbeat: 15 * time.Second,
		finalWait: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = nopLogger
	}
	return s
}

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Handler returns the route mux for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/chat/stream", s.handleChatStream)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/tools", s.handleTools)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// chatRequest is the parsed body of the chat endpoints.
type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse is the JSON body returned by POST /api/chat.
type chatResponse struct {
	ID        string `json:"id"`
	Response  string `json:"response"`
	HTML      string `json:"html"`
	Timestamp int64  `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	response, err := s.agent.ProcessMessage(r.Context(), req.Message)
	if err != nil {
		s.logger.Error("process message failed", "error", err)
		response = errorResponseText
	} else if strings.TrimSpace(response) == "" {
		response = emptyResponseText
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ID:        catalyst.NewID(),
		Response:  response,
		HTML:      RenderHTML(response),
		Timestamp: catalyst.NowUnix(),
	})
}

// processResult carries the outcome of a ProcessMessage call across the
// stream goroutine boundary.
type processResult struct {
	response string
	err      error
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	catalyst.SSEHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := s.bus.Subscribe(ctx)

	done := make(chan processResult, 1)
	go func() {
		resp, err := s.agent.ProcessMessage(ctx, req.Message)
		done <- processResult{response: resp, err: err}
	}()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	// The agent publishes final_solution before ProcessMessage returns,
	// so after done fires the event is already on the bus or it is never
	// coming. finalWait bounds the drain; past it a final event is
	// synthesized from the call result.
	var res processResult
	var deadline <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, chOpen := <-events:
			if !chOpen {
				return
			}
			if err := catalyst.WriteSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Type == catalyst.EventFinalSolution {
				return
			}
		case res = <-done:
			done = nil
			deadline = time.After(s.finalWait)
		case <-deadline:
			s.writeFinalFallback(w, flusher, res)
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeFinalFallback emits a final_solution event for agents that
// finished without publishing one (guard halts, hard failures).
func (s *Server) writeFinalFallback(w io.Writer, flusher http.Flusher, res processResult) {
	text := res.response
	if res.err != nil {
		s.logger.Error("process message failed", "error", res.err)
		text = errorResponseText
	} else if strings.TrimSpace(text) == "" {
		text = emptyResponseText
	}
	ev := catalyst.NewEvent(catalyst.EventFinalSolution, map[string]any{"solution": text}, nil)
	if err := catalyst.WriteSSE(w, ev); err != nil {
		return
	}
	flusher.Flush()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"model":  s.agent.ModelName(),
		"tools":  len(s.agent.Registry().Names()),
	})
}

// toolInfo is one entry of the GET /api/tools catalog.
type toolInfo struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Params      []catalyst.Param `json:"params"`
	Example     string           `json:"example,omitempty"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tools := s.agent.Registry().Tools()
	infos := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		schema := t.Schema()
		infos = append(infos, toolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Params:      schema.Params,
			Example:     schema.Example,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": infos})
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return chatRequest{}, false
	}
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return chatRequest{}, false
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return chatRequest{}, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
