package catalyst

import (
	"context"
	"fmt"
	"regexp"
	"sync"
)

// --- Provider doubles (shared across orchestrator, engine, and agent tests) ---

// scriptProvider is a test Provider that replays canned turns in order and
// records every request it receives. Calls past the end of the script fail
// loudly, so a test that scripts too few turns surfaces the extra call
// instead of silently looping.
type scriptProvider struct {
	mu       sync.Mutex
	script   []scriptTurn
	requests []ChatRequest
}

type scriptTurn struct {
	content string
	err     error
}

func say(content string) scriptTurn { return scriptTurn{content: content} }
func fail(err error) scriptTurn     { return scriptTurn{err: err} }

func newScriptProvider(turns ...scriptTurn) *scriptProvider {
	return &scriptProvider{script: turns}
}

func (p *scriptProvider) Name() string                   { return "script" }
func (p *scriptProvider) ModelName() string              { return "script-model" }
func (p *scriptProvider) EstimateTokens(text string) int { return ApproxTokens(text) }

func (p *scriptProvider) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	i := len(p.requests) - 1
	if i >= len(p.script) {
		return ChatResponse{}, fmt.Errorf("script exhausted: call %d beyond %d scripted turns", i+1, len(p.script))
	}
	turn := p.script[i]
	if turn.err != nil {
		return ChatResponse{}, turn.err
	}
	return ChatResponse{Content: turn.content, Model: "script-model"}, nil
}

// calls returns how many requests the provider has received.
func (p *scriptProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// request returns the i-th captured request, or a zero request when out of
// range.
func (p *scriptProvider) request(i int) ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.requests) {
		return ChatRequest{}
	}
	return p.requests[i]
}

// userPrompt returns the user message content of the i-th captured request.
func (p *scriptProvider) userPrompt(i int) string {
	for _, m := range p.request(i).Messages {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

var _ Provider = (*scriptProvider)(nil)

// --- Tool doubles ---

// fakeTool is a configurable Tool. Execute records the arguments of every
// call; fn, when set, computes the result.
type fakeTool struct {
	name   string
	desc   string
	schema Schema
	fn     func(ctx context.Context, args map[string]any) (any, error)

	mu    sync.Mutex
	calls []map[string]any
}

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Description() string {
	if f.desc == "" {
		return "fake tool"
	}
	return f.desc
}

func (f *fakeTool) Schema() Schema { return f.schema }

func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	// The recorded args are a snapshot taken at call time.
	snapshot := make(map[string]any, len(args))
	for k, v := range args {
		snapshot[k] = v
	}
	f.mu.Lock()
	f.calls = append(f.calls, snapshot)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, args)
	}
	return "ok", nil
}

func (f *fakeTool) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// call returns the arguments of the i-th recorded call, or nil.
func (f *fakeTool) call(i int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.calls) {
		return nil
	}
	return f.calls[i]
}

var _ Tool = (*fakeTool)(nil)

// installerTool mimics the package installer in tools/code: it publishes a
// recovery rule that proposes installing the module named in a Python
// import failure.
type installerTool struct {
	fakeTool
}

func newInstallerTool() *installerTool {
	t := &installerTool{}
	t.name = "package_installer"
	return t
}

var missingModulePattern = regexp.MustCompile(`No module named '([^']+)'`)

func (t *installerTool) RecoveryRules() []RecoveryRule {
	return []RecoveryRule{{
		Pattern: "No module named",
		Recoverer: ErrorRecovererFunc(func(_ *PlanStep, execErr error) *PlanStep {
			m := missingModulePattern.FindStringSubmatch(execErr.Error())
			if m == nil {
				return nil
			}
			return NewStep("Install missing package "+m[1], "package_installer", map[string]any{"package": m[1]})
		}),
	}}
}

var _ RecoveryProvider = (*installerTool)(nil)

// --- Store doubles ---

// memStore is an in-memory LongTermStore. The error fields, when set,
// force the corresponding method to fail.
type memStore struct {
	mu       sync.Mutex
	entries  []Entry
	putErr   error
	allErr   error
	clearErr error
	cleared  bool
}

func (s *memStore) Put(_ context.Context, entry Entry) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == entry.ID {
			s.entries[i] = entry
			return nil
		}
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) All(_ context.Context) ([]Entry, error) {
	if s.allErr != nil {
		return nil, s.allErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *memStore) Clear(_ context.Context) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.cleared = true
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ LongTermStore = (*memStore)(nil)
