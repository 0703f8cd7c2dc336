package catalyst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Param describes one tool parameter for prompt rendering and validation.
type Param struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Allowed     []string `json:"allowed_values,omitempty"`
}

// Schema describes a tool's parameters. Params keep declaration order so
// prompt text is stable across runs.
type Schema struct {
	Params  []Param `json:"params"`
	Example string  `json:"example,omitempty"`
}

// Tool is an agent capability the planner can schedule.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ErrorRecoverer proposes a recovery step for a failed tool execution.
// A nil return means recovery is not possible for this failure.
type ErrorRecoverer interface {
	Recover(failed *PlanStep, execErr error) *PlanStep
}

// ErrorRecovererFunc adapts a function to the ErrorRecoverer interface.
type ErrorRecovererFunc func(failed *PlanStep, execErr error) *PlanStep

// Recover calls f.
func (f ErrorRecovererFunc) Recover(failed *PlanStep, execErr error) *PlanStep {
	return f(failed, execErr)
}

var _ ErrorRecoverer = (ErrorRecovererFunc)(nil)

// RecoveryRule pairs an error substring pattern with the recoverer
// consulted when a failure matches it.
type RecoveryRule struct {
	Pattern   string
	Recoverer ErrorRecoverer
}

// RecoveryProvider is implemented by tools that publish recovery rules
// for failures they know how to remedy. Rules are registered alongside
// the tool.
type RecoveryProvider interface {
	RecoveryRules() []RecoveryRule
}

// PreExecutor is implemented by tools that validate or transform
// arguments before Execute runs.
type PreExecutor interface {
	PreExecute(ctx context.Context, args map[string]any) (map[string]any, error)
}

// PostExecutor is implemented by tools that transform results after
// Execute returns.
type PostExecutor interface {
	PostExecute(ctx context.Context, result any) (any, error)
}

type recoveryHandler struct {
	pattern   string
	recoverer ErrorRecoverer
}

// Registry holds registered tools, dispatches execution with event
// emission, and matches failed executions to recovery handlers.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	order    []string
	handlers []recoveryHandler
	bus      *Bus
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// RegistryBus attaches an event bus. Execute publishes tool events to it.
func RegistryBus(bus *Bus) RegistryOption {
	return func(r *Registry) { r.bus = bus }
}

// RegistryLogger sets the structured logger.
func RegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty tool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = nopLogger
	}
	return r
}

// Register adds a tool. Registering a name again replaces the previous
// tool but keeps its position in listing order. Tools implementing
// RecoveryProvider have their rules registered as well.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
	if rp, ok := t.(RecoveryProvider); ok {
		for _, rule := range rp.RecoveryRules() {
			r.handlers = append(r.handlers, recoveryHandler{pattern: rule.Pattern, recoverer: rule.Recoverer})
		}
	}
	r.logger.Debug("tool registered", "tool", name)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Tools returns registered tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Describe renders every registered tool as prompt text: name,
// description, parameters with required markers and allowed values, and
// a usage example when the schema provides one.
func (r *Registry) Describe() string {
	tools := r.Tools()
	if len(tools) == 0 {
		return "No tools available."
	}
	blocks := make([]string, 0, len(tools))
	for _, t := range tools {
		var b strings.Builder
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
		schema := t.Schema()
		if len(schema.Params) > 0 {
			b.WriteString("  Parameters:\n")
			for _, p := range schema.Params {
				requirement := "optional"
				if p.Required {
					requirement = "REQUIRED"
				}
				fmt.Fprintf(&b, "    - %s (%s): %s\n", p.Name, requirement, p.Description)
				if len(p.Allowed) > 0 {
					fmt.Fprintf(&b, "      Allowed values: %s\n", strings.Join(p.Allowed, ", "))
				}
			}
		}
		if schema.Example != "" {
			fmt.Fprintf(&b, "  Example: %s\n", schema.Example)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// Execute runs the named tool. It publishes a tool_input event before
// execution and a tool_output event after; failures additionally publish
// a tool_error event. Tool panics are converted to errors.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	if r.bus != nil {
		r.bus.PublishToolInput(name, args, nil)
	}

	tool, ok := r.Get(name)
	if !ok {
		err := fmt.Errorf("unknown tool: %s", name)
		r.publishFailure(name, err)
		return nil, err
	}

	result, err := r.execute(ctx, tool, args)
	if err != nil {
		r.logger.Warn("tool execution failed", "tool", name, "error", err)
		r.publishFailure(name, err)
		return nil, err
	}

	if r.bus != nil {
		r.bus.PublishToolOutput(name, true, result, "", nil)
	}
	return result, nil
}

func (r *Registry) execute(ctx context.Context, tool Tool, args map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), rec)
		}
	}()
	if pre, ok := tool.(PreExecutor); ok {
		args, err = pre.PreExecute(ctx, args)
		if err != nil {
			return nil, err
		}
	}
	result, err = tool.Execute(ctx, args)
	if err != nil {
		return nil, err
	}
	if post, ok := tool.(PostExecutor); ok {
		result, err = post.PostExecute(ctx, result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *Registry) publishFailure(name string, err error) {
	if r.bus == nil {
		return
	}
	r.bus.PublishToolOutput(name, false, nil, err.Error(), nil)
	r.bus.PublishToolError(name, err.Error(), nil)
}

// RegisterRecovery adds a recovery handler matched when pattern appears
// as a substring of a tool error. Handlers are consulted in registration
// order.
func (r *Registry) RegisterRecovery(pattern string, recoverer ErrorRecoverer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, recoveryHandler{pattern: pattern, recoverer: recoverer})
}

// FindRecovery returns the first recovery handler whose pattern occurs
// in errText.
func (r *Registry) FindRecovery(errText string) (ErrorRecoverer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if strings.Contains(errText, h.pattern) {
			return h.recoverer, true
		}
	}
	return nil, false
}

// RecoveryStep returns a recovery step built by the first handler whose
// pattern occurs in errText, or nil when no handler matches or the
// matching handler declines.
func (r *Registry) RecoveryStep(errText string, failed *PlanStep) *PlanStep {
	rec, ok := r.FindRecovery(errText)
	if !ok {
		return nil
	}
	return rec.Recover(failed, errors.New(errText))
}
