package catalyst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// HistoryMessage is one turn of caller-supplied conversation history,
// used when the caller keeps the transcript outside the agent's memory.
type HistoryMessage struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Assessment is the result of CanAccomplish: whether a task is
// achievable with the currently registered tools.
type Assessment struct {
	CanAccomplish bool     `json:"can_accomplish"`
	Reason        string   `json:"reason"`
	MissingTools  []string `json:"missing_tools,omitempty"`
	Plan          *Plan    `json:"plan,omitempty"`
}

// Agent binds memory, the tool registry, the event bus, the LLM
// orchestrator, and the planning engine behind a message-processing
// facade. Construct with New; the zero value is not usable.
//
// Bus, Registry, and ModelName are safe for concurrent use, but the
// agent processes one message at a time: ProcessMessage must not be
// called concurrently on the same Agent.
type Agent struct {
	provider Provider
	memory   *Memory
	registry *Registry
	bus      *Bus
	orch     *Orchestrator
	engine   *Engine
	guards   []Guard

	cfg         AgentConfig
	currentDate string
	logger      *slog.Logger
}

// New builds an Agent around the given LLM provider. Components share
// one event bus and one logger; tools passed via WithTools are
// registered before the agent is returned.
func New(provider Provider, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, &ErrConfig{Reason: "provider is required"}
	}

	o := agentOptions{
		config:      DefaultConfig(),
		toolTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = nopLogger
	}
	if o.bus == nil {
		o.bus = NewBus(BusLogger(o.logger))
	}
	if o.config.ShortTermCapacity <= 0 {
		o.config.ShortTermCapacity = DefaultConfig().ShortTermCapacity
	}

	memOpts := []MemoryOption{
		MemoryCapacity(o.config.ShortTermCapacity),
		MemoryLogger(o.logger),
	}
	if o.store != nil {
		memOpts = append(memOpts, MemoryStore(o.store))
	}
	memory := NewMemory(memOpts...)

	registry := NewRegistry(RegistryBus(o.bus), RegistryLogger(o.logger))
	for _, t := range o.tools {
		registry.Register(t)
	}

	orch := NewOrchestrator(provider,
		OrchestratorRegistry(registry),
		OrchestratorBus(o.bus),
		OrchestratorLogger(o.logger),
		OrchestratorTemperature(o.config.Temperature),
		OrchestratorMaxTokens(o.config.MaxTokens),
		OrchestratorStoragePath(o.config.BlobStoragePath),
	)

	engine := NewEngine(orch, registry,
		EngineMemory(memory),
		EngineBus(o.bus),
		EngineLogger(o.logger),
		EngineToolTimeout(o.toolTimeout),
	)

	return &Agent{
		provider:    provider,
		memory:      memory,
		registry:    registry,
		bus:         o.bus,
		orch:        orch,
		engine:      engine,
		guards:      o.guards,
		cfg:         o.config,
		currentDate: o.currentDate,
		logger:      o.logger,
	}, nil
}

// Bus returns the agent's event bus for streaming consumers.
func (a *Agent) Bus() *Bus { return a.bus }

// Memory returns the agent's conversation memory.
func (a *Agent) Memory() *Memory { return a.memory }

// Registry returns the agent's tool registry.
func (a *Agent) Registry() *Registry { return a.registry }

// ModelName reports the underlying provider's model identifier.
func (a *Agent) ModelName() string { return a.provider.ModelName() }

// RegisterTool adds a tool after construction. Re-registering a name
// replaces the previous tool.
func (a *Agent) RegisterTool(t Tool) {
	a.registry.Register(t)
}

type processOptions struct {
	sender  string
	history []HistoryMessage
}

// ProcessOption adjusts a single ProcessMessage call.
type ProcessOption func(*processOptions)

// MessageSender overrides the sender recorded for the inbound message.
// Default "user".
func MessageSender(sender string) ProcessOption {
	return func(o *processOptions) { o.sender = sender }
}

// MessageHistory supplies conversation history from the caller instead
// of the agent's own memory, for stateless deployments where the client
// holds the transcript.
func MessageHistory(history []HistoryMessage) ProcessOption {
	return func(o *processOptions) { o.history = history }
}

// ProcessMessage runs the full message lifecycle: guard checks, memory
// append, plan creation and execution (when planning is enabled), and
// response composition. It always returns a user-facing string; LLM and
// tool failures degrade into explanatory responses rather than errors.
func (a *Agent) ProcessMessage(ctx context.Context, message string, opts ...ProcessOption) (string, error) {
	po := processOptions{sender: SenderUser}
	for _, opt := range opts {
		opt(&po)
	}

	for _, g := range a.guards {
		if err := g.CheckInput(ctx, message); err != nil {
			var halt *ErrHalt
			if errors.As(err, &halt) {
				a.logger.Warn("message blocked by guard")
				return halt.Response, nil
			}
			return "", fmt.Errorf("agent: guard check: %w", err)
		}
	}

	a.logger.Info("processing message", "sender", po.sender, "length", len(message))

	if _, err := a.memory.AddMessage(ctx, message, po.sender, false, nil); err != nil {
		a.logger.Warn("failed to record inbound message", "error", err)
	}

	date := a.date()

	var response string
	if a.cfg.PlanningEnabled {
		pctx := PlanContext{History: a.planningHistory(po.history), CurrentDate: date}
		plan := a.engine.CreatePlan(ctx, message, pctx)

		success, err := a.engine.ExecutePlan(ctx, plan, nil)
		if err != nil {
			return "", fmt.Errorf("agent: execute plan: %w", err)
		}
		if success {
			response = a.successResponse(ctx, plan, date)
		} else {
			response = a.failureResponse(ctx, plan, date)
		}
	} else {
		rctx := ResponseContext{History: a.memory.ConversationText(), CurrentDate: date}
		response = a.orch.GenerateResponse(ctx, message, rctx)
	}

	response = a.checkOutput(ctx, response)

	a.bus.PublishFinalSolution(response)

	if _, err := a.memory.AddMessage(ctx, response, SenderAgent, false, nil); err != nil {
		a.logger.Warn("failed to record agent response", "error", err)
	}
	return response, nil
}

// CanAccomplish generates a plan for the task and checks every tool it
// references against the registry. The plan itself is included in the
// assessment only when the agent is configured verbose.
func (a *Agent) CanAccomplish(ctx context.Context, task string) Assessment {
	pctx := PlanContext{History: a.planningHistory(nil), CurrentDate: a.date()}
	plan := a.orch.GeneratePlan(ctx, task, pctx)

	var missing []string
	for _, step := range plan.Steps {
		if step.ToolName == "" {
			continue
		}
		if _, ok := a.registry.Get(step.ToolName); !ok {
			missing = append(missing, step.ToolName)
		}
	}

	out := Assessment{CanAccomplish: len(missing) == 0}
	if a.cfg.Verbose {
		out.Plan = plan
	}
	if out.CanAccomplish {
		out.Reason = "The task can be accomplished with the current tools."
	} else {
		out.MissingTools = missing
		out.Reason = "The task requires the following tools that are not available: " + strings.Join(missing, ", ")
	}
	return out
}

// date returns the pinned date when one was configured, today otherwise.
func (a *Agent) date() string {
	if a.currentDate != "" {
		return a.currentDate
	}
	return time.Now().Format("January 2, 2006")
}

// planningHistory renders conversation history for planning prompts as
// "sender: content" lines. Caller-supplied history wins over memory.
func (a *Agent) planningHistory(history []HistoryMessage) string {
	if len(history) > 0 {
		lines := make([]string, 0, len(history))
		for _, h := range history {
			lines = append(lines, h.Sender+": "+h.Content)
		}
		return strings.Join(lines, "\n")
	}

	entries := a.memory.ConversationHistory()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Sender+": "+e.Content)
	}
	return strings.Join(lines, "\n")
}

// noToolPhrases mark a plan's reasoning as deliberately tool-free: the
// planner decided the goal is a pure language task.
var noToolPhrases = []string{
	"no tools needed",
	"no tool required",
	"language generation",
	"can be accomplished directly",
	"without using tools",
	"language task",
	"creative",
	"explanation",
	"general knowledge",
	"straightforward",
	"counting",
	"analysis",
	"directly",
}

// successResponse composes the reply for a completed plan. Plans that
// used tools, or that deliberately skipped them, get an LLM summary with
// the plan in context; anything else gets a generic completion notice.
func (a *Agent) successResponse(ctx context.Context, plan *Plan, date string) string {
	toolSteps := 0
	for _, step := range plan.Steps {
		if step.ToolName != "" {
			toolSteps++
		}
	}

	deliberate := false
	if reasoning := plan.Reasoning(); reasoning != "" && toolSteps == 0 {
		lower := strings.ToLower(reasoning)
		for _, phrase := range noToolPhrases {
			if strings.Contains(lower, phrase) {
				deliberate = true
				break
			}
		}
	}

	if toolSteps > 0 || deliberate {
		msg := fmt.Sprintf("The plan to achieve the goal '%s' was executed successfully.", plan.Goal)
		rctx := ResponseContext{History: a.memory.ConversationText(), Plan: plan, CurrentDate: date}
		return a.orch.GenerateResponse(ctx, msg, rctx)
	}

	a.logger.Warn("plan completed without tool steps or no-tool reasoning", "goal", plan.Goal)
	return "I have successfully completed the task: " + plan.Goal
}

// failureResponse composes the reply for a failed plan, naming the first
// failed step and its error.
func (a *Agent) failureResponse(ctx context.Context, plan *Plan, date string) string {
	var failed *PlanStep
	for _, step := range plan.Steps {
		if step.Status == StatusFailed {
			failed = step
			break
		}
	}

	var reason string
	switch {
	case failed != nil && failed.Error != "":
		reason = fmt.Sprintf("Step '%s' failed with error: %s", failed.Description, failed.Error)
	case failed != nil:
		reason = fmt.Sprintf("Step '%s' failed.", failed.Description)
	default:
		reason = "The plan failed, but the specific step could not be identified."
	}
	a.logger.Info("plan failed", "goal", plan.Goal, "reason", reason)

	msg := fmt.Sprintf("I encountered an issue while trying to achieve the goal '%s'. %s", plan.Goal, reason)
	rctx := ResponseContext{History: a.memory.ConversationText(), Plan: plan, CurrentDate: date}
	return a.orch.GenerateResponse(ctx, msg, rctx)
}

// checkOutput runs guards that also inspect outbound responses. A halt
// replaces the response with the guard's canned reply.
func (a *Agent) checkOutput(ctx context.Context, response string) string {
	for _, g := range a.guards {
		og, ok := g.(OutputGuard)
		if !ok {
			continue
		}
		if err := og.CheckOutput(ctx, response); err != nil {
			var halt *ErrHalt
			if errors.As(err, &halt) {
				a.logger.Warn("response blocked by guard")
				return halt.Response
			}
		}
	}
	return response
}

// nopLogger is a logger that discards all output. Used when WithLogger is not set.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
