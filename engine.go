package catalyst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DuplicateSkipResult is recorded on a step skipped because an already
// executed step had the same description and tool.
const DuplicateSkipResult = "Step skipped to avoid duplication of previous step"

var generationVerbs = []string{
	"generate", "create", "tell", "write", "compose", "explain",
	"answer", "provide", "describe", "synthesize", "summarize",
}

// Engine owns the plan execution loop: it selects the next executable
// step, resolves result placeholders, dispatches to a tool or to
// language generation, records the outcome, and re-evaluates the
// remaining plan after every successful step.
//
// An Engine runs one plan at a time; it is not safe for concurrent
// ExecutePlan calls.
type Engine struct {
	orchestrator *Orchestrator
	registry     *Registry
	memory       *Memory
	bus          *Bus
	logger       *slog.Logger
	toolTimeout  time.Duration

	plan     *Plan
	pctx     PlanContext
	executed []map[string]any
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// EngineMemory attaches agent memory; step executions are recorded to
// it when present.
func EngineMemory(m *Memory) EngineOption {
	return func(e *Engine) { e.memory = m }
}

// EngineBus attaches an event bus for execution and plan change events.
func EngineBus(bus *Bus) EngineOption {
	return func(e *Engine) { e.bus = bus }
}

// EngineLogger sets the structured logger.
func EngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// EngineToolTimeout bounds each tool execution (default: 30s).
// Non-positive disables the deadline.
func EngineToolTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.toolTimeout = d }
}

// NewEngine creates a planning engine over an orchestrator and a tool
// registry.
func NewEngine(orchestrator *Orchestrator, registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		orchestrator: orchestrator,
		registry:     registry,
		toolTimeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = nopLogger
	}
	return e
}

// CreatePlan asks the orchestrator for a plan and makes it current.
func (e *Engine) CreatePlan(ctx context.Context, goal string, pctx PlanContext) *Plan {
	e.logger.Info("creating plan", "goal", goal)
	e.plan = e.orchestrator.GeneratePlan(ctx, goal, pctx)
	e.pctx = pctx
	e.logger.Info("plan created", "plan", e.plan.String())
	return e.plan
}

// CurrentPlan returns the plan the engine is executing, or nil.
func (e *Engine) CurrentPlan() *Plan {
	return e.plan
}

// Executed returns a snapshot of the executed step records.
func (e *Engine) Executed() []map[string]any {
	out := make([]map[string]any, len(e.executed))
	copy(out, e.executed)
	return out
}

// Reset clears the current plan and executed history.
func (e *Engine) Reset() {
	e.plan = nil
	e.pctx = PlanContext{}
	e.executed = nil
}

// ExecutePlan runs plan to completion. Passing a non-nil plan makes it
// current and clears the executed history; nil continues the current
// plan. stepCallback, when set, is invoked after each successful step.
// The return reports whether the plan completed.
func (e *Engine) ExecutePlan(ctx context.Context, plan *Plan, stepCallback func(*PlanStep)) (bool, error) {
	if plan != nil {
		e.plan = plan
		e.executed = nil
	}
	if e.plan == nil {
		return false, errors.New("engine: no plan to execute")
	}

	e.plan.Status = StatusInProgress

	for {
		step, err := e.ExecuteNextStep(ctx)
		if err != nil {
			return false, err
		}
		if step == nil {
			break
		}
		if step.Status == StatusFailed {
			return false, nil
		}
		if stepCallback != nil {
			stepCallback(step)
		}
	}

	return e.plan.Status == StatusCompleted, nil
}

// ExecuteNextStep executes the next executable step of the current
// plan. It returns nil when no step is executable. After a successful
// step the plan is re-evaluated and possibly reconstructed.
func (e *Engine) ExecuteNextStep(ctx context.Context) (*PlanStep, error) {
	if e.plan == nil {
		return nil, errors.New("engine: no plan to execute")
	}

	step := e.plan.NextStep()
	if step == nil {
		e.plan.UpdateStatus()
		return nil, nil
	}

	if e.isDuplicate(step) {
		e.logger.Warn("detected duplicate step, skipping execution", "description", step.Description)
		step.Status = StatusCompleted
		step.Result = DuplicateSkipResult
		e.executed = append(e.executed, step.ToMap())
		e.plan.UpdateStatus()
		return step, nil
	}

	step.Status = StatusInProgress
	success := e.executeStep(ctx, step)

	if success {
		step.Status = StatusCompleted
		e.executed = append(e.executed, step.ToMap())
		e.publishExecutionStep(step)

		newSteps, reasoning, changed := e.orchestrator.ReevaluatePlan(ctx, e.plan, e.executed, step.Result, e.pctx)
		if changed {
			e.reconstructPlan(newSteps, reasoning)
		}
	} else {
		step.Status = StatusFailed
		e.plan.Status = StatusFailed
		e.publishExecutionStep(step)
	}

	e.plan.UpdateStatus()
	return step, nil
}

func (e *Engine) isDuplicate(step *PlanStep) bool {
	for _, prior := range e.executed {
		desc, _ := prior["description"].(string)
		tool, _ := prior["tool_name"].(string)
		if strings.EqualFold(desc, step.Description) && tool == step.ToolName {
			return true
		}
	}
	return false
}

// executeStep dispatches one step and reports success. Panics inside
// execution mark the step failed instead of unwinding the loop.
func (e *Engine) executeStep(ctx context.Context, step *PlanStep) (success bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("step execution panicked", "description", step.Description, "panic", r)
			step.Result = nil
			step.Error = fmt.Sprint(r)
			e.recordExecution(ctx, step.Description, ExecFailed, "Error: "+step.Error)
			success = false
		}
	}()

	e.logger.Info("executing step", "description", step.Description, "tool", step.ToolName)
	e.recordExecution(ctx, step.Description, ExecStarted, nil)

	if step.ToolName != "" {
		return e.executeToolStep(ctx, step)
	}
	return e.executeGenerationStep(ctx, step)
}

func (e *Engine) executeToolStep(ctx context.Context, step *PlanStep) bool {
	step.ToolArgs = resolvePlaceholders(step.ToolArgs, e.executed, e.logger)

	result, err := e.runTool(ctx, step.ToolName, step.ToolArgs)
	if err != nil {
		e.logger.Info("tool execution failed, attempting recovery", "tool", step.ToolName, "error", err)
		result, err = e.recoverToolStep(ctx, step, err)
	}

	if err != nil {
		step.Result = nil
		step.Error = err.Error()
		e.recordExecution(ctx, "Tool execution: "+step.ToolName, ExecFailed, err.Error())
		return false
	}

	step.Result = result
	step.Error = ""
	e.recordExecution(ctx, "Tool execution: "+step.ToolName, ExecCompleted, result)
	return true
}

// recoverToolStep tries the registered recovery handlers first, then the
// LM code-fix path for steps carrying a code argument. Either way the
// original step is retried at most once.
func (e *Engine) recoverToolStep(ctx context.Context, step *PlanStep, execErr error) (any, error) {
	if recovery := e.registry.RecoveryStep(execErr.Error(), step); recovery != nil {
		e.logger.Info("executing recovery step", "description", recovery.Description)
		if _, rerr := e.runTool(ctx, recovery.ToolName, recovery.ToolArgs); rerr != nil {
			e.logger.Info("recovery step failed", "error", rerr)
			return nil, execErr
		}
		e.logger.Info("recovery step succeeded, retrying original step")
		return e.runTool(ctx, step.ToolName, step.ToolArgs)
	}

	code, ok := step.ToolArgs["code"].(string)
	if !ok {
		return nil, execErr
	}
	e.logger.Info("attempting to fix the code")
	step.ToolArgs["code"] = e.orchestrator.FixCode(ctx, code, execErr.Error())
	e.logger.Info("retrying with fixed code")
	return e.runTool(ctx, step.ToolName, step.ToolArgs)
}

func (e *Engine) runTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if e.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.toolTimeout)
		defer cancel()
	}
	return e.registry.Execute(ctx, name, args)
}

func (e *Engine) executeGenerationStep(ctx context.Context, step *PlanStep) bool {
	desc := strings.ToLower(step.Description)
	isGeneration := false
	for _, verb := range generationVerbs {
		if strings.Contains(desc, verb) {
			isGeneration = true
			break
		}
	}

	if !isGeneration {
		step.Result = "Step completed successfully"
		step.Error = ""
		e.recordExecution(ctx, step.Description, ExecCompleted, step.Result)
		return true
	}

	content, err := e.orchestrator.GenerateStepContent(ctx, step.Description, e.plan.Goal, e.executed)
	if err != nil {
		e.logger.Warn("generation step produced no content", "description", step.Description)
		step.Result = nil
		step.Error = err.Error()
		e.recordExecution(ctx, step.Description, ExecFailed, err.Error())
		return false
	}

	step.Result = content
	step.Error = ""
	e.recordExecution(ctx, step.Description, ExecCompleted, content)
	return true
}

// reconstructPlan replaces the plan's steps with the re-evaluated list.
// Completed steps are reused by id so their captured results survive.
func (e *Engine) reconstructPlan(newSteps []map[string]any, reasoning string) {
	completed := make(map[string]*PlanStep)
	for _, s := range e.plan.Steps {
		if s.Status == StatusCompleted {
			completed[s.ID] = s
		}
	}

	rebuilt := make([]*PlanStep, 0, len(newSteps))
	for _, m := range newSteps {
		id, _ := m["id"].(string)
		if id == "" {
			id = NewID()
			e.logger.Debug("re-planned step has no id, generated one", "description", m["description"])
		}
		raw, _ := m["status"].(string)
		status, _ := ParseStatus(raw)

		if existing, ok := completed[id]; ok && status != StatusPending {
			rebuilt = append(rebuilt, existing)
			continue
		}

		step := stepFromPayload(m)
		step.ID = id
		step.Status = status
		rebuilt = append(rebuilt, step)
	}

	e.plan.Steps = rebuilt
	e.plan.Metadata["reasoning"] = reasoning
	if e.bus != nil {
		e.bus.PublishPlanChange(e.plan.Goal, newSteps, reasoning)
	}

	anyPending := false
	for _, s := range rebuilt {
		if s.Status == StatusPending {
			anyPending = true
			break
		}
	}
	if !anyPending {
		e.logger.Info("no pending steps after reevaluation, marking plan completed")
		e.plan.Status = StatusCompleted
	}
}

func (e *Engine) publishExecutionStep(step *PlanStep) {
	if e.bus == nil {
		return
	}
	e.bus.PublishExecutionStep(step.ID, step.Description, step.ToolName, string(step.Status))
}

func (e *Engine) recordExecution(ctx context.Context, action, status string, result any) {
	if e.memory == nil {
		return
	}
	if _, err := e.memory.AddExecution(ctx, action, status, result, false, nil); err != nil {
		e.logger.Warn("recording execution failed", "action", action, "error", err)
	}
}
