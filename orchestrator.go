package catalyst

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultStepDescription is the single step inserted when planning
// returns no steps.
const DefaultStepDescription = "Analyze the request and respond to the user"

const emptyPlanReasoning = "The request is simple and requires a direct response without tools."

// PlanContext carries the ambient inputs for planning and re-planning
// calls.
type PlanContext struct {
	History     string
	CurrentDate string
}

// ResponseContext carries the ambient inputs for response generation.
type ResponseContext struct {
	History     string
	Plan        *Plan
	CurrentDate string
}

// Orchestrator assembles prompts, calls the provider, and normalizes LM
// responses for plan generation, response generation, and plan
// re-evaluation. LM and parse failures never propagate: planning
// degrades to a fallback plan, responses to an apology, and re-planning
// to the unchanged plan.
type Orchestrator struct {
	provider    Provider
	registry    *Registry
	bus         *Bus
	logger      *slog.Logger
	temperature float64
	maxTokens   int
	storagePath string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// OrchestratorRegistry supplies the tool registry used to render tool
// catalogs into prompts.
func OrchestratorRegistry(reg *Registry) OrchestratorOption {
	return func(o *Orchestrator) { o.registry = reg }
}

// OrchestratorBus attaches an event bus for plan generation events.
func OrchestratorBus(bus *Bus) OrchestratorOption {
	return func(o *Orchestrator) { o.bus = bus }
}

// OrchestratorLogger sets the structured logger.
func OrchestratorLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// OrchestratorTemperature sets the sampling temperature (default: 0.7).
func OrchestratorTemperature(t float64) OrchestratorOption {
	return func(o *Orchestrator) { o.temperature = t }
}

// OrchestratorMaxTokens caps completion length (default: 1000).
func OrchestratorMaxTokens(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.maxTokens = n }
}

// OrchestratorStoragePath sets the file storage hint injected into
// system prompts (default: "./").
func OrchestratorStoragePath(p string) OrchestratorOption {
	return func(o *Orchestrator) { o.storagePath = p }
}

// NewOrchestrator creates an orchestrator over the given provider.
func NewOrchestrator(provider Provider, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		provider:    provider,
		temperature: 0.7,
		maxTokens:   1000,
		storagePath: "./",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = nopLogger
	}
	return o
}

// EstimateTokens delegates to the provider's token estimator.
func (o *Orchestrator) EstimateTokens(text string) int {
	return o.provider.EstimateTokens(text)
}

// ModelName reports the provider's active model identifier.
func (o *Orchestrator) ModelName() string {
	return o.provider.ModelName()
}

func (o *Orchestrator) toolDescriptions() string {
	if o.registry == nil {
		return "No tools available."
	}
	return o.registry.Describe()
}

// GeneratePlan asks the LM to decompose goal into steps. Failures
// degrade to a single-step fallback plan describing the failure; an
// empty plan gets the default analyze-and-respond step.
func (o *Orchestrator) GeneratePlan(ctx context.Context, goal string, pctx PlanContext) *Plan {
	system := renderPrompt(systemPlan, map[string]string{
		"current_date": pctx.CurrentDate,
		"storage_path": o.storagePath,
	})
	user := renderPrompt(userPlan, map[string]string{
		"goal":                 goal,
		"tool_descriptions":    o.toolDescriptions(),
		"conversation_history": pctx.History,
		"few_shot_examples":    planFormatExamples,
	}) + placeholderInstruction

	plan := NewPlan(goal)

	resp, err := o.provider.Chat(ctx, ChatRequest{
		Messages:    []ChatMessage{SystemMessage(system), UserMessage(user)},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		o.logger.Error("plan generation failed", "goal", goal, "error", err)
		plan.AddStep(NewStep("Error generating plan", "", nil))
		plan.Metadata["reasoning"] = "Error: " + err.Error()
		return plan
	}

	payload, err := parsePlanPayload(resp.Content)
	if err != nil {
		o.logger.Error("plan response unparseable", "goal", goal, "error", err)
		if o.bus != nil {
			o.bus.PublishPlanError(goal, "error parsing plan")
		}
		plan.AddStep(NewStep("Error parsing plan", "", nil))
		plan.Metadata["reasoning"] = "Error: " + err.Error()
		return plan
	}

	for _, m := range payload.Steps {
		plan.AddStep(stepFromPayload(m))
	}
	if payload.Reasoning != "" {
		plan.Metadata["reasoning"] = payload.Reasoning
	}
	if len(plan.Steps) == 0 {
		if payload.Reasoning == "" {
			plan.Metadata["reasoning"] = emptyPlanReasoning
		}
		plan.AddStep(NewStep(DefaultStepDescription, "", nil))
	}

	if o.bus != nil {
		reasoning := payload.Reasoning
		if reasoning == "" {
			reasoning = "No reasoning provided"
		}
		o.bus.PublishPlanGeneration(goal, payload.Steps, reasoning)
	}
	o.logger.Info("plan generated", "goal", goal, "steps", len(plan.Steps))
	return plan
}

// GenerateResponse produces the user-visible text for a message. The
// current plan, when provided and not the default single-step fallback,
// is rendered into the prompt. LM failures return an apology.
func (o *Orchestrator) GenerateResponse(ctx context.Context, message string, rctx ResponseContext) string {
	system := systemRespond
	if rctx.CurrentDate != "" {
		system += "\nToday's date is " + rctx.CurrentDate + ". When processing queries about any other time-relative terms use this information as your reference point."
	}

	user := renderPrompt(userGenerate, map[string]string{
		"message":              message,
		"conversation_history": rctx.History,
	})
	if rctx.Plan != nil && !isDefaultAnalyzePlan(rctx.Plan) {
		user += renderPlanBlock(rctx.Plan)
	}

	resp, err := o.provider.Chat(ctx, ChatRequest{
		Messages:    []ChatMessage{SystemMessage(system), UserMessage(user)},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		o.logger.Error("response generation failed", "error", err)
		return "I apologize, but I encountered an error while processing your request: " + err.Error()
	}
	return resp.Content
}

// GenerateStepContent runs a language-generation step: it asks the LM to
// perform the step's task given the goal and a summary of prior step
// results. An empty completion is an error.
func (o *Orchestrator) GenerateStepContent(ctx context.Context, description, goal string, executed []map[string]any) (string, error) {
	if goal == "" {
		goal = "Not specified"
	}

	var prior strings.Builder
	prior.WriteString("\nPREVIOUS STEP RESULTS:\n")
	if len(executed) == 0 {
		prior.WriteString("No previous steps executed.\n")
	}
	for i, step := range executed {
		desc, _ := step["description"].(string)
		if desc == "" {
			desc = "N/A"
		}
		fmt.Fprintf(&prior, "Step %d: %s\n", i+1, desc)
		if result, ok := step["result"]; ok && result != nil {
			fmt.Fprintf(&prior, "  Result: %s\n", truncateRepr(result, 500))
		}
		if errText, _ := step["error"].(string); errText != "" {
			fmt.Fprintf(&prior, "  Error: %s\n", errText)
		}
	}

	prompt := fmt.Sprintf(
		"Perform this task: %s\nBased on the overall goal: %s\n%s\nProvide only the direct output for the task, without any introductory phrases like 'Okay, here is...'.",
		description, goal, prior.String(),
	)

	content := o.GenerateResponse(ctx, prompt, ResponseContext{})
	if content == "" {
		return "", errors.New("LLM failed to generate content for this step.")
	}
	return content, nil
}

// FixCode asks the LM to repair code that failed with errText and
// extracts the code from any fenced block in the answer.
func (o *Orchestrator) FixCode(ctx context.Context, code, errText string) string {
	prompt := fmt.Sprintf(`
The following code failed with this error:
%s

Original code:
`+"```python\n%s\n```"+`

Please provide a corrected version of this code that addresses the error. Only return the fixed code, nothing else.
`, errText, code)

	fixed := o.GenerateResponse(ctx, prompt, ResponseContext{})
	return extractCodeBlock(fixed)
}

// ReevaluatePlan asks the LM whether the remaining plan still fits after
// the last executed step. It returns the full adjusted plan as step
// maps plus its reasoning, with changed reporting whether an adjustment
// was requested. Failures leave the plan unchanged.
func (o *Orchestrator) ReevaluatePlan(ctx context.Context, plan *Plan, executed []map[string]any, lastResult any, pctx PlanContext) (steps []map[string]any, reasoning string, changed bool) {
	system := renderPrompt(systemReplan, map[string]string{
		"current_date": pctx.CurrentDate,
		"storage_path": o.storagePath,
	})

	planReasoning := plan.Reasoning()
	if planReasoning == "" {
		planReasoning = "No reasoning provided"
	}
	user := renderPrompt(userReplan, map[string]string{
		"goal":              plan.Goal,
		"tool_descriptions": o.toolDescriptions(),
		"executed_steps":    renderExecutedSteps(executed),
		"last_step_result":  fmt.Sprint(lastResult),
		"remaining_steps":   renderRemainingSteps(plan, len(executed)),
		"reasoning":         planReasoning,
	}) + placeholderInstruction

	resp, err := o.provider.Chat(ctx, ChatRequest{
		Messages:    []ChatMessage{SystemMessage(system), UserMessage(user)},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		o.logger.Error("plan reevaluation failed", "goal", plan.Goal, "error", err)
		return nil, "", false
	}

	payload, err := parseReplanPayload(resp.Content)
	if err != nil {
		o.logger.Error("reevaluation response unparseable", "goal", plan.Goal, "error", err)
		return nil, "", false
	}
	if !payload.NeedsAdjustment {
		o.logger.Debug("plan reevaluation: no adjustment needed", "goal", plan.Goal)
		return nil, "", false
	}

	reasoning = payload.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided for adjustment"
	}
	if payload.FullPlan {
		steps = payload.Steps
	} else {
		steps = append(append([]map[string]any{}, executed...), payload.Steps...)
	}

	if o.bus != nil {
		o.bus.PublishPlanGeneration(plan.Goal, steps, reasoning)
	}
	o.logger.Info("plan adjusted after reevaluation", "goal", plan.Goal, "steps", len(steps))
	return steps, reasoning, true
}

func isDefaultAnalyzePlan(p *Plan) bool {
	return len(p.Steps) == 1 &&
		p.Steps[0].ToolName == "" &&
		p.Steps[0].Description == DefaultStepDescription
}

func renderPlanBlock(p *Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nCURRENT PLAN:\nGoal: %s\nStatus: %s\nSteps:\n", p.Goal, p.Status)
	for i, step := range p.Steps {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, step.Status, step.Description)
		if step.ToolName != "" {
			fmt.Fprintf(&b, "   Tool: %s\n", step.ToolName)
		}
		if step.Result != nil {
			fmt.Fprintf(&b, "   Result: %v\n", step.Result)
		}
		if step.Error != "" {
			fmt.Fprintf(&b, "   Error: %s\n", step.Error)
		}
	}
	return b.String()
}

func renderExecutedSteps(executed []map[string]any) string {
	var b strings.Builder
	for i, step := range executed {
		desc, _ := step["description"].(string)
		if desc == "" {
			desc = "Unknown step"
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, desc)
		if tool, _ := step["tool_name"].(string); tool != "" {
			fmt.Fprintf(&b, "   Tool: %s\n", tool)
			if args, ok := step["tool_args"].(map[string]any); ok && len(args) > 0 {
				fmt.Fprintf(&b, "   Args: %v\n", args)
			}
		}
		if result, ok := step["result"]; ok && result != nil {
			fmt.Fprintf(&b, "   Result: %v\n", result)
		}
		if errText, _ := step["error"].(string); errText != "" {
			fmt.Fprintf(&b, "   Error: %s\n", errText)
		}
	}
	return b.String()
}

func renderRemainingSteps(p *Plan, executedCount int) string {
	var b strings.Builder
	for i := executedCount; i < len(p.Steps); i++ {
		step := p.Steps[i]
		fmt.Fprintf(&b, "%d. %s\n", i+1, step.Description)
		if step.ToolName != "" {
			fmt.Fprintf(&b, "   Tool: %s\n", step.ToolName)
			if len(step.ToolArgs) > 0 {
				fmt.Fprintf(&b, "   Args: %v\n", step.ToolArgs)
			}
		}
	}
	return b.String()
}

// truncateRepr renders a value the way step results appear in prompts:
// strings are quoted, everything else uses its default formatting, and
// long output is cut at limit with an ellipsis.
func truncateRepr(v any, limit int) string {
	var repr string
	if s, ok := v.(string); ok {
		repr = fmt.Sprintf("%q", s)
	} else {
		repr = fmt.Sprintf("%v", v)
	}
	if len(repr) > limit {
		repr = repr[:limit-3] + "..."
	}
	return repr
}
