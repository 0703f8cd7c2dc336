package catalyst

import (
	"fmt"
	"strings"
)

// Status describes the lifecycle state of a plan or a single step.
// Plans and steps share the same state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
)

// ParseStatus converts a raw string to a Status. Unknown values map to
// StatusPending; the second return reports whether the input was valid.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked:
		return Status(s), true
	}
	return StatusPending, false
}

// PlanStep is a single unit of work within a Plan. A step either invokes
// a named tool with arguments or, when ToolName is empty, is handled by
// language generation.
type PlanStep struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	ToolName    string         `json:"tool_name,omitempty"`
	ToolArgs    map[string]any `json:"tool_args"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Status      Status         `json:"status"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewStep creates a pending step with a fresh ID. toolName may be empty
// for language-generation steps.
func NewStep(description, toolName string, args map[string]any) *PlanStep {
	if args == nil {
		args = map[string]any{}
	}
	return &PlanStep{
		ID:          NewID(),
		Description: description,
		ToolName:    toolName,
		ToolArgs:    args,
		Status:      StatusPending,
		Metadata:    map[string]any{},
	}
}

// ToMap returns the step as a generic map, the shape used for executed
// step records and plan re-evaluation prompts.
func (s *PlanStep) ToMap() map[string]any {
	var tool any
	if s.ToolName != "" {
		tool = s.ToolName
	}
	return map[string]any{
		"id":          s.ID,
		"description": s.Description,
		"tool_name":   tool,
		"tool_args":   s.ToolArgs,
		"depends_on":  s.DependsOn,
		"status":      string(s.Status),
		"result":      s.Result,
		"error":       s.Error,
		"metadata":    s.Metadata,
	}
}

// StepFromMap rebuilds a step from its map form. Missing fields get
// defaults: a generated ID, the placeholder description, and pending
// status.
func StepFromMap(m map[string]any) *PlanStep {
	desc, _ := m["description"].(string)
	if desc == "" {
		desc = "No description provided"
	}
	step := NewStep(desc, stringOr(m["tool_name"]), mapOr(m["tool_args"]))
	if id, ok := m["id"].(string); ok && id != "" {
		step.ID = id
	}
	if raw, ok := m["status"].(string); ok {
		step.Status, _ = ParseStatus(raw)
	}
	if deps, ok := m["depends_on"].([]any); ok {
		for _, d := range deps {
			if ds, ok := d.(string); ok {
				step.DependsOn = append(step.DependsOn, ds)
			}
		}
	}
	if r, ok := m["result"]; ok && r != nil {
		step.Result = r
	}
	if e, ok := m["error"].(string); ok {
		step.Error = e
	}
	if meta, ok := m["metadata"].(map[string]any); ok {
		step.Metadata = meta
	}
	return step
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}

func mapOr(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// Plan is an ordered collection of steps toward a goal.
type Plan struct {
	ID       string         `json:"id"`
	Goal     string         `json:"goal"`
	Steps    []*PlanStep    `json:"steps"`
	Status   Status         `json:"status"`
	Metadata map[string]any `json:"metadata"`
}

// NewPlan creates an empty pending plan for a goal.
func NewPlan(goal string) *Plan {
	return &Plan{
		ID:       NewID(),
		Goal:     goal,
		Status:   StatusPending,
		Metadata: map[string]any{},
	}
}

// AddStep appends a step to the plan.
func (p *Plan) AddStep(step *PlanStep) {
	p.Steps = append(p.Steps, step)
}

// Step returns the step with the given ID, or nil.
func (p *Plan) Step(id string) *PlanStep {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// UpdateStatus recomputes the plan status from its steps:
//
//	no steps                -> pending
//	any step failed         -> failed
//	all steps completed     -> completed
//	any step in progress    -> in_progress
//	any step pending        -> pending
//	otherwise               -> in_progress
func (p *Plan) UpdateStatus() {
	if len(p.Steps) == 0 {
		p.Status = StatusPending
		return
	}

	var anyFailed, anyInProgress, anyPending bool
	allCompleted := true
	for _, s := range p.Steps {
		switch s.Status {
		case StatusFailed:
			anyFailed = true
		case StatusInProgress:
			anyInProgress = true
		case StatusPending:
			anyPending = true
		}
		if s.Status != StatusCompleted {
			allCompleted = false
		}
	}

	switch {
	case anyFailed:
		p.Status = StatusFailed
	case allCompleted:
		p.Status = StatusCompleted
	case anyInProgress:
		p.Status = StatusInProgress
	case anyPending:
		p.Status = StatusPending
	default:
		p.Status = StatusInProgress
	}
}

// NextStep returns the first pending step whose dependencies have all
// completed, or nil when no step is executable. A dependency on an
// unknown step ID blocks the step.
func (p *Plan) NextStep() *PlanStep {
	for _, s := range p.Steps {
		if s.Status != StatusPending {
			continue
		}
		ready := true
		for _, dep := range s.DependsOn {
			d := p.Step(dep)
			if d == nil || d.Status != StatusCompleted {
				ready = false
				break
			}
		}
		if ready {
			return s
		}
	}
	return nil
}

// Reasoning returns the planner's reasoning stored in metadata, or "".
func (p *Plan) Reasoning() string {
	r, _ := p.Metadata["reasoning"].(string)
	return r
}

// ToMap returns the plan as a generic map mirroring its JSON shape.
func (p *Plan) ToMap() map[string]any {
	steps := make([]any, 0, len(p.Steps))
	for _, s := range p.Steps {
		steps = append(steps, s.ToMap())
	}
	return map[string]any{
		"id":       p.ID,
		"goal":     p.Goal,
		"steps":    steps,
		"status":   string(p.Status),
		"metadata": p.Metadata,
	}
}

// PlanFromMap rebuilds a plan from its map form. Step entries that are
// not maps are dropped.
func PlanFromMap(m map[string]any) *Plan {
	goal, _ := m["goal"].(string)
	if goal == "" {
		goal = "No goal provided"
	}
	plan := NewPlan(goal)
	if id, ok := m["id"].(string); ok && id != "" {
		plan.ID = id
	}
	if steps, ok := m["steps"].([]any); ok {
		for _, raw := range steps {
			if sm, ok := raw.(map[string]any); ok {
				plan.AddStep(StepFromMap(sm))
			}
		}
	}
	if raw, ok := m["status"].(string); ok {
		plan.Status, _ = ParseStatus(raw)
	}
	if meta, ok := m["metadata"].(map[string]any); ok {
		plan.Metadata = meta
	}
	return plan
}

// String renders a compact human-readable view used in logs.
func (p *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s (ID: %s, Status: %s)", p.Goal, p.ID, p.Status)
	for i, s := range p.Steps {
		fmt.Fprintf(&b, "\n%d. [%s] %s", i+1, s.Status, s.Description)
		if s.ToolName != "" {
			fmt.Fprintf(&b, " (using %s)", s.ToolName)
		}
	}
	return b.String()
}
