package catalyst

import (
	"encoding/json"
	"strings"
)

// extractJSON prepares an LM response for JSON decoding: surrounding
// whitespace is trimmed and a Markdown code fence, when present, is
// unwrapped.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	}
	if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-3]
	}
	return strings.TrimSpace(s)
}

// planPayload is the canonical structure every accepted plan response
// shape normalizes to.
type planPayload struct {
	Steps     []map[string]any
	Reasoning string
}

// parsePlanPayload decodes an LM planning response. Accepted shapes:
// an object with a "plan" list, an object with a "steps" list, or a
// bare list of steps. Step maps are normalized via normalizeStepMap.
func parsePlanPayload(raw string) (planPayload, error) {
	text := extractJSON(raw)
	var root any
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return planPayload{}, &ErrParse{Reason: "invalid JSON: " + err.Error(), Raw: raw}
	}

	switch v := root.(type) {
	case []any:
		return planPayload{Steps: stepMaps(v)}, nil
	case map[string]any:
		list, ok := v["plan"].([]any)
		if !ok {
			list, ok = v["steps"].([]any)
		}
		if !ok {
			return planPayload{}, &ErrParse{Reason: "response has no plan list", Raw: raw}
		}
		reasoning, _ := v["reasoning"].(string)
		return planPayload{Steps: stepMaps(list), Reasoning: reasoning}, nil
	default:
		return planPayload{}, &ErrParse{Reason: "unexpected JSON root", Raw: raw}
	}
}

// replanPayload is the normalized re-plan response. When the LM answers
// with a bare list it is taken as the full replacement plan.
type replanPayload struct {
	NeedsAdjustment bool
	FullPlan        bool
	Steps           []map[string]any
	Reasoning       string
}

// parseReplanPayload decodes a plan re-evaluation response. An object
// carries plan_needs_adjustment plus updated_plan; a bare list is the
// whole new plan.
func parseReplanPayload(raw string) (replanPayload, error) {
	text := extractJSON(raw)
	var root any
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return replanPayload{}, &ErrParse{Reason: "invalid JSON: " + err.Error(), Raw: raw}
	}

	switch v := root.(type) {
	case []any:
		return replanPayload{NeedsAdjustment: true, FullPlan: true, Steps: stepMaps(v)}, nil
	case map[string]any:
		adjust, _ := v["plan_needs_adjustment"].(bool)
		if !adjust {
			return replanPayload{}, nil
		}
		list, _ := v["updated_plan"].([]any)
		reasoning, _ := v["reasoning"].(string)
		return replanPayload{NeedsAdjustment: true, Steps: stepMaps(list), Reasoning: reasoning}, nil
	default:
		return replanPayload{}, &ErrParse{Reason: "unexpected JSON root", Raw: raw}
	}
}

func stepMaps(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, normalizeStepMap(m))
		}
	}
	return out
}

// normalizeStepMap maps accepted step key aliases onto canonical names:
// task becomes description; parameters or arguments become tool_args.
// Null-ish tool names ("", "null", "None", JSON null) are dropped and
// null-ish tool args become an empty map.
func normalizeStepMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	if _, ok := out["description"]; !ok {
		if task, ok := out["task"]; ok {
			out["description"] = task
			delete(out, "task")
		}
	}

	if _, ok := out["tool_args"]; !ok {
		if v, ok := out["parameters"]; ok {
			out["tool_args"] = v
			delete(out, "parameters")
		} else if v, ok := out["arguments"]; ok {
			out["tool_args"] = v
			delete(out, "arguments")
		}
	}

	switch name := out["tool_name"].(type) {
	case string:
		if name == "" || name == "null" || name == "None" {
			delete(out, "tool_name")
		}
	default:
		delete(out, "tool_name")
	}

	if args, ok := out["tool_args"].(map[string]any); ok && args != nil {
		out["tool_args"] = args
	} else {
		out["tool_args"] = map[string]any{}
	}

	return out
}

// stepFromPayload builds a pending PlanStep from a normalized step map.
// Steps without an id get a fresh one.
func stepFromPayload(m map[string]any) *PlanStep {
	desc, _ := m["description"].(string)
	if desc == "" {
		desc = "Unknown step"
	}
	tool, _ := m["tool_name"].(string)
	args, _ := m["tool_args"].(map[string]any)
	step := NewStep(desc, tool, args)
	if id, ok := m["id"].(string); ok && id != "" {
		step.ID = id
	}
	if deps, ok := m["depends_on"].([]any); ok {
		for _, d := range deps {
			if ds, ok := d.(string); ok {
				step.DependsOn = append(step.DependsOn, ds)
			}
		}
	}
	return step
}

// extractCodeBlock pulls source code out of a fenced Markdown block,
// preferring a ```python fence over a generic one. Input without any
// fence is returned unchanged.
func extractCodeBlock(s string) string {
	if i := strings.Index(s, "```python"); i >= 0 {
		rest := s[i+len("```python"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return s
}
