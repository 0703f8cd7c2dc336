package catalyst

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
)

var placeholderPattern = regexp.MustCompile(`\{step_(\d+)_result\}`)

// resolvePlaceholders walks tool arguments and replaces {step_N_result}
// tokens with the result of the N-th executed step (1-based). A token
// that is the entire string substitutes the raw result, preserving its
// type; tokens embedded in longer strings substitute the result's JSON
// encoding. Indices past the executed list are left verbatim with a
// warning.
func resolvePlaceholders(args map[string]any, executed []map[string]any, logger *slog.Logger) map[string]any {
	if len(args) == 0 {
		return args
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = resolveValue(v, executed, logger)
	}
	return out
}

func resolveValue(v any, executed []map[string]any, logger *slog.Logger) any {
	switch val := v.(type) {
	case string:
		return resolveString(val, executed, logger)
	case map[string]any:
		return resolvePlaceholders(val, executed, logger)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, executed, logger)
		}
		return out
	default:
		return v
	}
}

func resolveString(s string, executed []map[string]any, logger *slog.Logger) any {
	m := placeholderPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}

	// A token spanning the whole string keeps the result's type.
	if m[0] == s {
		result, ok := stepResult(m[1], executed)
		if !ok {
			logger.Warn("placeholder references unexecuted step", "token", s, "executed", len(executed))
			return s
		}
		return result
	}

	return placeholderPattern.ReplaceAllStringFunc(s, func(token string) string {
		sub := placeholderPattern.FindStringSubmatch(token)
		result, ok := stepResult(sub[1], executed)
		if !ok {
			logger.Warn("placeholder references unexecuted step", "token", token, "executed", len(executed))
			return token
		}
		if str, ok := result.(string); ok {
			return str
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return fmt.Sprint(result)
		}
		return string(encoded)
	})
}

func stepResult(index string, executed []map[string]any) (any, bool) {
	n, err := strconv.Atoi(index)
	if err != nil || n < 1 || n > len(executed) {
		return nil, false
	}
	return executed[n-1]["result"], true
}
