// Package calculator provides a basic arithmetic tool.
package calculator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nevindra/catalyst"
)

// Tool performs arithmetic on two operands.
type Tool struct{}

var _ catalyst.Tool = (*Tool)(nil)

// New creates a calculator tool.
func New() *Tool { return &Tool{} }

func (t *Tool) Name() string { return "calculator" }

func (t *Tool) Description() string {
	return "Performs basic arithmetic operations: add, subtract, multiply, divide."
}

func (t *Tool) Schema() catalyst.Schema {
	return catalyst.Schema{
		Params: []catalyst.Param{
			{Name: "operation", Type: "string", Description: "The arithmetic operation to perform.", Required: true, Allowed: []string{"add", "subtract", "multiply", "divide"}},
			{Name: "a", Type: "number", Description: "The first operand.", Required: true},
			{Name: "b", Type: "number", Description: "The second operand.", Required: true},
		},
		Example: `calculator(operation="add", a=2, b=3)`,
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (any, error) {
	op, ok := args["operation"].(string)
	if !ok || op == "" {
		return nil, fmt.Errorf("missing required parameter: operation")
	}

	a, err := toFloat(args["a"])
	if err != nil {
		return nil, fmt.Errorf("parameter a must be a number: %v", args["a"])
	}
	b, err := toFloat(args["b"])
	if err != nil {
		return nil, fmt.Errorf("parameter b must be a number: %v", args["b"])
	}

	switch op {
	case "add":
		return a + b, nil
	case "subtract":
		return a - b, nil
	case "multiply":
		return a * b, nil
	case "divide":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	default:
		return nil, fmt.Errorf("unknown operation: %s", op)
	}
}

// toFloat coerces JSON-decoded and placeholder-substituted values to
// float64. Placeholders can deliver numbers as strings.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
