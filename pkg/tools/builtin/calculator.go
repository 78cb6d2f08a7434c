package builtin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/papercomputeco/tether/pkg/tools"
)

// Calculator performs one arithmetic operation on two numbers.
func Calculator() tools.Tool {
	return tools.Tool{
		Name:        "calculator",
		Description: "Performs basic math operations. Can add, subtract, multiply and divide two numbers.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"operation": {
					Type:        "string",
					Enum:        []any{"add", "subtract", "multiply", "divide"},
					Description: "The operation to perform",
				},
				"a": {Type: "number", Description: "First number"},
				"b": {Type: "number", Description: "Second number"},
			},
			Required: []string{"operation", "a", "b"},
		},
		Execute: calculate,
	}
}

func calculate(_ context.Context, input map[string]any) (string, error) {
	op, _ := input["operation"].(string)

	a, err := number(input, "a")
	if err != nil {
		return "", err
	}
	b, err := number(input, "b")
	if err != nil {
		return "", err
	}

	var result float64
	switch op {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return "Error: Division by zero", nil
		}
		result = a / b
	default:
		return fmt.Sprintf("Unknown operation: %s", op), nil
	}

	return strconv.FormatFloat(result, 'f', -1, 64), nil
}
