// Package builtin holds the tools tether ships with.
package builtin

import (
	"fmt"
	"time"

	"github.com/papercomputeco/tether/pkg/tools"
)

// Defaults is the registration list used by the agent runtime.
func Defaults() []tools.Tool {
	return []tools.Tool{
		Calculator(),
		Weather(),
		Clock(time.Now),
	}
}

func number(input map[string]any, key string) (float64, error) {
	switch v := input[key].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}
