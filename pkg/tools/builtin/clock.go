package builtin

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/papercomputeco/tether/pkg/tools"
)

// TimeLayout is the format get_time answers in.
const TimeLayout = "2006-01-02 15:04:05"

// Clock returns the current local date and time from now.
func Clock(now func() time.Time) tools.Tool {
	return tools.Tool{
		Name:        "get_time",
		Description: "Returns the current date and time",
		InputSchema: &jsonschema.Schema{Type: "object"},
		Execute: func(context.Context, map[string]any) (string, error) {
			return now().Format(TimeLayout), nil
		},
	}
}
