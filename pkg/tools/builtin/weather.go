package builtin

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/papercomputeco/tether/pkg/tools"
)

type weatherReport struct {
	City        string `json:"city"`
	Temperature int    `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    int    `json:"humidity"`
}

// Weather returns simulated weather for a city.
func Weather() tools.Tool {
	return tools.Tool{
		Name:        "get_weather",
		Description: "Gets current weather for a city. Note: this is a mock, returns simulated data.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"city": {Type: "string", Description: "City name"},
			},
			Required: []string{"city"},
		},
		Execute: func(_ context.Context, input map[string]any) (string, error) {
			city, _ := input["city"].(string)
			out, err := json.Marshal(weatherReport{
				City:        city,
				Temperature: 22,
				Condition:   "Sunny",
				Humidity:    65,
			})
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}
