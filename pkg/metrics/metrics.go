// Package metrics holds the Prometheus collectors of the agent runtime.
//
// Collectors are registered on a caller supplied registry so tests and
// embedded runtimes never touch the global default registry. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tether"

// Tool call statuses.
const (
	ToolStatusOK    = "ok"
	ToolStatusError = "error"
)

// Metrics records agent, tool and memory activity.
type Metrics struct {
	turns            *prometheus.CounterVec
	llmRequests      *prometheus.CounterVec
	llmDuration      prometheus.Histogram
	toolCalls        *prometheus.CounterVec
	memoriesSaved    prometheus.Counter
	memoriesRecalled prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Agent turns by terminal outcome",
		}, []string{"outcome"}),
		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM requests by stop reason",
		}, []string{"stop_reason"}),
		llmDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Seconds spent waiting on the LLM service per request",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and status",
		}, []string{"tool", "status"}),
		memoriesSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_saved_total",
			Help:      "Memories written by extraction, including refreshed duplicates",
		}),
		memoriesRecalled: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memories_recalled",
			Help:      "Memories injected into the system prompt per LLM request",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
	}
}

// ObserveTurn counts a finished turn.
func (m *Metrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// ObserveLLMRequest counts one LLM round trip. An empty stop reason means the
// request failed.
func (m *Metrics) ObserveLLMRequest(stopReason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if stopReason == "" {
		stopReason = "error"
	}
	m.llmRequests.WithLabelValues(stopReason).Inc()
	m.llmDuration.Observe(elapsed.Seconds())
}

// ObserveToolCall counts one tool execution.
func (m *Metrics) ObserveToolCall(tool string, isError bool) {
	if m == nil {
		return
	}
	status := ToolStatusOK
	if isError {
		status = ToolStatusError
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// ObserveMemoriesSaved counts saved memories.
func (m *Metrics) ObserveMemoriesSaved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.memoriesSaved.Add(float64(n))
}

// ObserveMemoriesRecalled records how many memories one recall selected.
func (m *Metrics) ObserveMemoriesRecalled(n int) {
	if m == nil {
		return
	}
	m.memoriesRecalled.Observe(float64(n))
}
