package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/papercomputeco/tether/pkg/metrics"
)

// family returns the gathered metric family with the given name.
func family(reg *prometheus.Registry, name string) *dto.MetricFamily {
	mfs, err := reg.Gather()
	Expect(err).NotTo(HaveOccurred())
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

var _ = Describe("Metrics", func() {
	var (
		reg *prometheus.Registry
		m   *metrics.Metrics
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		m = metrics.New(reg)
	})

	It("counts turns by outcome", func() {
		m.ObserveTurn("done")
		m.ObserveTurn("done")
		m.ObserveTurn("aborted")

		Expect(family(reg, "tether_turns_total").GetMetric()).To(HaveLen(2))
	})

	It("labels failed requests as errors", func() {
		m.ObserveLLMRequest("", time.Second)
		m.ObserveLLMRequest("end_turn", 2*time.Second)

		Expect(family(reg, "tether_llm_requests_total").GetMetric()).To(HaveLen(2))
		hist := family(reg, "tether_llm_request_duration_seconds").GetMetric()[0].GetHistogram()
		Expect(hist.GetSampleCount()).To(Equal(uint64(2)))
		Expect(hist.GetSampleSum()).To(BeNumerically("~", 3.0, 1e-9))
	})

	It("counts tool calls by status", func() {
		m.ObserveToolCall("calculator", false)
		m.ObserveToolCall("calculator", true)

		Expect(family(reg, "tether_tool_calls_total").GetMetric()).To(HaveLen(2))
	})

	It("ignores non-positive saved counts", func() {
		m.ObserveMemoriesSaved(0)
		m.ObserveMemoriesSaved(2)

		saved := family(reg, "tether_memories_saved_total").GetMetric()[0].GetCounter().GetValue()
		Expect(saved).To(Equal(2.0))
	})

	It("is safe to use when nil", func() {
		var nilMetrics *metrics.Metrics
		Expect(func() {
			nilMetrics.ObserveTurn("done")
			nilMetrics.ObserveLLMRequest("end_turn", time.Second)
			nilMetrics.ObserveToolCall("clock", false)
			nilMetrics.ObserveMemoriesSaved(1)
			nilMetrics.ObserveMemoriesRecalled(1)
		}).NotTo(Panic())
	})

	It("refuses double registration on the same registry", func() {
		Expect(func() { metrics.New(reg) }).To(Panic())
	})
})
