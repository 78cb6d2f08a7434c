package memory_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tether/pkg/memory"
)

var _ = Describe("BudgetFor", func() {
	DescribeTable("selects the budget from the message",
		func(message string, expected memory.Budget) {
			Expect(memory.BudgetFor(message)).To(Equal(expected))
		},
		Entry("explicit recall", "Do you remember my dog's name?", memory.Budget{MaxItems: 5, MaxChars: 1000}),
		Entry("recall trigger in any case", "RECUERDAS lo que te dije?", memory.RecallBudget),
		Entry("profile trigger", "Update my profile please", memory.RecallBudget),
		Entry("localized multi-word trigger", "¿Qué sabes de mí?", memory.RecallBudget),
		Entry("long message", strings.Repeat("a", 181), memory.Budget{MaxItems: 4, MaxChars: 800}),
		Entry("message at the threshold", strings.Repeat("a", 180), memory.Budget{MaxItems: 3, MaxChars: 550}),
		Entry("long message counted in characters", strings.Repeat("é", 180), memory.DefaultBudget),
		Entry("short routine message", "¿Cuánto es 10 + 5?", memory.DefaultBudget),
	)

	It("prefers the recall budget over the long message budget", func() {
		message := "remember " + strings.Repeat("x", 200)
		Expect(memory.BudgetFor(message)).To(Equal(memory.RecallBudget))
	})
})
