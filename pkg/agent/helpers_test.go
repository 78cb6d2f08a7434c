package agent_test

import (
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tether/pkg/llm"
)

// expectToolCallsAnswered asserts that every assistant tool_use message is
// followed by a user message answering each call, in order.
func expectToolCallsAnswered(history []llm.Message) {
	for i, msg := range history {
		uses := msg.ToolUses()
		if msg.Role != llm.RoleAssistant || len(uses) == 0 {
			continue
		}

		ExpectWithOffset(1, i+1).To(BeNumerically("<", len(history)), "tool_use at %d is the last message", i)
		next := history[i+1]
		ExpectWithOffset(1, next.Role).To(Equal(llm.RoleUser), "tool_use at %d not followed by a user message", i)
		ExpectWithOffset(1, next.Content).To(HaveLen(len(uses)))
		for j, use := range uses {
			result, ok := next.Content[j].(llm.ToolResultBlock)
			ExpectWithOffset(1, ok).To(BeTrue(), "tool_use at %d not followed by tool_result", i)
			ExpectWithOffset(1, result.ToolUseID).To(Equal(use.ID))
		}
	}
}
