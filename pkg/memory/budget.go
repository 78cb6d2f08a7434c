// Package memory turns user messages into durable memories and selects the
// memories worth injecting into the next LLM request.
//
// Everything here is heuristic and deterministic: extraction is a pattern
// match over the message, retrieval is keyword overlap plus confidence.
// There are no extra LLM calls on the turn's critical path.
package memory

import (
	"strings"
	"unicode/utf8"
)

// Budget bounds the memories injected into one system prompt.
type Budget struct {
	MaxItems int `json:"max_items"`
	MaxChars int `json:"max_chars"`
}

var (
	// RecallBudget applies when the user explicitly asks about the past.
	RecallBudget = Budget{MaxItems: 5, MaxChars: 1000}

	// LongMessageBudget applies to messages over LongMessageChars.
	LongMessageBudget = Budget{MaxItems: 4, MaxChars: 800}

	// DefaultBudget applies to short routine messages.
	DefaultBudget = Budget{MaxItems: 3, MaxChars: 550}
)

// LongMessageChars is the length above which a message is considered long.
const LongMessageChars = 180

// triggerKeywords signal explicit recall intent. Matching is a
// case-insensitive substring test.
var triggerKeywords = []string{
	"remember",
	"previous conversation",
	"my profile",
	"last time",
	"what do you know about me",
	"recuerda",
	"recuerdas",
	"conversación anterior",
	"mi perfil",
	"la última vez",
	"qué sabes de mí",
}

// BudgetFor returns the memory budget for the original user message.
func BudgetFor(message string) Budget {
	lowered := strings.ToLower(message)
	for _, kw := range triggerKeywords {
		if strings.Contains(lowered, kw) {
			return RecallBudget
		}
	}

	if utf8.RuneCountInString(message) > LongMessageChars {
		return LongMessageBudget
	}

	return DefaultBudget
}
