package memory

import "strings"

// MemoriesHeader introduces the recalled memories in the system prompt.
const MemoriesHeader = "Relevant memories about the user:"

// ComposeSystemPrompt merges the base instructions with recalled memories.
// It returns "" when both are empty, in which case the request carries no
// system prompt at all.
func ComposeSystemPrompt(base string, memories []string) string {
	base = strings.TrimSpace(base)
	if len(memories) == 0 {
		return base
	}

	var sb strings.Builder
	if base != "" {
		sb.WriteString(base)
		sb.WriteString("\n\n")
	}
	sb.WriteString(MemoriesHeader)
	for _, m := range memories {
		sb.WriteString("\n- ")
		sb.WriteString(m)
	}
	return sb.String()
}
