package utils

import "strings"

// Truncate is a simple string truncate. It counts runes so multi-byte text
// is never cut mid-character.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// OneLine collapses whitespace runs, newlines included, to single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
