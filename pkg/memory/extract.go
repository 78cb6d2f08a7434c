package memory

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinMessageChars is the shortest normalized message extraction looks at.
	MinMessageChars = 18

	// MinRecallChars is the shortest fact accepted from a recall phrase.
	MinRecallChars = 8

	// MaxCandidateChars bounds a whole-message candidate. Longer messages
	// are truncated and end in an ellipsis.
	MaxCandidateChars = 220

	ellipsis = "..."
)

// recallPhrase captures the fact following "remember that" and its
// localized forms.
var recallPhrase = regexp.MustCompile(`(?i)\b(?:remember that|recuerda que)\s+(.+)`)

// firstPersonMarkers are declarative phrases that mark a message as a
// statement about the user.
var firstPersonMarkers = []string{
	"my name is",
	"i am",
	"i'm",
	"i work",
	"i prefer",
	"i like",
	"i live in",
	"i use",
	"i'm learning",
	"me llamo",
	"mi nombre es",
	"soy",
	"trabajo",
	"prefiero",
	"me gusta",
	"vivo en",
	"uso",
	"estoy aprendiendo",
}

var firstPersonPattern = compileMarkers(firstPersonMarkers)

// compileMarkers builds a case-insensitive pattern matching any marker as
// whole words. Word characters include every Unicode letter and digit.
func compileMarkers(markers []string) *regexp.Regexp {
	quoted := make([]string, 0, len(markers))
	for _, m := range markers {
		quoted = append(quoted, regexp.QuoteMeta(m))
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}'])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}'])`)
}

// Extract returns candidate memories found in a user message, in first-seen
// order and without duplicates.
func Extract(message string) []string {
	text := normalize(message)
	if utf8.RuneCountInString(text) < MinMessageChars {
		return nil
	}

	recall := recallPhrase.FindStringSubmatch(text)
	if strings.HasSuffix(text, "?") && recall == nil {
		return nil
	}

	var candidates []string

	if recall != nil {
		fact := strings.TrimRight(recall[1], ".!?;:,… ")
		if utf8.RuneCountInString(fact) >= MinRecallChars {
			candidates = append(candidates, fact)
		}
	}

	if firstPersonPattern.MatchString(text) {
		candidates = append(candidates, truncate(text, MaxCandidateChars))
	}

	return dedupe(candidates)
}

// normalize collapses every whitespace run to a single space and folds
// typographic apostrophes so "I’m" matches like "I'm".
func normalize(message string) string {
	message = strings.ReplaceAll(message, "’", "'")
	return strings.Join(strings.Fields(message), " ")
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:limit-utf8.RuneCountInString(ellipsis)]), " ") + ellipsis
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
