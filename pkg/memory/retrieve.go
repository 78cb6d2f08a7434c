package memory

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/papercomputeco/tether/pkg/storage"
)

const (
	// MinKeywordChars is the shortest word kept as a query keyword.
	MinKeywordChars = 4

	// RecallWindow is how many recent memories are considered per recall.
	RecallWindow = 100

	// keywordWeight is the score of one keyword hit. Confidence is in
	// [0, 1] so a single hit always outranks any confidence difference.
	keywordWeight = 10
)

// Keywords returns the distinct lowercase alphanumeric words of the query
// that are at least MinKeywordChars long, in first-seen order.
func Keywords(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var keywords []string
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < MinKeywordChars {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}
	return keywords
}

type scored struct {
	memory *storage.Memory
	hits   int
	score  float64
}

// Rank selects the contents of the memories most relevant to query under
// budget.
//
// Each memory scores ten points per keyword it contains plus its confidence.
// Candidates are taken greedily by descending score, then recency. When the
// query has keywords, memories matching none of them are never selected.
// A memory that would push the selected total over budget.MaxChars is
// skipped and later, shorter ones may still fit.
func Rank(memories []*storage.Memory, query string, budget Budget) []string {
	if budget.MaxItems <= 0 || budget.MaxChars <= 0 || len(memories) == 0 {
		return nil
	}

	keywords := Keywords(query)

	candidates := make([]scored, 0, len(memories))
	for _, m := range memories {
		if m == nil {
			continue
		}
		content := strings.ToLower(m.Content)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				hits++
			}
		}
		candidates = append(candidates, scored{
			memory: m,
			hits:   hits,
			score:  float64(keywordWeight*hits) + m.Confidence,
		})
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		if cmp := b.memory.UpdatedAt.Compare(a.memory.UpdatedAt); cmp != 0 {
			return cmp
		}
		switch {
		case a.memory.ID > b.memory.ID:
			return -1
		case a.memory.ID < b.memory.ID:
			return 1
		}
		return 0
	})

	var (
		selected []string
		used     int
	)
	for _, c := range candidates {
		if len(selected) >= budget.MaxItems {
			break
		}
		if len(keywords) > 0 && c.hits == 0 {
			continue
		}
		size := utf8.RuneCountInString(c.memory.Content)
		if used+size > budget.MaxChars {
			continue
		}
		selected = append(selected, c.memory.Content)
		used += size
	}
	return selected
}
