package ui

import (
	"sort"
	"strings"
)

// MaxSuggestions bounds the result of Suggest
const MaxSuggestions = 3

// Suggest returns up to MaxSuggestions candidates close to target, closest
// first. Matching is case-insensitive. A candidate containing target is
// always a match; otherwise the edit distance must be at most a third of the
// target length (minimum 1).
func Suggest(target string, candidates []string) []string {
	t := strings.ToLower(target)
	limit := len([]rune(t)) / 3
	if limit < 1 {
		limit = 1
	}

	type scored struct {
		value string
		score int
	}
	var matches []scored
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true

		lc := strings.ToLower(c)
		switch {
		case t != "" && strings.Contains(lc, t):
			matches = append(matches, scored{c, 0})
		default:
			if d := Distance(t, lc); d <= limit {
				matches = append(matches, scored{c, d})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score < matches[j].score
		}
		return matches[i].value < matches[j].value
	})
	out := make([]string, 0, MaxSuggestions)
	for i := 0; i < len(matches) && i < MaxSuggestions; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// Distance is the Levenshtein distance between a and b, counted in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
