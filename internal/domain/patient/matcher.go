package patient

import (
	"sort"
	"strings"
)

// Similarity scores how alike two names are, in [0,1]. It is a pluggable
// strategy so the algorithm can change without touching resolution logic.
type Similarity interface {
	Similarity(a, b string) float64
}

// TokenSortRatio is the default Similarity: both names are lowercased, split
// into tokens, sorted and rejoined, then compared by Levenshtein ratio. Token
// sorting makes the score invariant to word order ("GARZA TIJERINA MARIA" vs
// "MARIA GARZA TIJERINA").
type TokenSortRatio struct{}

func (TokenSortRatio) Similarity(a, b string) float64 {
	na := tokenSort(a)
	nb := tokenSort(b)
	if na == "" && nb == "" {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0.0
	}
	if na == nb {
		return 1.0
	}

	dist := levenshtein(na, nb)
	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

// tokenSort normalizes case and whitespace, then sorts tokens.
func tokenSort(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// levenshtein computes the edit distance between two strings by runes.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

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
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
