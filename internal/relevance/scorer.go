// Package relevance scores how well a block of text matches a tokenized
// query, combining term coverage and match density into a 0-1 value. Both the
// search engine and FAQ ranking consume it.
package relevance

import "strings"

const (
	coverageWeight = 0.7
	densityWeight  = 0.3
	fuzzyWeight    = 0.8
)

type Options struct {
	CaseSensitive bool
	Fuzzy         bool
}

// Tokenize splits a query on whitespace, folding case unless caseSensitive.
func Tokenize(query string, caseSensitive bool) []string {
	if !caseSensitive {
		query = strings.ToLower(query)
	}
	return strings.Fields(query)
}

// Score returns 0.7*termCoverage + 0.3*density for content against the query
// tokens. In fuzzy mode a token also matches content words within an edit
// distance of max(1, floor(0.2*len(token))), weighted at 0.8 relative to
// exact matches. Empty content or an empty token set scores 0.
func Score(content string, queryTokens []string, opts Options) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	if !opts.CaseSensitive {
		content = strings.ToLower(content)
	}
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}

	var coverage, occurrences float64
	for _, token := range queryTokens {
		cmp := token
		if !opts.CaseSensitive {
			cmp = strings.ToLower(cmp)
		}

		var exact, fuzzy float64
		threshold := fuzzyThreshold(cmp)
		for _, word := range words {
			if word == cmp {
				exact++
			} else if opts.Fuzzy && Levenshtein(word, cmp) <= threshold {
				fuzzy++
			}
		}

		if exact > 0 {
			coverage += 1
		} else if fuzzy > 0 {
			coverage += fuzzyWeight
		}
		occurrences += exact + fuzzy*fuzzyWeight
	}

	termCoverage := coverage / float64(len(queryTokens))
	density := occurrences / float64(len(words))
	if density > 1 {
		density = 1
	}

	return coverageWeight*termCoverage + densityWeight*density
}

// ExtractHighlights returns the distinct literal substrings of content that
// matched a query token, preserving their original casing.
func ExtractHighlights(content string, queryTokens []string, opts Options) []string {
	if len(queryTokens) == 0 {
		return nil
	}

	original := strings.Fields(content)
	seen := make(map[string]bool)
	var highlights []string

	for _, word := range original {
		cmp := word
		if !opts.CaseSensitive {
			cmp = strings.ToLower(cmp)
		}

		for _, token := range queryTokens {
			t := token
			if !opts.CaseSensitive {
				t = strings.ToLower(t)
			}

			matched := cmp == t
			if !matched && opts.Fuzzy {
				matched = Levenshtein(cmp, t) <= fuzzyThreshold(t)
			}
			if matched {
				if !seen[word] {
					seen[word] = true
					highlights = append(highlights, word)
				}
				break
			}
		}
	}

	return highlights
}

func fuzzyThreshold(token string) int {
	threshold := len(token) / 5
	if threshold < 1 {
		threshold = 1
	}
	return threshold
}

// Levenshtein computes the edit distance between two strings with the
// classic two-row dynamic program.
func Levenshtein(a, b string) int {
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

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
