package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 3, Levenshtein("kitten", "sitting"))
	assert.Equal(t, 0, Levenshtein("insulin", "insulin"))
	assert.Equal(t, 7, Levenshtein("", "insulin"))
	assert.Equal(t, 7, Levenshtein("insulin", ""))
	assert.Equal(t, 1, Levenshtein("isulin", "insulin"))
}

func TestLevenshteinSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"glucose", "glucosa"},
		{"azucar", "azúcar"},
		{"", "meter"},
	}
	for _, p := range pairs {
		assert.Equal(t, Levenshtein(p[0], p[1]), Levenshtein(p[1], p[0]), "distance(%q,%q)", p[0], p[1])
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"blood", "sugar"}, Tokenize("  Blood   Sugar ", false))
	assert.Equal(t, []string{"Blood", "Sugar"}, Tokenize("Blood Sugar", true))
	assert.Empty(t, Tokenize("   ", false))
}

func TestScoreBounds(t *testing.T) {
	content := "managing blood sugar with insulin"
	tokens := Tokenize("insulin", false)

	score := Score(content, tokens, Options{})
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)

	assert.Zero(t, Score("", tokens, Options{}))
	assert.Zero(t, Score(content, nil, Options{}))
	assert.Zero(t, Score(content, Tokenize("unrelated", false), Options{}))
}

func TestScoreFullCoverageSingleToken(t *testing.T) {
	// One token matching the single content word: coverage 1, density 1.
	score := Score("insulin", Tokenize("insulin", false), Options{})
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestScoreMonotonicInCoverage(t *testing.T) {
	content := "managing blood sugar with insulin daily"
	one := Score(content, Tokenize("insulin", false), Options{})
	both := Score(content, Tokenize("insulin sugar", false), Options{})
	partial := Score(content, Tokenize("insulin unrelated", false), Options{})

	// Adding a second matching term must not hurt, and a non-matching term
	// dilutes coverage.
	assert.GreaterOrEqual(t, both, one)
	assert.Less(t, partial, one)
}

func TestScoreFuzzyMatchesTypo(t *testing.T) {
	content := "Managing blood sugar with insulin"
	tokens := Tokenize("isulin", false)

	exact := Score(content, tokens, Options{})
	fuzzy := Score(content, tokens, Options{Fuzzy: true})

	assert.Zero(t, exact)
	require.Greater(t, fuzzy, 0.0)

	// A fuzzy hit is worth less than the exact spelling.
	exactSpelling := Score(content, Tokenize("insulin", false), Options{Fuzzy: true})
	assert.Less(t, fuzzy, exactSpelling)
}

func TestScoreCaseSensitivity(t *testing.T) {
	content := "Insulin dosage"
	assert.Greater(t, Score(content, Tokenize("insulin", false), Options{}), 0.0)
	assert.Zero(t, Score(content, Tokenize("insulin", true), Options{CaseSensitive: true}))
}

func TestExtractHighlights(t *testing.T) {
	content := "Insulin helps insulin users manage Insulin"
	highlights := ExtractHighlights(content, Tokenize("insulin", false), Options{})

	// Distinct matched words keep their original casing, first occurrence order.
	assert.Equal(t, []string{"Insulin", "insulin"}, highlights)
}

func TestExtractHighlightsFuzzy(t *testing.T) {
	content := "taking isulin every morning"
	highlights := ExtractHighlights(content, Tokenize("insulin", false), Options{Fuzzy: true})
	assert.Equal(t, []string{"isulin"}, highlights)
}
