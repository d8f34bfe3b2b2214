package matching

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Similarity scores two normalized names in [0, 1].
type Similarity interface {
	Score(a, b string) float64
}

// SimilarityFunc adapts a plain function to Similarity.
type SimilarityFunc func(a, b string) float64

// Score implements Similarity.
func (f SimilarityFunc) Score(a, b string) float64 {
	return f(a, b)
}

// LevenshteinSimilarity takes the better of the plain edit ratio and the ratio
// over token-sorted names, so "Smith John" scores like "John Smith".
type LevenshteinSimilarity struct{}

// Score implements Similarity.
func (LevenshteinSimilarity) Score(a, b string) float64 {
	direct := levenshteinRatio(a, b)
	sorted := levenshteinRatio(sortTokens(a), sortTokens(b))
	if sorted > direct {
		return sorted
	}
	return direct
}

func levenshteinRatio(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// NormalizeName trims, strips diacritics, case-folds and collapses
// whitespace. Transformers are stateful, so each call builds its own.
func NormalizeName(name string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}
