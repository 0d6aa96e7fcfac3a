package similarity

import (
	"strings"

	"github.com/xrash/smetrics"
)

// Jaro-Winkler parameters: prefix boost applies above this base score,
// common prefix is bounded at four characters.
const (
	boostThreshold = 0.7
	prefixSize     = 4
)

var punctuationNormalizer = strings.NewReplacer(
	"’", "'", // right single quotation mark
	"‘", "'", // left single quotation mark
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"–", "-", // en dash
	"—", "-", // em dash
)

// Normalize lowercases, trims, collapses inner whitespace and maps stylized
// punctuation to its ASCII form so that cosmetic differences do not affect
// the score.
func Normalize(s string) string {
	s = punctuationNormalizer.Replace(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// Score computes a normalized Jaro-Winkler similarity in [0,1] between two
// strings. 1.0 means the strings are identical after normalization. An empty
// string on either side yields 0.0. The score is symmetric.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	a = Normalize(a)
	b = Normalize(b)
	if a == "" || b == "" {
		return 0.0
	}

	if a == b {
		return 1.0
	}

	return smetrics.JaroWinkler(a, b, boostThreshold, prefixSize)
}
