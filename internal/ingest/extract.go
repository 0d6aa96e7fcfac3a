package ingest

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Mention is one review occurrence of a product: who reviewed it, how they
// rated it, and what they praised or complained about.
type Mention struct {
	Product  string
	User     string
	Rating   float64
	Issues   []string
	Features []string
}

// Extractor turns free text into product mentions. The keyword extractor is
// the deterministic default; the model-backed one handles prose the lexicon
// cannot.
type Extractor interface {
	Extract(ctx context.Context, file string, text string) ([]Mention, error)
}

var (
	userRe    = regexp.MustCompile(`@[A-Za-z0-9_]+`)
	ratingRe  = regexp.MustCompile(`([1-5])\s*(?:/\s*5|\s*stars?\b)`)
	starRunRe = regexp.MustCompile(`★+`)
)

// issueLexicon and featureLexicon are matched as substrings against
// lowercased review text. Multi-word phrases before their single-word
// prefixes, so "difficult assembly" wins over "assembly".
var issueLexicon = []string{
	"difficult assembly", "missing screws", "missing screw", "wobbly",
	"broken", "cracked", "crack", "loose", "scratched", "squeaky",
	"squeak", "uncomfortable", "flimsy", "peeling", "uneven",
}

var featureLexicon = []string{
	"cable management", "easy to assemble", "great value", "sturdy",
	"comfortable", "stylish", "spacious", "storage", "lightweight",
	"solid", "elegant",
}

// KeywordExtractor extracts mentions using fixed patterns and lexicons. It
// needs no model and produces identical output on identical input.
type KeywordExtractor struct{}

func (KeywordExtractor) Extract(_ context.Context, file string, text string) ([]Mention, error) {
	product := ProductFromFilename(file)

	var mentions []Mention
	for _, block := range splitReviews(text) {
		lower := strings.ToLower(block)

		m := Mention{Product: product}
		if u := userRe.FindString(block); u != "" {
			m.User = u
		}
		m.Rating = extractRating(block)

		for _, phrase := range issueLexicon {
			if strings.Contains(lower, phrase) {
				m.Issues = append(m.Issues, phrase)
			}
		}
		for _, phrase := range featureLexicon {
			if strings.Contains(lower, phrase) {
				m.Features = append(m.Features, phrase)
			}
		}

		if m.User == "" && m.Rating == 0 && len(m.Issues) == 0 && len(m.Features) == 0 {
			continue
		}
		mentions = append(mentions, m)
	}
	return mentions, nil
}

// ProductFromFilename derives the reviewed product's name from the file
// name: "stockholm_chair_reviews.md" becomes "Stockholm Chair".
func ProductFromFilename(file string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSuffix(base, "_reviews")
	base = strings.TrimSuffix(base, "_review")
	base = strings.ReplaceAll(base, "_", " ")

	words := strings.Fields(base)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// splitReviews separates a review file into blocks on blank lines and
// markdown rules.
func splitReviews(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	raw := regexp.MustCompile(`\n\s*\n|\n---+\n`).Split(normalized, -1)

	var blocks []string
	for _, b := range raw {
		if s := strings.TrimSpace(b); s != "" {
			blocks = append(blocks, s)
		}
	}
	return blocks
}

func extractRating(block string) float64 {
	if m := ratingRe.FindStringSubmatch(block); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return v
		}
	}
	if stars := starRunRe.FindString(block); stars != "" {
		n := len([]rune(stars))
		if n > 5 {
			n = 5
		}
		return float64(n)
	}
	return 0
}
