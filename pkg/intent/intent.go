package intent

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/logger"
)

// Intent is one of the closed set of query intents. Exactly one is active
// per question.
type Intent string

const (
	EntityListing        Intent = "ENTITY_LISTING"
	AttributeLookup      Intent = "ATTRIBUTE_LOOKUP"
	TextEvidence         Intent = "TEXT_EVIDENCE"
	MultiHopRelationship Intent = "MULTI_HOP_RELATIONSHIP"
	Aggregation          Intent = "AGGREGATION"
	Unknown              Intent = "UNKNOWN"
)

// Valid reports whether i belongs to the closed intent set.
func (i Intent) Valid() bool {
	switch i {
	case EntityListing, AttributeLookup, TextEvidence, MultiHopRelationship, Aggregation, Unknown:
		return true
	}
	return false
}

// Classification is the classifier's terminal output: the active intent and
// the entity types and names the question references.
type Classification struct {
	Intent      Intent   `json:"intent"`
	EntityTypes []string `json:"entity_types"`
	EntityNames []string `json:"entity_names"`

	// AggregateOp is set for AGGREGATION intents, from the fixed
	// keyword-to-operation table.
	AggregateOp string `json:"aggregate_op,omitempty"`
}

// Fallback classifies questions no deterministic pattern matched. It must
// return an intent from the closed set; anything else is treated as UNKNOWN.
type Fallback interface {
	Classify(ctx context.Context, question string) (Classification, error)
}

// Classifier maps natural-language questions to query intents. Keyword
// patterns run first and decide deterministically; only questions no pattern
// matches are delegated to the fallback.
type Classifier struct {
	catalog  map[string][]string // entity type -> known names, for reference extraction
	fallback Fallback
}

// NewClassifier creates a classifier over the known graph entities.
// catalog maps entity types to the names present in the unified graph;
// fallback may be nil, in which case unmatched questions stay UNKNOWN.
func NewClassifier(catalog map[string][]string, fallback Fallback) *Classifier {
	return &Classifier{
		catalog:  catalog,
		fallback: fallback,
	}
}

var typeKeywords = []struct {
	keyword string
	typ     string
}{
	{"products", common.TypeProduct},
	{"product", common.TypeProduct},
	{"suppliers", common.TypeSupplier},
	{"supplier", common.TypeSupplier},
	{"parts", common.TypePart},
	{"part", common.TypePart},
	{"assemblies", common.TypeAssembly},
	{"assembly", common.TypeAssembly},
	{"customers", common.TypeUser},
	{"users", common.TypeUser},
	{"reviewers", common.TypeUser},
	{"ratings", common.TypeRating},
	{"rating", common.TypeRating},
	{"issues", common.TypeIssue},
	{"issue", common.TypeIssue},
	{"problems", common.TypeIssue},
	{"features", common.TypeFeature},
	{"feature", common.TypeFeature},
}

// Fixed keyword-to-operation table. Whole-word matches only, so "country"
// never triggers "count".
var aggregateOps = []struct {
	re *regexp.Regexp
	op string
}{
	{regexp.MustCompile(`\bhow many\b`), "count"},
	{regexp.MustCompile(`\bnumber of\b`), "count"},
	{regexp.MustCompile(`\bcount\b`), "count"},
	{regexp.MustCompile(`\baverage\b`), "avg"},
	{regexp.MustCompile(`\bavg\b`), "avg"},
	{regexp.MustCompile(`\btotal\b`), "sum"},
	{regexp.MustCompile(`\bsum\b`), "sum"},
	{regexp.MustCompile(`\bmost\b`), "max"},
	{regexp.MustCompile(`\bhighest\b`), "max"},
	{regexp.MustCompile(`\bmaximum\b`), "max"},
	{regexp.MustCompile(`\bleast\b`), "min"},
	{regexp.MustCompile(`\bfewest\b`), "min"},
	{regexp.MustCompile(`\blowest\b`), "min"},
	{regexp.MustCompile(`\bminimum\b`), "min"},
}

var evidenceKeywords = []string{
	"say about", "saying about", "saying", "reviews", "review", "feedback",
	"complain", "customers think", "reported",
}

var listingKeywords = []string{
	"available", "exist", "list all", "what products", "what suppliers",
	"what parts", "show all",
}

var relationalKeywords = []string{
	"provide", "provides", "supply", "supplies", "supplied",
	"contains", "contain", "made of", "part of", "used in", "belong",
}

var attributeKeywords = []string{
	"price", "cost", "contact", "email", "website", "city", "country",
	"address", "specialty", "description", "what is the",
}

// Classify determines the question's intent. The deterministic keyword path
// always runs first; the fallback is consulted only when nothing matched,
// and its answer is validated against the closed intent set.
func (c *Classifier) Classify(ctx context.Context, question string) (Classification, error) {
	q := strings.ToLower(question)

	types := referencedTypes(q)
	names := c.referencedNames(question)

	if op, ok := matchAggregateOp(q); ok {
		return Classification{
			Intent:      Aggregation,
			EntityTypes: types,
			EntityNames: names,
			AggregateOp: op,
		}, nil
	}

	if containsAny(q, evidenceKeywords) {
		return Classification{Intent: TextEvidence, EntityTypes: types, EntityNames: names}, nil
	}

	// A chain of entity types joined by relational language is a multi-hop
	// traversal question ("which suppliers provide parts for X").
	if len(types) >= 2 && containsAny(q, relationalKeywords) {
		return Classification{Intent: MultiHopRelationship, EntityTypes: types, EntityNames: names}, nil
	}

	if containsAny(q, listingKeywords) && len(types) > 0 {
		return Classification{Intent: EntityListing, EntityTypes: types, EntityNames: names}, nil
	}

	if containsAny(q, attributeKeywords) && (len(names) > 0 || len(types) > 0) {
		return Classification{Intent: AttributeLookup, EntityTypes: types, EntityNames: names}, nil
	}

	if c.fallback == nil {
		return Classification{Intent: Unknown, EntityTypes: types, EntityNames: names}, nil
	}

	cls, err := c.fallback.Classify(ctx, question)
	if err != nil {
		logger.Warn("[Intent] Fallback classification failed", "err", err)
		return Classification{Intent: Unknown, EntityTypes: types, EntityNames: names}, nil
	}
	if !cls.Intent.Valid() {
		logger.Warn("[Intent] Fallback returned intent outside the closed set", "intent", cls.Intent)
		cls.Intent = Unknown
	}
	if len(cls.EntityTypes) == 0 {
		cls.EntityTypes = types
	}
	if len(cls.EntityNames) == 0 {
		cls.EntityNames = names
	}
	return cls, nil
}

func containsAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func matchAggregateOp(q string) (string, bool) {
	for _, entry := range aggregateOps {
		if entry.re.MatchString(q) {
			return entry.op, true
		}
	}
	return "", false
}

func referencedTypes(q string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, entry := range typeKeywords {
		if strings.Contains(q, entry.keyword) && !seen[entry.typ] {
			seen[entry.typ] = true
			out = append(out, entry.typ)
		}
	}
	return out
}

var quotedRe = regexp.MustCompile(`"([^"]+)"`)

// referencedNames extracts entity names from the question: known catalog
// names first, then quoted text, then a trailing capitalized word pair as a
// last resort.
func (c *Classifier) referencedNames(question string) []string {
	q := strings.ToLower(question)

	seen := make(map[string]bool)
	var out []string

	var catalogNames []string
	for _, names := range c.catalog {
		catalogNames = append(catalogNames, names...)
	}
	sort.Strings(catalogNames)

	for _, name := range catalogNames {
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if strings.Contains(q, key) && !seen[key] {
			seen[key] = true
			out = append(out, name)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, m := range quotedRe.FindAllStringSubmatch(question, -1) {
		name := strings.TrimSpace(m[1])
		key := strings.ToLower(name)
		if name != "" && !seen[key] {
			seen[key] = true
			out = append(out, name)
		}
	}
	if len(out) > 0 {
		return out
	}

	if name := trailingCapitalizedPair(question); name != "" {
		out = append(out, name)
	}
	return out
}

func trailingCapitalizedPair(question string) string {
	words := strings.FieldsFunc(question, func(r rune) bool {
		return unicode.IsSpace(r) || r == '?' || r == ',' || r == '.'
	})

	isCapitalized := func(w string) bool {
		r := []rune(w)
		return len(r) > 0 && unicode.IsUpper(r[0])
	}

	for i := len(words) - 1; i > 0; i-- {
		if isCapitalized(words[i]) && isCapitalized(words[i-1]) && i-1 > 0 {
			return words[i-1] + " " + words[i]
		}
	}
	return ""
}
