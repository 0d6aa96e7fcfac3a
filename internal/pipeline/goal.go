package pipeline

import (
	"path/filepath"
	"sort"
	"strings"
)

// Goal describes what the graph being built is for. It is derived
// deterministically from the names of the discovered files and drives
// file selection.
type Goal struct {
	Kind            string   `json:"kind_of_graph"`
	Description     string   `json:"description"`
	PrimaryEntities []string `json:"primary_entities"`
	ContentSources  []string `json:"content_sources"`
	Insights        []string `json:"expected_insights"`
}

type domainIndicator struct {
	keyword string
	domain  string
	entity  string
}

// Keyword order matters only for readability; results are deduplicated
// and sorted before use.
var domainIndicators = []domainIndicator{
	{"product", "e-commerce/retail", "Product"},
	{"supplier", "supply chain", "Supplier"},
	{"customer", "customer relationship", "Customer"},
	{"part", "manufacturing", "Part"},
	{"component", "manufacturing", "Part"},
	{"assembly", "bill of materials", "Assembly"},
	{"order", "order management", "Order"},
	{"employee", "human resources", "Employee"},
	{"staff", "human resources", "Employee"},
}

type contentIndicator struct {
	keyword string
	source  string
	insight string
}

var contentIndicators = []contentIndicator{
	{"review", "customer reviews", "quality issues, customer satisfaction"},
	{"report", "business reports", "performance metrics, trends"},
	{"email", "communications", "interactions, sentiments"},
	{"message", "communications", "interactions, sentiments"},
	{"description", "product descriptions", "features, specifications"},
	{"feedback", "feedback data", "issues, improvements"},
	{"log", "system logs", "events, errors"},
}

// DetermineGoal derives the graph goal from the discovered file names.
// It is a pure function: the same file lists always produce the same goal.
func DetermineGoal(csvFiles, textFiles []string) Goal {
	domains := map[string]bool{}
	entities := map[string]bool{}

	for _, file := range csvFiles {
		name := strings.ToLower(filepath.Base(file))
		for _, ind := range domainIndicators {
			if strings.Contains(name, ind.keyword) {
				domains[ind.domain] = true
				entities[ind.entity] = true
				break
			}
		}
	}

	sources := map[string]bool{}
	insights := map[string]bool{}
	for _, file := range textFiles {
		name := strings.ToLower(filepath.Base(file))
		for _, ind := range contentIndicators {
			if strings.Contains(name, ind.keyword) {
				sources[ind.source] = true
				insights[ind.insight] = true
			}
		}
	}

	g := Goal{
		Kind:            primaryDomain(domains),
		PrimaryEntities: sortedKeys(entities),
		ContentSources:  sortedKeys(sources),
		Insights:        sortedKeys(insights),
	}
	g.Description = describe(g)
	return g
}

func primaryDomain(domains map[string]bool) string {
	switch {
	case domains["supply chain"] && domains["bill of materials"]:
		return "supply chain analysis"
	case domains["e-commerce/retail"] && domains["customer relationship"]:
		return "customer analytics"
	case domains["human resources"]:
		return "organizational analysis"
	case domains["manufacturing"]:
		return "production management"
	default:
		return "business operations"
	}
}

func describe(g Goal) string {
	var parts []string
	if len(g.PrimaryEntities) > 0 {
		parts = append(parts, "A graph connecting "+strings.Join(g.PrimaryEntities, ", "))
	}
	if len(g.ContentSources) > 0 {
		parts = append(parts, "enhanced with "+strings.Join(g.ContentSources, ", "))
	}
	if len(g.Insights) > 0 {
		parts = append(parts, "to analyze "+strings.Join(g.Insights, "; "))
	}
	if len(parts) == 0 {
		return "A graph over the available data for " + g.Kind
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
