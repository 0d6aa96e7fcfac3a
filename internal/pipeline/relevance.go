package pipeline

import (
	"path/filepath"
	"strings"
)

// DefaultRelevanceThreshold is the minimum relevance score a file needs
// to take part in the build. Overridable via Options.
const DefaultRelevanceThreshold = 0.3

// FileDecision records the selection outcome for one discovered file.
// Rejected files are kept in the run report with their score and reason
// so a rejection is always inspectable, never silent.
type FileDecision struct {
	File     string  `json:"file"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
	Selected bool    `json:"selected"`
}

// scoreCSV rates a tabular file against the goal using its filename and
// header row. Pure function of its inputs.
func scoreCSV(file string, headers []string, goal Goal) (float64, string) {
	name := strings.ToLower(filepath.Base(file))
	score := 0.0
	var reasons []string

	for _, entity := range goal.PrimaryEntities {
		entity = strings.ToLower(entity)
		if strings.Contains(name, entity) {
			score += 0.3
			reasons = append(reasons, "filename contains entity '"+entity+"'")
		}
		for _, h := range headers {
			if strings.Contains(strings.ToLower(h), entity) {
				score += 0.2
				reasons = append(reasons, "has column related to '"+entity+"'")
				break
			}
		}
	}

	if hasIDColumn(headers) {
		score += 0.2
		reasons = append(reasons, "contains id columns")
	}

	if strings.Contains(name, "mapping") || anyHeaderContains(headers, "_to_") {
		score += 0.3
		reasons = append(reasons, "appears to contain relationship data")
	}

	if strings.Contains(goal.Kind, "supply chain") {
		for _, kw := range []string{"supplier", "part", "assembly", "product", "component", "inventory"} {
			if strings.Contains(name, kw) {
				score += 0.2
				reasons = append(reasons, "supply chain related content")
				break
			}
		}
	}

	return cap1(score), joinReasons(reasons)
}

// scoreText rates a free-text file against the goal using its filename
// and a sampled prefix of its content.
func scoreText(file string, sample string, goal Goal) (float64, string) {
	name := strings.ToLower(filepath.Base(file))
	sample = strings.ToLower(sample)
	score := 0.0
	var reasons []string

	for _, source := range goal.ContentSources {
		if strings.Contains(name, strings.ReplaceAll(source, " ", "_")) {
			score += 0.3
			reasons = append(reasons, "matches content type '"+source+"'")
		}
	}

	var found []string
	for _, entity := range goal.PrimaryEntities {
		if strings.Contains(sample, strings.ToLower(entity)) {
			found = append(found, entity)
			score += 0.2
		}
	}
	if len(found) > 0 {
		reasons = append(reasons, "contains entities: "+strings.Join(found, ", "))
	}

	for _, insight := range goal.Insights {
		for _, kw := range strings.Split(insight, ", ") {
			if strings.Contains(sample, kw) {
				score += 0.1
				reasons = append(reasons, "relevant for insight: "+insight)
				break
			}
		}
	}

	if strings.Contains(goal.Kind, "supply chain") {
		for _, kw := range []string{"quality", "issue", "problem", "defect", "complaint", "review"} {
			if strings.Contains(sample, kw) {
				score += 0.2
				reasons = append(reasons, "contains quality or issue information")
				break
			}
		}
	}

	if strings.Contains(name, "review") &&
		(strings.Contains(sample, "rating") || strings.Contains(sample, "stars") || strings.Contains(sample, "★")) {
		score += 0.2
		reasons = append(reasons, "structured review data with ratings")
	}

	return cap1(score), joinReasons(reasons)
}

func hasIDColumn(headers []string) bool {
	for _, h := range headers {
		h = strings.ToLower(h)
		if strings.Contains(h, "_id") || strings.HasSuffix(h, "id") {
			return true
		}
	}
	return false
}

func anyHeaderContains(headers []string, sub string) bool {
	for _, h := range headers {
		if strings.Contains(strings.ToLower(h), sub) {
			return true
		}
	}
	return false
}

func cap1(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	return score
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "no clear relevance indicators"
	}
	return strings.Join(reasons, "; ")
}
