package query

// ConfidenceWeights controls how execution signals temper the base tier.
type ConfidenceWeights struct {
	Baseline           float64 // floor share, always granted
	ResolutionStrength float64 // weakest RESOLVED_TO link crossed
	EvidenceSupport    float64 // whether the traversal produced rows
}

// DefaultConfidenceWeights returns balanced weights. The three parts sum to
// one so a clean full-match answer lands exactly on its tier.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Baseline:           0.5,
		ResolutionStrength: 0.25,
		EvidenceSupport:    0.25,
	}
}

// Confidence tiers by entity match completeness: every referenced entity
// matched, some matched, or none matched.
const (
	tierFullMatch    = 0.9
	tierPartialMatch = 0.5
	tierNoMatch      = 0.0
)

// Factors are the execution signals confidence is computed from.
type Factors struct {
	// MatchedEntities / ReferencedEntities give match completeness.
	// A question referencing no entities by name counts as a full match.
	MatchedEntities    int
	ReferencedEntities int

	// MinResolution is the weakest resolution link crossed, 1.0 when the
	// traversal stayed within one graph.
	MinResolution float64

	// RowCount is the number of result rows produced.
	RowCount int
}

// ComputeConfidence maps execution signals to a score in [0, 1]. The base
// tier comes from entity match completeness; resolution strength and
// evidence support scale it down, never up.
func ComputeConfidence(f Factors, weights ConfidenceWeights) float64 {
	tier := tierFullMatch
	switch {
	case f.ReferencedEntities == 0:
		tier = tierFullMatch
	case f.MatchedEntities == 0:
		tier = tierNoMatch
	case f.MatchedEntities < f.ReferencedEntities:
		tier = tierPartialMatch
	}
	if tier == 0 {
		return 0
	}

	support := 0.0
	if f.RowCount > 0 {
		support = 1.0
	}
	scale := weights.Baseline +
		weights.ResolutionStrength*clamp01(f.MinResolution) +
		weights.EvidenceSupport*support

	return clamp01(tier * clamp01(scale))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
