package resolve

import (
	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/similarity"
)

// DefaultLengthRatio bounds how much the candidate's name length may differ
// from the subject surface text, as a fraction of the longer of the two.
const DefaultLengthRatio = 0.5

// CandidateIndex narrows the match search space before scoring. It groups
// domain nodes by type and filters them by name length, so each subject
// node only gets compared against structurally plausible candidates.
//
// This trades recall for speed: a candidate pruned here can never be
// resolved, which is an accepted limitation rather than a defect.
type CandidateIndex struct {
	byType      map[string][]common.Node
	lengthRatio float64
}

// NewCandidateIndex builds an index over the domain-graph nodes.
// lengthRatio <= 0 falls back to DefaultLengthRatio.
func NewCandidateIndex(domainNodes []common.Node, lengthRatio float64) *CandidateIndex {
	if lengthRatio <= 0 {
		lengthRatio = DefaultLengthRatio
	}

	byType := make(map[string][]common.Node)
	for _, n := range domainNodes {
		byType[n.Type] = append(byType[n.Type], n)
	}

	return &CandidateIndex{
		byType:      byType,
		lengthRatio: lengthRatio,
	}
}

// Candidates returns the domain nodes a subject node may be resolved
// against: same type, name length within the configured ratio of the
// subject surface text.
func (idx *CandidateIndex) Candidates(subject common.Node) []common.Node {
	pool := idx.byType[subject.Type]
	if len(pool) == 0 {
		return nil
	}

	surface := similarity.Normalize(subject.Name())
	if surface == "" {
		return nil
	}

	var out []common.Node
	for _, cand := range pool {
		name := similarity.Normalize(cand.Name())
		if name == "" {
			continue
		}
		if withinLengthRatio(len(surface), len(name), idx.lengthRatio) {
			out = append(out, cand)
		}
	}
	return out
}

func withinLengthRatio(a, b int, ratio float64) bool {
	longer := a
	shorter := b
	if b > a {
		longer = b
		shorter = a
	}
	if longer == 0 {
		return false
	}
	return float64(longer-shorter)/float64(longer) <= ratio
}
