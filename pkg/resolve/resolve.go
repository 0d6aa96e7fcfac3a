package resolve

import (
	"sort"

	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/similarity"
)

// DefaultThreshold is the minimum similarity for a resolution link.
const DefaultThreshold = 0.85

// tieEpsilon is the score distance within which two candidates count as tied.
const tieEpsilon = 1e-9

// Matching strategy identifiers recorded on resolution links.
const (
	StrategyExact       = "exact"
	StrategyJaroWinkler = "jaro_winkler"
)

// Link is a resolved subject-to-domain correspondence.
type Link struct {
	SubjectID string  `json:"subject_id"`
	DomainID  string  `json:"domain_id"`
	Score     float64 `json:"score"`
	Strategy  string  `json:"strategy"`
}

// Stats summarizes a resolution run. Ambiguous counts ties that were broken
// deterministically; they still produce links but are surfaced so thresholds
// can be tuned.
type Stats struct {
	Resolved   int            `json:"resolved"`
	Unresolved int            `json:"unresolved"`
	Ambiguous  int            `json:"ambiguous"`
	ByType     map[string]int `json:"resolved_by_type"`
}

// Result is the complete output of a resolution run: one link per resolved
// subject node, the ids left unresolved, and run statistics.
type Result struct {
	Links      []Link   `json:"links"`
	Unresolved []string `json:"unresolved"`
	Stats      Stats    `json:"stats"`
}

// Resolve maps each subject node to at most one domain node. For every
// subject node it scores all candidates from the index, keeps the maximum,
// and emits a link when the maximum reaches threshold.
//
// Ties within epsilon of the top score are broken deterministically:
// an exact case-insensitive name match wins, otherwise the candidate whose
// id sorts first. Identical inputs always produce an identical result.
//
// Domain nodes are never modified; annotating subject nodes with their
// resolved ids is the caller's concern.
func Resolve(subjectNodes, domainNodes []common.Node, threshold float64) Result {
	return ResolveWithIndex(subjectNodes, NewCandidateIndex(domainNodes, 0), threshold)
}

// ResolveWithIndex is Resolve with a caller-configured candidate index.
func ResolveWithIndex(subjectNodes []common.Node, idx *CandidateIndex, threshold float64) Result {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	// Sorted iteration keeps the output order independent of input order.
	subjects := make([]common.Node, len(subjectNodes))
	copy(subjects, subjectNodes)
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })

	res := Result{
		Stats: Stats{ByType: make(map[string]int)},
	}

	for _, subject := range subjects {
		link, ambiguous, ok := resolveOne(subject, idx.Candidates(subject), threshold)
		if !ok {
			res.Unresolved = append(res.Unresolved, subject.ID)
			res.Stats.Unresolved++
			continue
		}
		if ambiguous {
			res.Stats.Ambiguous++
		}
		res.Links = append(res.Links, link)
		res.Stats.Resolved++
		res.Stats.ByType[subject.Type]++
	}

	return res
}

func resolveOne(subject common.Node, candidates []common.Node, threshold float64) (Link, bool, bool) {
	surface := subject.Name()

	best := -1.0
	var top []common.Node
	scores := make(map[string]float64, len(candidates))

	for _, cand := range candidates {
		score := similarity.Score(surface, cand.Name())
		scores[cand.ID] = score

		switch {
		case score > best+tieEpsilon:
			best = score
			top = top[:0]
			top = append(top, cand)
		case score >= best-tieEpsilon:
			top = append(top, cand)
		}
	}

	if best < threshold || len(top) == 0 {
		return Link{}, false, false
	}

	ambiguous := len(top) > 1
	chosen := breakTie(surface, top)

	strategy := StrategyJaroWinkler
	if similarity.Normalize(surface) == similarity.Normalize(chosen.Name()) {
		strategy = StrategyExact
	}

	return Link{
		SubjectID: subject.ID,
		DomainID:  chosen.ID,
		Score:     scores[chosen.ID],
		Strategy:  strategy,
	}, ambiguous, true
}

// breakTie prefers an exact case-insensitive name match, then the smallest
// domain id, so repeated runs always pick the same candidate.
func breakTie(surface string, top []common.Node) common.Node {
	normalized := similarity.Normalize(surface)

	var exact []common.Node
	for _, cand := range top {
		if similarity.Normalize(cand.Name()) == normalized {
			exact = append(exact, cand)
		}
	}
	pool := top
	if len(exact) > 0 {
		pool = exact
	}

	chosen := pool[0]
	for _, cand := range pool[1:] {
		if cand.ID < chosen.ID {
			chosen = cand
		}
	}
	return chosen
}

// Edges converts resolution links into RESOLVED_TO graph edges carrying the
// similarity score and matching strategy.
func (r Result) Edges() []common.Edge {
	edges := make([]common.Edge, 0, len(r.Links))
	for _, link := range r.Links {
		edges = append(edges, common.Edge{
			Type:     common.EdgeResolvedTo,
			From:     link.SubjectID,
			To:       link.DomainID,
			Weight:   link.Score,
			Strategy: link.Strategy,
		})
	}
	return edges
}

// Mapping returns the resolution link for each resolved subject id.
func (r Result) Mapping() map[string]Link {
	m := make(map[string]Link, len(r.Links))
	for _, link := range r.Links {
		m[link.SubjectID] = link
	}
	return m
}
