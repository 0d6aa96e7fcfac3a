package resolve

import (
	"testing"

	"github.com/weftlabs/weft/pkg/common"
)

func domainNode(id, typ, name string) common.Node {
	return common.Node{
		ID:         id,
		Type:       typ,
		Attributes: map[string]any{"name": name},
		Origin:     common.OriginDomain,
	}
}

func subjectNode(id, typ, surface string) common.Node {
	return common.Node{
		ID:         id,
		Type:       typ,
		Attributes: map[string]any{"name": surface},
		Origin:     common.OriginSubject,
	}
}

func TestCandidatesNeverCrossTypes(t *testing.T) {
	domain := []common.Node{
		domainNode("P1", common.TypeProduct, "Stockholm Chair"),
		domainNode("S1", common.TypeSupplier, "Stockholm Chair"), // same name, wrong type
		domainNode("A1", common.TypeAssembly, "Stockholm Chair"),
	}
	idx := NewCandidateIndex(domain, 0)

	got := idx.Candidates(subjectNode("e1", common.TypeProduct, "Stockholm Chair"))
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].ID != "P1" {
		t.Errorf("expected P1, got %s", got[0].ID)
	}
}

func TestCandidatesLengthBound(t *testing.T) {
	domain := []common.Node{
		domainNode("P1", common.TypeProduct, "Stockholm Chair"),
		domainNode("P2", common.TypeProduct, "X"),
	}
	idx := NewCandidateIndex(domain, 0.5)

	got := idx.Candidates(subjectNode("e1", common.TypeProduct, "stockholm chair"))
	if len(got) != 1 || got[0].ID != "P1" {
		t.Fatalf("expected only P1 within length bound, got %v", got)
	}
}

func TestCandidatesUnknownType(t *testing.T) {
	idx := NewCandidateIndex([]common.Node{
		domainNode("P1", common.TypeProduct, "Stockholm Chair"),
	}, 0)

	if got := idx.Candidates(subjectNode("e1", common.TypeIssue, "wobbly leg")); got != nil {
		t.Errorf("expected no candidates for unindexed type, got %v", got)
	}
}

func TestCandidatesEmptySurface(t *testing.T) {
	idx := NewCandidateIndex([]common.Node{
		domainNode("P1", common.TypeProduct, "Stockholm Chair"),
	}, 0)

	sub := common.Node{ID: "", Type: common.TypeProduct, Attributes: map[string]any{"name": "   "}}
	if got := idx.Candidates(sub); got != nil {
		t.Errorf("expected no candidates for blank surface text, got %v", got)
	}
}
