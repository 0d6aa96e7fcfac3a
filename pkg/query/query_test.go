package query

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/intent"
	"github.com/weftlabs/weft/pkg/plan"
	"github.com/weftlabs/weft/pkg/store"
	"github.com/weftlabs/weft/pkg/store/memory"
)

func fixtureSnapshot() common.Snapshot {
	return common.Snapshot{
		Nodes: []common.Node{
			{ID: "prod-1", Type: common.TypeProduct, Attributes: map[string]any{"name": "Stockholm Chair", "price": 129.0}, Origin: common.OriginDomain, Source: common.SourceRef{File: "products.csv", RecordID: "1"}},
			{ID: "prod-2", Type: common.TypeProduct, Attributes: map[string]any{"name": "Malmo Desk", "price": 249.0}, Origin: common.OriginDomain, Source: common.SourceRef{File: "products.csv", RecordID: "2"}},
			{ID: "asm-1", Type: common.TypeAssembly, Attributes: map[string]any{"name": "Seat Assembly"}, Origin: common.OriginDomain, Source: common.SourceRef{File: "assemblies.csv", RecordID: "1"}},
			{ID: "part-1", Type: common.TypePart, Attributes: map[string]any{"name": "Oak Leg"}, Origin: common.OriginDomain, Source: common.SourceRef{File: "parts.csv", RecordID: "1"}},
			{ID: "part-2", Type: common.TypePart, Attributes: map[string]any{"name": "Seat Cushion"}, Origin: common.OriginDomain, Source: common.SourceRef{File: "parts.csv", RecordID: "2"}},
			{ID: "sup-1", Type: common.TypeSupplier, Attributes: map[string]any{"name": "Nordic Timber AB"}, Origin: common.OriginDomain, Source: common.SourceRef{File: "suppliers.csv", RecordID: "1"}},
			{ID: "sup-2", Type: common.TypeSupplier, Attributes: map[string]any{"name": "Baltic Foam Oy"}, Origin: common.OriginDomain, Source: common.SourceRef{File: "suppliers.csv", RecordID: "2"}},
			{ID: "ment-1", Type: common.TypeProduct, Attributes: map[string]any{"name": "stockholm chair"}, Origin: common.OriginSubject, Source: common.SourceRef{File: "reviews.txt", RecordID: "r1"}},
			{ID: "rat-1", Type: common.TypeRating, Attributes: map[string]any{"name": "2 stars", "value": 2.0}, Origin: common.OriginSubject, Source: common.SourceRef{File: "reviews.txt", RecordID: "r1"}},
			{ID: "iss-1", Type: common.TypeIssue, Attributes: map[string]any{"name": "wobbly leg"}, Origin: common.OriginSubject, Source: common.SourceRef{File: "reviews.txt", RecordID: "r1"}},
		},
		Edges: []common.Edge{
			{Type: common.EdgeContains, From: "asm-1", To: "prod-1"},
			{Type: common.EdgeIsPartOf, From: "part-1", To: "asm-1"},
			{Type: common.EdgeIsPartOf, From: "part-2", To: "asm-1"},
			{Type: common.EdgeSupplies, From: "sup-1", To: "part-1"},
			{Type: common.EdgeSupplies, From: "sup-2", To: "part-2"},
			{Type: common.EdgeResolvedTo, From: "ment-1", To: "prod-1", Weight: 0.97, Strategy: "jaro_winkler"},
			{Type: common.EdgeHasRating, From: "ment-1", To: "rat-1"},
			{Type: common.EdgeHasIssue, From: "ment-1", To: "iss-1"},
		},
	}
}

func fixtureEngine(t *testing.T) *Engine {
	t.Helper()
	snap := fixtureSnapshot()
	s := memory.New()
	if err := store.Load(context.Background(), s, snap); err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	catalog := plan.NewNameCatalog(snap.Nodes)
	return NewEngine(s, catalog, nil)
}

func TestAskSupplierChain(t *testing.T) {
	e := fixtureEngine(t)
	answer, err := e.Ask(context.Background(), "Which suppliers provide parts for the Stockholm Chair?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if answer.Outcome != OutcomeAnswered {
		t.Fatalf("outcome = %s, want %s", answer.Outcome, OutcomeAnswered)
	}
	if answer.Intent != intent.MultiHopRelationship {
		t.Errorf("intent = %s, want %s", answer.Intent, intent.MultiHopRelationship)
	}
	names := rowNames(answer.Rows)
	if len(names) != 2 || names[0] != "Baltic Foam Oy" || names[1] != "Nordic Timber AB" {
		t.Errorf("rows = %v, want both suppliers", names)
	}
	if answer.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", answer.Confidence)
	}
	if !strings.Contains(answer.Query, "SUPPLIES") {
		t.Errorf("query %q does not traverse SUPPLIES", answer.Query)
	}
	if len(answer.Evidence) == 0 {
		t.Error("answer carries no provenance")
	}
}

func TestAskReviewEvidence(t *testing.T) {
	e := fixtureEngine(t)
	answer, err := e.Ask(context.Background(), "What do customers say about the Stockholm Chair?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if answer.Outcome != OutcomeAnswered {
		t.Fatalf("outcome = %s, want %s (summary: %s)", answer.Outcome, OutcomeAnswered, answer.Summary)
	}
	if answer.Intent != intent.TextEvidence {
		t.Errorf("intent = %s, want %s", answer.Intent, intent.TextEvidence)
	}
	names := rowNames(answer.Rows)
	if len(names) != 2 || names[0] != "2 stars" || names[1] != "wobbly leg" {
		t.Errorf("rows = %v, want the rating and the issue", names)
	}

	// Full entity match scaled down by the 0.97 resolution link.
	want := 0.9 * (0.5 + 0.25*0.97 + 0.25)
	if diff := answer.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", answer.Confidence, want)
	}

	found := false
	for _, ev := range answer.Evidence {
		if ev.SourceFile == "reviews.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("evidence = %v, want reviews.txt", answer.Evidence)
	}
}

func TestAskNoReviewEvidence(t *testing.T) {
	e := fixtureEngine(t)
	answer, err := e.Ask(context.Background(), "What do customers say about the Malmo Desk?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if answer.Outcome != OutcomeNoEvidence {
		t.Fatalf("outcome = %s, want %s", answer.Outcome, OutcomeNoEvidence)
	}
	if answer.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", answer.Confidence)
	}
	if !strings.Contains(answer.Summary, "Malmo Desk") {
		t.Errorf("summary %q does not name the entity", answer.Summary)
	}
}

func TestAskUnknownEntity(t *testing.T) {
	e := fixtureEngine(t)
	answer, err := e.Ask(context.Background(), "What is the price of the Gothenburg Sofa?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if answer.Outcome != OutcomeUnsatisfiable {
		t.Fatalf("outcome = %s, want %s", answer.Outcome, OutcomeUnsatisfiable)
	}
	if answer.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", answer.Confidence)
	}
	if len(answer.Rows) != 0 {
		t.Errorf("rows = %v, want none", answer.Rows)
	}
}

func TestAskListing(t *testing.T) {
	e := fixtureEngine(t)
	answer, err := e.Ask(context.Background(), "List all suppliers")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if answer.Outcome != OutcomeAnswered {
		t.Fatalf("outcome = %s, want %s", answer.Outcome, OutcomeAnswered)
	}
	if answer.Intent != intent.EntityListing {
		t.Errorf("intent = %s, want %s", answer.Intent, intent.EntityListing)
	}
	if len(answer.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(answer.Rows))
	}
	if !strings.Contains(answer.Summary, "Nordic Timber AB") {
		t.Errorf("summary %q does not list the suppliers", answer.Summary)
	}
}

func TestAskAggregation(t *testing.T) {
	e := fixtureEngine(t)
	answer, err := e.Ask(context.Background(), "How many parts does each supplier provide?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if answer.Outcome != OutcomeAnswered {
		t.Fatalf("outcome = %s, want %s (summary: %s)", answer.Outcome, OutcomeAnswered, answer.Summary)
	}
	if answer.Intent != intent.Aggregation {
		t.Errorf("intent = %s, want %s", answer.Intent, intent.Aggregation)
	}
	if len(answer.Rows) != 2 {
		t.Fatalf("rows = %v, want per-supplier counts", answer.Rows)
	}
	for _, row := range answer.Rows {
		if row.Value != 1 {
			t.Errorf("row %s value = %v, want 1", row.Name, row.Value)
		}
	}
}

func TestAskTraceCoversRun(t *testing.T) {
	e := fixtureEngine(t)
	answer, err := e.Ask(context.Background(), "What do customers say about the Stockholm Chair?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	if len(answer.Trace.MatchedEntityNames) == 0 {
		t.Error("trace records no matched entities")
	}
	if len(answer.Trace.ExecutedQueries) == 0 {
		t.Error("trace records no executed query")
	}
	found := false
	for _, f := range answer.Trace.UsedSourceFiles {
		if f == "reviews.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("trace source files = %v, want reviews.txt", answer.Trace.UsedSourceFiles)
	}
}

type failingStore struct{}

func (failingStore) CreateNode(context.Context, common.Node) error { return fmt.Errorf("down") }
func (failingStore) CreateEdge(context.Context, common.Edge) error { return fmt.Errorf("down") }
func (failingStore) NodesByType(context.Context, string) ([]common.Node, error) {
	return nil, fmt.Errorf("down")
}
func (failingStore) RunPattern(context.Context, plan.Plan) (*store.Result, error) {
	return nil, fmt.Errorf("storage unavailable")
}
func (failingStore) Clear(context.Context) error { return fmt.Errorf("down") }
func (failingStore) Close(context.Context) error { return nil }

func TestAskPropagatesStorageErrors(t *testing.T) {
	catalog := plan.NewNameCatalog(fixtureSnapshot().Nodes)
	e := NewEngine(failingStore{}, catalog, nil)

	if _, err := e.Ask(context.Background(), "List all suppliers"); err == nil {
		t.Error("expected a storage error to propagate")
	}
}

func rowNames(rows []store.Row) []string {
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names
}
