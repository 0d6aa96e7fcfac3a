package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/weftlabs/weft/pkg/common"
)

func catalogTables() []Table {
	return []Table{
		{
			File:    "products.csv",
			Headers: []string{"id", "name", "price", "category"},
			Rows: []map[string]string{
				{"id": "1", "name": "Stockholm Chair", "price": "129.00", "category": "seating"},
				{"id": "2", "name": "Malmo Desk", "price": "249.00", "category": "desks"},
			},
		},
		{
			File:    "assemblies.csv",
			Headers: []string{"id", "name", "product_id"},
			Rows: []map[string]string{
				{"id": "10", "name": "Seat Assembly", "product_id": "1"},
			},
		},
		{
			File:    "parts.csv",
			Headers: []string{"id", "name", "price", "assembly_id"},
			Rows: []map[string]string{
				{"id": "100", "name": "Oak Leg", "price": "12.50", "assembly_id": "10"},
				{"id": "101", "name": "Seat Cushion", "price": "8.00", "assembly_id": "10"},
			},
		},
		{
			File:    "suppliers.csv",
			Headers: []string{"id", "name", "country"},
			Rows: []map[string]string{
				{"id": "7", "name": "Nordic Timber AB", "country": "Sweden"},
			},
		},
		{
			File:    "part_supplier_mapping.csv",
			Headers: []string{"part_id", "supplier_id"},
			Rows: []map[string]string{
				{"part_id": "100", "supplier_id": "7"},
			},
		},
	}
}

func TestAnalyzeEntityTable(t *testing.T) {
	a := Analyze(catalogTables()[0])
	if a.IsRelationshipTable {
		t.Fatal("products.csv classified as a relationship table")
	}
	if a.EntityType != common.TypeProduct {
		t.Errorf("entity type = %s, want %s", a.EntityType, common.TypeProduct)
	}
	if !reflect.DeepEqual(a.IDColumns, []string{"id"}) {
		t.Errorf("id columns = %v", a.IDColumns)
	}
	if !reflect.DeepEqual(a.Properties, []string{"name", "price", "category"}) {
		t.Errorf("properties = %v", a.Properties)
	}
}

func TestAnalyzePluralSingularization(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"products.csv", "Product"},
		{"assemblies.csv", "Assembly"},
		{"suppliers.csv", "Supplier"},
		{"parts.csv", "Part"},
	}
	for _, tt := range tests {
		a := Analyze(Table{File: tt.file, Headers: []string{"id", "name"}})
		if a.EntityType != tt.want {
			t.Errorf("Analyze(%s).EntityType = %s, want %s", tt.file, a.EntityType, tt.want)
		}
	}
}

func TestAnalyzeMappingTable(t *testing.T) {
	a := Analyze(catalogTables()[4])
	if !a.IsRelationshipTable {
		t.Error("part_supplier_mapping.csv not classified as a relationship table")
	}
}

func TestAnalyzeTwoForeignKeysIsRelationshipTable(t *testing.T) {
	a := Analyze(Table{File: "orders.csv", Headers: []string{"product_id", "supplier_id"}})
	if !a.IsRelationshipTable {
		t.Error("table with two foreign keys not classified as a relationship table")
	}
}

func TestInferRelationships(t *testing.T) {
	var analyses []FileAnalysis
	for _, tbl := range catalogTables() {
		analyses = append(analyses, Analyze(tbl))
	}

	rels := InferRelationships(analyses)
	byType := make(map[string]Relationship)
	for _, r := range rels {
		byType[r.Type] = r
	}

	contains, ok := byType[common.EdgeContains]
	if !ok {
		t.Fatal("no CONTAINS rule inferred")
	}
	if contains.FromEntity != common.TypeAssembly || contains.ToEntity != common.TypeProduct {
		t.Errorf("CONTAINS = %+v, want Assembly to Product", contains)
	}

	partOf, ok := byType[common.EdgeIsPartOf]
	if !ok {
		t.Fatal("no IS_PART_OF rule inferred")
	}
	if partOf.FromEntity != common.TypePart || partOf.ToEntity != common.TypeAssembly {
		t.Errorf("IS_PART_OF = %+v, want Part to Assembly", partOf)
	}

	supplies, ok := byType[common.EdgeSupplies]
	if !ok {
		t.Fatal("no SUPPLIES rule inferred")
	}
	if supplies.FromEntity != common.TypeSupplier || supplies.ToEntity != common.TypePart {
		t.Errorf("SUPPLIES = %+v, want Supplier to Part", supplies)
	}
	if supplies.SourceFile != "part_supplier_mapping.csv" {
		t.Errorf("SUPPLIES source = %s", supplies.SourceFile)
	}
}

func TestBuildDomain(t *testing.T) {
	snap, err := BuildDomain(catalogTables())
	if err != nil {
		t.Fatalf("build domain: %v", err)
	}

	if got := len(snap.NodesOfType(common.TypeProduct)); got != 2 {
		t.Errorf("products = %d, want 2", got)
	}
	if got := len(snap.NodesOfType(common.TypeSupplier)); got != 1 {
		t.Errorf("suppliers = %d, want 1", got)
	}

	edgeCount := map[string]int{}
	for _, e := range snap.Edges {
		edgeCount[e.Type]++
	}
	if edgeCount[common.EdgeContains] != 1 || edgeCount[common.EdgeIsPartOf] != 2 || edgeCount[common.EdgeSupplies] != 1 {
		t.Errorf("edge counts = %v", edgeCount)
	}

	for _, e := range snap.Edges {
		if e.Type == common.EdgeSupplies {
			if e.From != "supplier-7" || e.To != "part-100" {
				t.Errorf("SUPPLIES edge = %+v", e)
			}
		}
	}

	for _, n := range snap.Nodes {
		if n.Origin != common.OriginDomain {
			t.Errorf("node %s origin = %s", n.ID, n.Origin)
		}
		if n.Source.File == "" {
			t.Errorf("node %s has no source file", n.ID)
		}
	}
}

func TestBuildDomainNumericAttributes(t *testing.T) {
	snap, err := BuildDomain(catalogTables())
	if err != nil {
		t.Fatalf("build domain: %v", err)
	}
	for _, n := range snap.NodesOfType(common.TypeProduct) {
		if n.Name() == "Stockholm Chair" {
			if v, ok := n.Attributes["price"].(float64); !ok || v != 129.0 {
				t.Errorf("price = %v (%T), want 129.0 float64", n.Attributes["price"], n.Attributes["price"])
			}
		}
	}
}

func TestBuildDomainSkipsDanglingEdges(t *testing.T) {
	tables := catalogTables()
	tables[4].Rows = append(tables[4].Rows, map[string]string{"part_id": "999", "supplier_id": "7"})

	snap, err := BuildDomain(tables)
	if err != nil {
		t.Fatalf("build domain: %v", err)
	}
	for _, e := range snap.Edges {
		if e.To == "part-999" {
			t.Errorf("edge to unknown node survived: %+v", e)
		}
	}
}

func TestReadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suppliers.csv")
	content := "id,name,country\n1,Nordic Timber AB,Sweden\n2,Baltic Foam Oy\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tbl, err := ReadTable(path)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	if tbl.File != "suppliers.csv" {
		t.Errorf("file = %s", tbl.File)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if tbl.Rows[1]["country"] != "" {
		t.Errorf("short row country = %q, want padded empty", tbl.Rows[1]["country"])
	}
}

const sampleReviews = `# Stockholm Chair Reviews

@woodlover84 ★★
The chair looked great but one leg was wobbly from day one.
Assembly was fine but the finish started peeling after a month.

@cozyhome 5/5
Really sturdy and comfortable. Great value for the price.
`

func TestKeywordExtractor(t *testing.T) {
	mentions, err := KeywordExtractor{}.Extract(context.Background(), "stockholm_chair_reviews.md", sampleReviews)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(mentions) != 2 {
		t.Fatalf("mentions = %d, want 2: %+v", len(mentions), mentions)
	}

	first := mentions[0]
	if first.Product != "Stockholm Chair" {
		t.Errorf("product = %q", first.Product)
	}
	if first.User != "@woodlover84" {
		t.Errorf("user = %q", first.User)
	}
	if first.Rating != 2 {
		t.Errorf("rating = %v, want 2 from the star run", first.Rating)
	}
	if !reflect.DeepEqual(first.Issues, []string{"wobbly", "peeling"}) {
		t.Errorf("issues = %v", first.Issues)
	}

	second := mentions[1]
	if second.User != "@cozyhome" || second.Rating != 5 {
		t.Errorf("second mention = %+v", second)
	}
	if !reflect.DeepEqual(second.Features, []string{"great value", "sturdy", "comfortable"}) {
		t.Errorf("features = %v", second.Features)
	}
}

func TestProductFromFilename(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"stockholm_chair_reviews.md", "Stockholm Chair"},
		{"malmo_desk_reviews.txt", "Malmo Desk"},
		{"data/helsingborg_dresser_review.md", "Helsingborg Dresser"},
	}
	for _, tt := range tests {
		if got := ProductFromFilename(tt.file); got != tt.want {
			t.Errorf("ProductFromFilename(%s) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestSubjectBuilder(t *testing.T) {
	counter := 0
	gen := func() string {
		counter++
		return fmt.Sprintf("n%d", counter)
	}

	b := NewSubjectBuilder().WithIDGenerator(gen)
	b.Add("stockholm_chair_reviews.md", []Mention{
		{Product: "Stockholm Chair", User: "@woodlover84", Rating: 2, Issues: []string{"wobbly"}},
		{Product: "Stockholm Chair", User: "@cozyhome", Rating: 5, Features: []string{"sturdy"}},
	})
	snap := b.Snapshot()

	if got := len(snap.NodesOfType(common.TypeProduct)); got != 1 {
		t.Errorf("product mention nodes = %d, want 1 shared node", got)
	}
	if got := len(snap.NodesOfType(common.TypeUser)); got != 2 {
		t.Errorf("user nodes = %d, want 2", got)
	}
	if got := len(snap.NodesOfType(common.TypeRating)); got != 2 {
		t.Errorf("rating nodes = %d, want 2", got)
	}

	edgeCount := map[string]int{}
	for _, e := range snap.Edges {
		edgeCount[e.Type]++
	}
	want := map[string]int{
		common.EdgeReviewedBy: 2,
		common.EdgeHasRating:  2,
		common.EdgeHasIssue:   1,
		common.EdgeHasFeature: 1,
	}
	if !reflect.DeepEqual(edgeCount, want) {
		t.Errorf("edge counts = %v, want %v", edgeCount, want)
	}

	for _, n := range snap.Nodes {
		if n.Origin != common.OriginSubject {
			t.Errorf("node %s origin = %s", n.ID, n.Origin)
		}
	}
}

func TestSubjectBuilderSharesIssueNodes(t *testing.T) {
	counter := 0
	b := NewSubjectBuilder().WithIDGenerator(func() string {
		counter++
		return fmt.Sprintf("n%d", counter)
	})
	b.Add("a_reviews.md", []Mention{
		{Product: "A", Issues: []string{"wobbly"}},
		{Product: "A", Issues: []string{"wobbly"}},
	})
	if got := len(b.Snapshot().NodesOfType(common.TypeIssue)); got != 1 {
		t.Errorf("issue nodes = %d, want 1 shared", got)
	}
}
