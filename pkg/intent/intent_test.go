package intent

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/weftlabs/weft/pkg/common"
)

func testCatalog() map[string][]string {
	return map[string][]string{
		common.TypeProduct: {
			"Stockholm Chair", "Uppsala Sofa", "Malmo Desk", "Gothenburg Table",
		},
		common.TypeSupplier: {
			"Nordic Woodworks", "Baltic Fasteners",
		},
	}
}

func TestClassifyEntityListing(t *testing.T) {
	c := NewClassifier(testCatalog(), nil)

	cls, err := c.Classify(context.Background(), "What products are available in the catalog?")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent != EntityListing {
		t.Errorf("intent = %s, want %s", cls.Intent, EntityListing)
	}
	if !reflect.DeepEqual(cls.EntityTypes, []string{common.TypeProduct}) {
		t.Errorf("types = %v, want [Product]", cls.EntityTypes)
	}
}

func TestClassifyTextEvidence(t *testing.T) {
	c := NewClassifier(testCatalog(), nil)

	cls, err := c.Classify(context.Background(), "What are customers saying about the Malmo Desk?")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent != TextEvidence {
		t.Errorf("intent = %s, want %s", cls.Intent, TextEvidence)
	}
	if !reflect.DeepEqual(cls.EntityNames, []string{"Malmo Desk"}) {
		t.Errorf("names = %v, want [Malmo Desk]", cls.EntityNames)
	}
}

func TestClassifyMultiHop(t *testing.T) {
	c := NewClassifier(testCatalog(), nil)

	cls, err := c.Classify(context.Background(), "Which suppliers provide parts for the Stockholm Chair?")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent != MultiHopRelationship {
		t.Errorf("intent = %s, want %s", cls.Intent, MultiHopRelationship)
	}
	wantTypes := []string{common.TypeSupplier, common.TypePart}
	if !reflect.DeepEqual(cls.EntityTypes, wantTypes) {
		t.Errorf("types = %v, want %v", cls.EntityTypes, wantTypes)
	}
	if !reflect.DeepEqual(cls.EntityNames, []string{"Stockholm Chair"}) {
		t.Errorf("names = %v, want [Stockholm Chair]", cls.EntityNames)
	}
}

func TestClassifyAggregation(t *testing.T) {
	tests := []struct {
		question string
		wantOp   string
	}{
		{"How many parts does the Uppsala Sofa contain?", "count"},
		{"What is the average rating for the Malmo Desk?", "avg"},
		{"Which supplier provides the most parts?", "max"},
		{"Which product has the fewest issues?", "min"},
		{"What is the sum of all part prices?", "sum"},
	}

	c := NewClassifier(testCatalog(), nil)
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			cls, err := c.Classify(context.Background(), tt.question)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if cls.Intent != Aggregation {
				t.Errorf("intent = %s, want %s", cls.Intent, Aggregation)
			}
			if cls.AggregateOp != tt.wantOp {
				t.Errorf("op = %s, want %s", cls.AggregateOp, tt.wantOp)
			}
		})
	}
}

func TestClassifyCountryIsNotCount(t *testing.T) {
	c := NewClassifier(testCatalog(), nil)

	cls, err := c.Classify(context.Background(), "Which country is Nordic Woodworks based in?")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent == Aggregation {
		t.Errorf("'country' must not trigger the count aggregation keyword")
	}
	if cls.Intent != AttributeLookup {
		t.Errorf("intent = %s, want %s", cls.Intent, AttributeLookup)
	}
}

func TestClassifyQuotedName(t *testing.T) {
	c := NewClassifier(testCatalog(), nil)

	cls, err := c.Classify(context.Background(), `What are the reviews for "Vasteras Bookshelf"?`)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent != TextEvidence {
		t.Errorf("intent = %s, want %s", cls.Intent, TextEvidence)
	}
	if !reflect.DeepEqual(cls.EntityNames, []string{"Vasteras Bookshelf"}) {
		t.Errorf("names = %v, want [Vasteras Bookshelf]", cls.EntityNames)
	}
}

type stubFallback struct {
	cls Classification
	err error
}

func (s *stubFallback) Classify(ctx context.Context, question string) (Classification, error) {
	return s.cls, s.err
}

func TestClassifyFallbackUsed(t *testing.T) {
	fb := &stubFallback{cls: Classification{
		Intent:      AttributeLookup,
		EntityNames: []string{"Gothenburg Table"},
	}}
	c := NewClassifier(testCatalog(), fb)

	cls, err := c.Classify(context.Background(), "Tell me something")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent != AttributeLookup {
		t.Errorf("intent = %s, want fallback's %s", cls.Intent, AttributeLookup)
	}
}

func TestClassifyFallbackInvalidIntent(t *testing.T) {
	fb := &stubFallback{cls: Classification{Intent: Intent("MADE_UP")}}
	c := NewClassifier(testCatalog(), fb)

	cls, err := c.Classify(context.Background(), "Tell me something")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent != Unknown {
		t.Errorf("intent = %s, want %s for out-of-set fallback answer", cls.Intent, Unknown)
	}
}

func TestClassifyFallbackError(t *testing.T) {
	fb := &stubFallback{err: errors.New("model unavailable")}
	c := NewClassifier(testCatalog(), fb)

	cls, err := c.Classify(context.Background(), "Tell me something")
	if err != nil {
		t.Fatalf("Classify() must not propagate fallback errors, got %v", err)
	}
	if cls.Intent != Unknown {
		t.Errorf("intent = %s, want %s", cls.Intent, Unknown)
	}
}

func TestClassifyNoFallbackUnknown(t *testing.T) {
	c := NewClassifier(testCatalog(), nil)

	cls, err := c.Classify(context.Background(), "Tell me something")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent != Unknown {
		t.Errorf("intent = %s, want %s", cls.Intent, Unknown)
	}
}
