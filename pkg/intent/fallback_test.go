package intent

import (
	"context"
	"reflect"
	"testing"

	"github.com/weftlabs/weft/pkg/ai"
	"github.com/weftlabs/weft/pkg/common"
)

// scriptedClient returns a canned classification and records the options
// applied to the call.
type scriptedClient struct {
	result  fallbackResult
	options ai.GenerateOptions
}

func (s *scriptedClient) GenerateCompletionWithFormat(_ context.Context, _ string, _ string, _ string, out any, opts ...ai.GenerateOption) error {
	for _, o := range opts {
		o(&s.options)
	}
	*out.(*fallbackResult) = s.result
	return nil
}

func TestAIFallbackClassify(t *testing.T) {
	client := &scriptedClient{result: fallbackResult{
		Intent:      "text_evidence",
		EntityTypes: []string{common.TypeProduct},
		EntityNames: []string{"Stockholm Chair"},
	}}
	f := NewAIFallback(client, ai.WithModel("small-model"))

	cls, err := f.Classify(context.Background(), "What do customers say about the Stockholm Chair?")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent != TextEvidence {
		t.Errorf("intent = %s, want %s", cls.Intent, TextEvidence)
	}
	if !reflect.DeepEqual(cls.EntityNames, []string{"Stockholm Chair"}) {
		t.Errorf("names = %v", cls.EntityNames)
	}

	if len(client.options.SystemPrompts) == 0 {
		t.Error("expected a system prompt on the call")
	}
	if client.options.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", client.options.Temperature)
	}
	if client.options.Model != "small-model" {
		t.Errorf("model = %q, want the configured override", client.options.Model)
	}
}

func TestAIFallbackRejectsIntentOutsideClosedSet(t *testing.T) {
	client := &scriptedClient{result: fallbackResult{Intent: "ESSAY"}}
	f := NewAIFallback(client)
	if _, err := f.Classify(context.Background(), "Write an essay about chairs"); err == nil {
		t.Fatal("expected an error for an unknown intent")
	}
}
