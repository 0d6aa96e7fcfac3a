package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/weftlabs/weft/pkg/ai"
)

// AIFallback classifies questions the keyword patterns could not, using a
// structured model completion. It satisfies Fallback.
type AIFallback struct {
	client ai.Client
	opts   []ai.GenerateOption
}

// NewAIFallback builds the model-backed fallback. Extra options, such as
// ai.WithModel, are applied on every classification call.
func NewAIFallback(client ai.Client, opts ...ai.GenerateOption) *AIFallback {
	return &AIFallback{client: client, opts: opts}
}

// fallbackResult is the schema the model fills in. Fields mirror
// Classification but stay strings so the model never sees internal types.
type fallbackResult struct {
	Intent      string   `json:"intent" jsonschema_description:"One of ENTITY_LISTING, ATTRIBUTE_LOOKUP, TEXT_EVIDENCE, MULTI_HOP_RELATIONSHIP, AGGREGATION, UNKNOWN"`
	EntityTypes []string `json:"entity_types" jsonschema_description:"Entity types the question references: Product, Supplier, Part, Assembly, User, Rating, Issue, Feature"`
	EntityNames []string `json:"entity_names" jsonschema_description:"Concrete entity names mentioned in the question, verbatim"`
	AggregateOp string   `json:"aggregate_op" jsonschema_description:"For AGGREGATION only: count, sum, avg, max or min; otherwise empty"`
}

const fallbackSystemPrompt = `You classify questions about a product knowledge graph.

The graph contains products, their assemblies and parts, the suppliers of
those parts, and entities extracted from customer reviews (users, ratings,
issues, features).

Pick exactly one intent:
  ENTITY_LISTING          - enumerate entities of one type
  ATTRIBUTE_LOOKUP        - read an attribute of a named entity
  TEXT_EVIDENCE           - report what reviews say about a named entity
  MULTI_HOP_RELATIONSHIP  - connect entities across relationships
  AGGREGATION             - count or compute over groups of entities
  UNKNOWN                 - none of the above`

func (f *AIFallback) Classify(ctx context.Context, question string) (Classification, error) {
	opts := append([]ai.GenerateOption{
		ai.WithSystemPrompt(fallbackSystemPrompt),
		ai.WithTemperature(0),
	}, f.opts...)

	var out fallbackResult
	err := f.client.GenerateCompletionWithFormat(
		ctx,
		"question_classification",
		"Intent classification for a graph question",
		"Question: "+question,
		&out,
		opts...,
	)
	if err != nil {
		return Classification{}, fmt.Errorf("fallback classification: %w", err)
	}

	cls := Classification{
		Intent:      Intent(strings.ToUpper(strings.TrimSpace(out.Intent))),
		EntityTypes: out.EntityTypes,
		EntityNames: out.EntityNames,
		AggregateOp: strings.ToLower(strings.TrimSpace(out.AggregateOp)),
	}
	if !cls.Intent.Valid() {
		return Classification{}, fmt.Errorf("fallback returned intent outside the closed set: %q", out.Intent)
	}
	return cls, nil
}
