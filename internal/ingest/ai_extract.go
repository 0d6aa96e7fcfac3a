package ingest

import (
	"context"
	"fmt"

	"github.com/weftlabs/weft/pkg/ai"
)

// AIExtractor extracts mentions with a structured model completion. It
// implements Extractor and is used when reviews are too free-form for the
// keyword lexicons.
type AIExtractor struct {
	client ai.Client
}

func NewAIExtractor(client ai.Client) *AIExtractor {
	return &AIExtractor{client: client}
}

type extractedReviews struct {
	Mentions []struct {
		Product  string   `json:"product" jsonschema_description:"Name of the reviewed product"`
		User     string   `json:"user" jsonschema_description:"Reviewer username, usually starting with @"`
		Rating   float64  `json:"rating" jsonschema_description:"Star rating from 1 to 5, 0 when absent"`
		Issues   []string `json:"issues" jsonschema_description:"Short problem phrases mentioned in the review"`
		Features []string `json:"features" jsonschema_description:"Short positive aspects mentioned in the review"`
	} `json:"mentions"`
}

const extractPrompt = `Extract every product review from the following text.

The file is named %q and its reviews are about %q. For each review report
the reviewer's username, the star rating (digits or star symbols), the
problems mentioned, and the features praised. Keep issue and feature
phrases short and lowercase.

Text:
%s`

func (e *AIExtractor) Extract(ctx context.Context, file string, text string) ([]Mention, error) {
	product := ProductFromFilename(file)

	var out extractedReviews
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"review_extraction",
		"Product review mentions extracted from free text",
		fmt.Sprintf(extractPrompt, file, product, text),
		&out,
		ai.WithTemperature(0),
	)
	if err != nil {
		return nil, fmt.Errorf("extracting reviews from %s: %w", file, err)
	}

	mentions := make([]Mention, 0, len(out.Mentions))
	for _, m := range out.Mentions {
		mention := Mention{
			Product:  m.Product,
			User:     m.User,
			Rating:   m.Rating,
			Issues:   m.Issues,
			Features: m.Features,
		}
		if mention.Product == "" {
			mention.Product = product
		}
		mentions = append(mentions, mention)
	}
	return mentions, nil
}
