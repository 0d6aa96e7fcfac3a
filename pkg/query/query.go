package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/weftlabs/weft/pkg/intent"
	"github.com/weftlabs/weft/pkg/logger"
	"github.com/weftlabs/weft/pkg/plan"
	"github.com/weftlabs/weft/pkg/store"
)

// Outcome is the terminal shape of an answer. Questions about entities the
// graph does not know, or without review evidence, produce answers with
// zero confidence instead of errors.
type Outcome string

const (
	OutcomeAnswered      Outcome = "answered"
	OutcomeNoEvidence    Outcome = "no_evidence"
	OutcomeUnsatisfiable Outcome = "unsatisfiable"
)

// Evidence links an answer row back to the source file and record it was
// derived from.
type Evidence struct {
	SourceFile string `json:"source_file"`
	RecordID   string `json:"record_id"`
}

// Answer is the complete response to one question: rows, the executed query
// text, a confidence score and the provenance behind it all.
type Answer struct {
	Question   string             `json:"question"`
	Intent     intent.Intent      `json:"intent"`
	Outcome    Outcome            `json:"outcome"`
	Summary    string             `json:"summary"`
	Rows       []store.Row        `json:"rows"`
	Query      string             `json:"query"`
	Confidence float64            `json:"confidence"`
	Evidence   []Evidence         `json:"evidence"`
	Trace      QueryTraceSnapshot `json:"trace"`
}

// Engine answers natural-language questions over the unified graph. It owns
// the classify-plan-execute-synthesize sequence; all graph access goes
// through the store.
type Engine struct {
	store      store.GraphStore
	classifier *intent.Classifier
	catalog    *plan.NameCatalog
	weights    ConfidenceWeights
}

// NewEngine creates a query engine over the given store and name catalog.
// fallback may be nil; questions the keyword patterns cannot classify then
// stay unknown.
func NewEngine(s store.GraphStore, catalog *plan.NameCatalog, fallback intent.Fallback) *Engine {
	return &Engine{
		store:      s,
		classifier: intent.NewClassifier(catalog.NamesByType(), fallback),
		catalog:    catalog,
		weights:    DefaultConfidenceWeights(),
	}
}

// Ask answers one question. Storage failures are the only errors; every
// classification or planning dead end becomes a zero-confidence answer.
func (e *Engine) Ask(ctx context.Context, question string) (Answer, error) {
	trace := NewQueryTrace()

	cls, err := e.classifier.Classify(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("classifying question: %w", err)
	}

	p := plan.Build(cls, e.catalog)
	answer := Answer{
		Question: question,
		Intent:   cls.Intent,
		Rows:     []store.Row{},
		Evidence: []Evidence{},
	}

	matched, referenced := e.matchCount(cls.EntityNames, trace)

	if p.Status != plan.StatusOK {
		logger.Debug("[Query] Plan unsatisfiable", "question", question, "reason", p.Reason)
		answer.Outcome = OutcomeUnsatisfiable
		answer.Summary = p.Reason
		answer.Confidence = 0
		answer.Trace = trace.Snapshot()
		return answer, nil
	}

	edgeTypes := make([]string, 0, len(p.Hops))
	for _, hop := range p.Hops {
		edgeTypes = append(edgeTypes, hop.EdgeType)
	}
	RecordTraversedEdgeTypes(trace, edgeTypes...)
	RecordTraversedEdgeTypes(trace, p.EvidenceEdges...)

	result, err := e.store.RunPattern(ctx, p)
	if err != nil {
		return Answer{}, fmt.Errorf("executing plan: %w", err)
	}
	RecordExecutedQuery(trace, result.Query)
	answer.Query = result.Query

	if result.NoEvidence {
		answer.Outcome = OutcomeNoEvidence
		answer.Summary = noEvidenceSummary(cls)
		answer.Confidence = 0
		answer.Trace = trace.Snapshot()
		return answer, nil
	}

	answer.Rows = result.Rows
	answer.Evidence = collectEvidence(result.Rows, trace)
	answer.Outcome = OutcomeAnswered
	answer.Summary = summarize(p, cls, result.Rows)
	answer.Confidence = ComputeConfidence(Factors{
		MatchedEntities:    matched,
		ReferencedEntities: referenced,
		MinResolution:      result.MinResolution,
		RowCount:           len(result.Rows),
	}, e.weights)
	answer.Trace = trace.Snapshot()
	return answer, nil
}

// matchCount checks each referenced name against the catalog and records
// the hits in the trace.
func (e *Engine) matchCount(names []string, trace Tracer) (matched, referenced int) {
	referenced = len(names)
	for _, name := range names {
		if _, canonical, ok := e.catalog.FindName(name); ok {
			matched++
			RecordMatchedEntityNames(trace, canonical)
		}
	}
	return matched, referenced
}

func collectEvidence(rows []store.Row, trace Tracer) []Evidence {
	seen := make(map[Evidence]bool)
	out := []Evidence{}
	for _, row := range rows {
		if row.Node == nil || row.Node.Source.File == "" {
			continue
		}
		ev := Evidence{
			SourceFile: row.Node.Source.File,
			RecordID:   row.Node.Source.RecordID,
		}
		if !seen[ev] {
			seen[ev] = true
			out = append(out, ev)
			RecordUsedSourceFiles(trace, ev.SourceFile)
		}
	}
	return out
}

const maxSummaryNames = 10

// summarize renders result rows as one plain sentence. Synthesis is fully
// deterministic; no model is consulted.
func summarize(p plan.Plan, cls intent.Classification, rows []store.Row) string {
	if len(rows) == 0 {
		return "No matching entities found."
	}

	subject := p.StartType
	if len(p.Hops) > 0 {
		subject = p.Hops[len(p.Hops)-1].TargetType
	}

	if p.Aggregate != nil {
		parts := make([]string, 0, len(rows))
		for _, row := range rows {
			parts = append(parts, fmt.Sprintf("%s: %v", row.Name, row.Value))
		}
		return fmt.Sprintf("%s of %s: %s.", p.Aggregate.Op, subject, strings.Join(parts, ", "))
	}

	names := make([]string, 0, len(rows))
	for i, row := range rows {
		if i == maxSummaryNames {
			names = append(names, fmt.Sprintf("and %d more", len(rows)-maxSummaryNames))
			break
		}
		names = append(names, row.Name)
	}
	listed := strings.Join(names, ", ")

	switch cls.Intent {
	case intent.TextEvidence:
		return fmt.Sprintf("Review evidence for %s: %s.", firstOr(cls.EntityNames, subject), listed)
	case intent.MultiHopRelationship:
		return fmt.Sprintf("Found %d %s for %s: %s.", len(rows), subject, firstOr(cls.EntityNames, p.StartType), listed)
	default:
		return fmt.Sprintf("Found %d %s: %s.", len(rows), subject, listed)
	}
}

func noEvidenceSummary(cls intent.Classification) string {
	if len(cls.EntityNames) > 0 {
		return fmt.Sprintf("No review evidence is linked to %s.", cls.EntityNames[0])
	}
	return "No review evidence is linked to the requested entity."
}

func firstOr(names []string, fallback string) string {
	if len(names) > 0 {
		return names[0]
	}
	return fallback
}
