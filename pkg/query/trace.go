package query

import (
	"sort"
	"sync"
)

type TraceEventKind string

const (
	TraceEventMatchedEntityNames TraceEventKind = "matched_entity_names"
	TraceEventTraversedEdgeTypes TraceEventKind = "traversed_edge_types"
	TraceEventUsedSourceFiles    TraceEventKind = "used_source_files"
	TraceEventExecutedQuery      TraceEventKind = "executed_query"
)

// TraceEvent is an extensible event envelope for query tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	EntityNames []string
	EdgeTypes   []string
	SourceFiles []string
	Query       string
}

// Tracer is a sink for query tracing events.
//
// Implementers can forward events to logs, telemetry, or custom
// post-processing pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordMatchedEntityNames(t Tracer, names ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventMatchedEntityNames, EntityNames: names})
}

func RecordTraversedEdgeTypes(t Tracer, types ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventTraversedEdgeTypes, EdgeTypes: types})
}

func RecordUsedSourceFiles(t Tracer, files ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventUsedSourceFiles, SourceFiles: files})
}

func RecordExecutedQuery(t Tracer, query string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventExecutedQuery, Query: query})
}

// QueryTrace collects what a query run matched, traversed and read. It backs
// the provenance block of an answer.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	matchedEntityNames map[string]struct{}
	traversedEdgeTypes map[string]struct{}
	usedSourceFiles    map[string]struct{}
	executedQueries    []string
}

type QueryTraceSnapshot struct {
	MatchedEntityNames []string `json:"matched_entity_names"`
	TraversedEdgeTypes []string `json:"traversed_edge_types"`
	UsedSourceFiles    []string `json:"used_source_files"`
	ExecutedQueries    []string `json:"executed_queries"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		matchedEntityNames: make(map[string]struct{}),
		traversedEdgeTypes: make(map[string]struct{}),
		usedSourceFiles:    make(map[string]struct{}),
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventMatchedEntityNames:
		for _, name := range event.EntityNames {
			if name == "" {
				continue
			}
			t.matchedEntityNames[name] = struct{}{}
		}
	case TraceEventTraversedEdgeTypes:
		for _, typ := range event.EdgeTypes {
			if typ == "" {
				continue
			}
			t.traversedEdgeTypes[typ] = struct{}{}
		}
	case TraceEventUsedSourceFiles:
		for _, file := range event.SourceFiles {
			if file == "" {
				continue
			}
			t.usedSourceFiles[file] = struct{}{}
		}
	case TraceEventExecutedQuery:
		if event.Query != "" {
			t.executedQueries = append(t.executedQueries, event.Query)
		}
	default:
		return
	}
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := QueryTraceSnapshot{
		MatchedEntityNames: make([]string, 0, len(t.matchedEntityNames)),
		TraversedEdgeTypes: make([]string, 0, len(t.traversedEdgeTypes)),
		UsedSourceFiles:    make([]string, 0, len(t.usedSourceFiles)),
		ExecutedQueries:    append([]string{}, t.executedQueries...),
	}

	for name := range t.matchedEntityNames {
		s.MatchedEntityNames = append(s.MatchedEntityNames, name)
	}
	for typ := range t.traversedEdgeTypes {
		s.TraversedEdgeTypes = append(s.TraversedEdgeTypes, typ)
	}
	for file := range t.usedSourceFiles {
		s.UsedSourceFiles = append(s.UsedSourceFiles, file)
	}

	sort.Strings(s.MatchedEntityNames)
	sort.Strings(s.TraversedEdgeTypes)
	sort.Strings(s.UsedSourceFiles)

	return s
}
