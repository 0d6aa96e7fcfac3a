package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/weftlabs/weft/internal/ingest"
	"github.com/weftlabs/weft/internal/timing"
	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/logger"
	"github.com/weftlabs/weft/pkg/resolve"
	"github.com/weftlabs/weft/pkg/store"
)

// Options configures one pipeline run.
type Options struct {
	// DataDir is the directory scanned for tabular and text sources.
	DataDir string

	// Extractor turns free text into entity mentions. Defaults to the
	// deterministic keyword extractor.
	Extractor ingest.Extractor

	// RelevanceThreshold is the minimum file selection score.
	// Zero means DefaultRelevanceThreshold.
	RelevanceThreshold float64

	// ResolutionThreshold is the minimum similarity for a resolution
	// link. Zero means resolve.DefaultThreshold.
	ResolutionThreshold float64

	// Concurrency bounds parallel text extraction. Zero means 4.
	Concurrency int
}

// GraphCounts summarizes one side of the build.
type GraphCounts struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Report is the full outcome of a pipeline run: the inferred goal, every
// file selection decision, per-graph counts, resolution statistics, and
// phase durations. The published snapshot is included so callers can
// build a name catalog without re-reading the store.
type Report struct {
	Goal       Goal             `json:"goal"`
	Decisions  []FileDecision   `json:"decisions"`
	Domain     GraphCounts      `json:"domain"`
	Subject    GraphCounts      `json:"subject"`
	Resolution resolve.Stats    `json:"resolution"`
	Unresolved []string         `json:"unresolved,omitempty"`
	PhasesMs   map[string]int64 `json:"phases_ms"`

	Snapshot common.Snapshot `json:"-"`
}

// Pipeline rebuilds the unified graph from scratch: the previous graph
// in the store is discarded and replaced by the freshly built one.
type Pipeline struct {
	store store.GraphStore
	opts  Options
}

func New(s store.GraphStore, opts Options) *Pipeline {
	if opts.Extractor == nil {
		opts.Extractor = ingest.KeywordExtractor{}
	}
	if opts.RelevanceThreshold <= 0 {
		opts.RelevanceThreshold = DefaultRelevanceThreshold
	}
	if opts.ResolutionThreshold <= 0 {
		opts.ResolutionThreshold = resolve.DefaultThreshold
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Pipeline{store: s, opts: opts}
}

// Run executes the full build: discover, determine goal, select files,
// build the domain graph, build the subject graph, resolve entities,
// publish. Only storage and IO failures are errors; empty inputs
// produce an empty published graph.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	watch := timing.NewStopwatch()
	report := &Report{}

	watch.Start("discover")
	csvFiles, textFiles, err := discoverFiles(p.opts.DataDir)
	watch.Stop("discover")
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	logger.Info("[Pipeline] Discovered files", "csv", len(csvFiles), "text", len(textFiles))

	watch.Start("goal")
	report.Goal = DetermineGoal(csvFiles, textFiles)
	watch.Stop("goal")
	logger.Info("[Pipeline] Determined goal", "kind", report.Goal.Kind)

	watch.Start("select")
	tables, selectedText := p.selectFiles(csvFiles, textFiles, report)
	watch.Stop("select")

	watch.Start("domain")
	domain, err := ingest.BuildDomain(tables)
	watch.Stop("domain")
	if err != nil {
		return nil, fmt.Errorf("building domain graph: %w", err)
	}
	report.Domain = GraphCounts{Nodes: len(domain.Nodes), Edges: len(domain.Edges)}
	logger.Info("[Pipeline] Built domain graph", "nodes", report.Domain.Nodes, "edges", report.Domain.Edges)

	watch.Start("subject")
	subject, err := p.buildSubject(ctx, selectedText)
	watch.Stop("subject")
	if err != nil {
		return nil, fmt.Errorf("building subject graph: %w", err)
	}
	report.Subject = GraphCounts{Nodes: len(subject.Nodes), Edges: len(subject.Edges)}
	logger.Info("[Pipeline] Built subject graph", "nodes", report.Subject.Nodes, "edges", report.Subject.Edges)

	watch.Start("resolve")
	res := resolve.Resolve(resolvableSubjects(subject), domain.Nodes, p.opts.ResolutionThreshold)
	watch.Stop("resolve")
	report.Resolution = res.Stats
	report.Unresolved = res.Unresolved
	logger.Info("[Pipeline] Resolved entities",
		"resolved", res.Stats.Resolved,
		"unresolved", res.Stats.Unresolved,
		"ambiguous", res.Stats.Ambiguous)

	merged := common.Snapshot{
		Nodes: append(append([]common.Node{}, domain.Nodes...), annotateResolved(subject.Nodes, res.Mapping())...),
		Edges: append(append([]common.Edge{}, domain.Edges...), subject.Edges...),
	}
	merged.Edges = append(merged.Edges, res.Edges()...)

	watch.Start("publish")
	if err := p.store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clearing store: %w", err)
	}
	if err := store.Load(ctx, p.store, merged); err != nil {
		// A write failure must not leave a partial graph queryable.
		if clearErr := p.store.Clear(ctx); clearErr != nil {
			logger.Error("[Pipeline] Failed to clear partial graph", "err", clearErr)
		}
		return nil, fmt.Errorf("publishing graph: %w", err)
	}
	watch.Stop("publish")
	logger.Info("[Pipeline] Published graph", "nodes", len(merged.Nodes), "edges", len(merged.Edges))

	report.Snapshot = merged
	report.PhasesMs = watch.ElapsedMs()
	return report, nil
}

// selectFiles scores every discovered file against the goal and keeps
// those at or above the threshold. Tables are read here so the header
// row informs the score and the parsed content is reused by the domain
// build. Unreadable files are rejected with score 0.
func (p *Pipeline) selectFiles(csvFiles, textFiles []string, report *Report) ([]ingest.Table, []string) {
	var tables []ingest.Table
	for _, file := range csvFiles {
		table, err := ingest.ReadTable(file)
		if err != nil {
			report.Decisions = append(report.Decisions, FileDecision{
				File: file, Score: 0, Reason: "cannot read file: " + err.Error(),
			})
			continue
		}
		score, reason := scoreCSV(file, table.Headers, report.Goal)
		selected := score >= p.opts.RelevanceThreshold
		report.Decisions = append(report.Decisions, FileDecision{
			File: file, Score: score, Reason: reason, Selected: selected,
		})
		if selected {
			tables = append(tables, table)
		} else {
			logger.Warn("[Pipeline] Rejected file", "file", filepath.Base(file), "score", score)
		}
	}

	var selectedText []string
	for _, file := range textFiles {
		sample, err := sampleText(file)
		if err != nil {
			report.Decisions = append(report.Decisions, FileDecision{
				File: file, Score: 0, Reason: "cannot read file: " + err.Error(),
			})
			continue
		}
		score, reason := scoreText(file, sample, report.Goal)
		selected := score >= p.opts.RelevanceThreshold
		report.Decisions = append(report.Decisions, FileDecision{
			File: file, Score: score, Reason: reason, Selected: selected,
		})
		if selected {
			selectedText = append(selectedText, file)
		} else {
			logger.Warn("[Pipeline] Rejected file", "file", filepath.Base(file), "score", score)
		}
	}

	return tables, selectedText
}

// buildSubject extracts mentions from the selected text files in
// parallel, then assembles the subject graph in file order so the
// generated node set is independent of extraction timing.
func (p *Pipeline) buildSubject(ctx context.Context, files []string) (common.Snapshot, error) {
	mentions := make([][]ingest.Mention, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, file := range files {
		g.Go(func() error {
			text, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}
			found, err := p.opts.Extractor.Extract(gctx, filepath.Base(file), string(text))
			if err != nil {
				return fmt.Errorf("extracting from %s: %w", file, err)
			}
			mentions[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return common.Snapshot{}, err
	}

	builder := ingest.NewSubjectBuilder()
	for i, file := range files {
		builder.Add(filepath.Base(file), mentions[i])
	}
	return builder.Snapshot(), nil
}

// annotateResolved copies the subject nodes, stamping each resolved one
// with the chosen domain id and the similarity score of the match. The
// input nodes are left untouched.
func annotateResolved(nodes []common.Node, links map[string]resolve.Link) []common.Node {
	out := make([]common.Node, len(nodes))
	for i, n := range nodes {
		if link, ok := links[n.ID]; ok {
			attrs := make(map[string]any, len(n.Attributes)+2)
			for k, v := range n.Attributes {
				attrs[k] = v
			}
			attrs["resolved_id"] = link.DomainID
			attrs["resolved_score"] = link.Score
			n.Attributes = attrs
		}
		out[i] = n
	}
	return out
}

// resolvableSubjects returns the subject nodes that denote domain
// entities. Users, ratings, issues and features never resolve to
// tabular records; only extracted entity mentions do.
func resolvableSubjects(subject common.Snapshot) []common.Node {
	var out []common.Node
	for _, n := range subject.Nodes {
		switch n.Type {
		case common.TypeUser, common.TypeRating, common.TypeIssue, common.TypeFeature:
			continue
		}
		out = append(out, n)
	}
	return out
}

// discoverFiles lists tabular and text sources under dir, sorted for a
// deterministic build order. Subdirectories are not descended into.
func discoverFiles(dir string) (csvFiles, textFiles []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv":
			csvFiles = append(csvFiles, path)
		case ".md", ".txt":
			textFiles = append(textFiles, path)
		}
	}
	sort.Strings(csvFiles)
	sort.Strings(textFiles)
	return csvFiles, textFiles, nil
}

// sampleText reads the first lines of a text file for relevance scoring.
func sampleText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	lines := strings.SplitN(string(data), "\n", 11)
	if len(lines) > 10 {
		lines = lines[:10]
	}
	return strings.Join(lines, "\n"), nil
}
