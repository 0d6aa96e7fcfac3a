package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/logger"
)

// BuildDomain constructs the domain graph from parsed tables. Construction
// is fully deterministic: nodes in table order, edges in inferred-rule
// order, no model involved.
func BuildDomain(tables []Table) (common.Snapshot, error) {
	analyses := make([]FileAnalysis, 0, len(tables))
	byFile := make(map[string]Table, len(tables))
	for _, t := range tables {
		analyses = append(analyses, Analyze(t))
		byFile[t.File] = t
	}

	var snap common.Snapshot
	known := make(map[string]bool)

	for _, a := range analyses {
		if a.IsRelationshipTable || a.EntityType == "" {
			continue
		}
		if len(a.IDColumns) == 0 {
			return common.Snapshot{}, fmt.Errorf("%s: no id column for entity %s", a.File, a.EntityType)
		}
		idCol := a.IDColumns[0]

		for _, row := range byFile[a.File].Rows {
			rawID := row[idCol]
			if rawID == "" {
				logger.Warn("[Ingest] Skipping row without id", "file", a.File)
				continue
			}
			node := common.Node{
				ID:         nodeID(a.EntityType, rawID),
				Type:       a.EntityType,
				Attributes: rowAttributes(row, a.Properties),
				Origin:     common.OriginDomain,
				Source:     common.SourceRef{File: a.File, RecordID: rawID},
			}
			if known[node.ID] {
				continue
			}
			known[node.ID] = true
			snap.Nodes = append(snap.Nodes, node)
		}
	}

	for _, rel := range InferRelationships(analyses) {
		table, ok := byFile[rel.SourceFile]
		if !ok {
			continue
		}
		for _, row := range table.Rows {
			fromRaw, toRaw := row[rel.FromColumn], row[rel.ToColumn]
			if fromRaw == "" || toRaw == "" {
				continue
			}
			from := nodeID(rel.FromEntity, fromRaw)
			to := nodeID(rel.ToEntity, toRaw)
			if !known[from] || !known[to] {
				logger.Warn("[Ingest] Skipping edge to unknown node",
					"file", rel.SourceFile, "type", rel.Type, "from", from, "to", to)
				continue
			}
			snap.Edges = append(snap.Edges, common.Edge{
				Type:   rel.Type,
				From:   from,
				To:     to,
				Source: common.SourceRef{File: rel.SourceFile, RecordID: fromRaw},
			})
		}
	}

	return snap, nil
}

func nodeID(entityType, rawID string) string {
	return strings.ToLower(entityType) + "-" + rawID
}

// rowAttributes copies property columns, converting numeric-looking values
// so aggregations can use them directly.
func rowAttributes(row map[string]string, properties []string) map[string]any {
	attrs := make(map[string]any, len(properties))
	for _, p := range properties {
		v := row[p]
		if v == "" {
			continue
		}
		key := strings.ToLower(p)
		if f, err := strconv.ParseFloat(v, 64); err == nil && key != "name" {
			attrs[key] = f
			continue
		}
		attrs[key] = v
	}
	return attrs
}
