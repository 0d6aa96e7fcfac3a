package ingest

import (
	"sort"
	"strings"
	"unicode"

	"github.com/weftlabs/weft/pkg/common"
)

// FileAnalysis is the inferred shape of one tabular source: which columns
// identify rows, which reference other tables, and what entity the file
// represents.
type FileAnalysis struct {
	File                string
	Headers             []string
	IDColumns           []string
	ForeignKeys         []string
	Properties          []string
	EntityType          string
	IsRelationshipTable bool
}

// Relationship is an inferred edge rule. Each row of SourceFile yields one
// edge; FromColumn and ToColumn name the row columns holding the endpoint
// ids.
type Relationship struct {
	SourceFile string
	Type       string
	FromEntity string
	FromColumn string
	ToEntity   string
	ToColumn   string
}

// Analyze infers the schema of one table. Columns named "id" or
// "<entity>_id" are identifiers; other "*_id" columns are foreign keys. A
// file with two or more foreign keys, or a mapping-style name, is a pure
// relationship table.
func Analyze(t Table) FileAnalysis {
	a := FileAnalysis{File: t.File, Headers: t.Headers}

	base := strings.TrimSuffix(strings.ToLower(t.File), ".csv")
	entity := entityTypeFromFilename(base)
	entityKey := strings.ToLower(entity)

	for _, h := range t.Headers {
		lower := strings.ToLower(h)
		switch {
		case lower == "id" || lower == entityKey+"_id":
			a.IDColumns = append(a.IDColumns, h)
		case strings.HasSuffix(lower, "_id"):
			a.ForeignKeys = append(a.ForeignKeys, h)
		default:
			a.Properties = append(a.Properties, h)
		}
	}

	if strings.Contains(base, "mapping") ||
		strings.Contains(base, "relationship") ||
		strings.Contains(base, "_to_") ||
		len(a.ForeignKeys) >= 2 {
		a.IsRelationshipTable = true
		return a
	}

	a.EntityType = entity
	return a
}

// entityTypeFromFilename derives an entity type from a table name:
// "assemblies" becomes Assembly, "products" becomes Product.
func entityTypeFromFilename(base string) string {
	var b strings.Builder
	upper := true
	for _, r := range base {
		if r == '_' || r == ' ' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if strings.HasSuffix(name, "ies") {
		return strings.TrimSuffix(name, "ies") + "y"
	}
	return strings.TrimSuffix(name, "s")
}

// InferRelationships derives edge rules from foreign keys. Entity-file
// foreign keys yield one edge per row; relationship tables yield one edge
// per mapping row. Supplier links always point supplier-to-part so the
// chain reads Supplier SUPPLIES Part regardless of which table carried the
// key.
func InferRelationships(analyses []FileAnalysis) []Relationship {
	entityIDs := make(map[string]string)
	for _, a := range analyses {
		if !a.IsRelationshipTable && a.EntityType != "" && len(a.IDColumns) > 0 {
			entityIDs[a.EntityType] = a.IDColumns[0]
		}
	}

	var rels []Relationship
	for _, a := range analyses {
		if a.IsRelationshipTable {
			if r, ok := mappingRelationship(a, entityIDs); ok {
				rels = append(rels, r)
			}
			continue
		}
		if len(a.IDColumns) == 0 {
			continue
		}

		for _, fk := range a.ForeignKeys {
			target, ok := targetEntity(fk, entityIDs)
			if !ok {
				continue
			}
			rels = append(rels, referenceRelationship(a, fk, target))
		}
	}
	return rels
}

// mappingRelationship handles dedicated relationship tables. The first two
// resolvable foreign keys pick the endpoints.
func mappingRelationship(a FileAnalysis, entityIDs map[string]string) (Relationship, bool) {
	keys := append(append([]string{}, a.ForeignKeys...), a.IDColumns...)

	var from, to string
	var fromCol, toCol string
	for _, fk := range keys {
		target, ok := targetEntity(fk, entityIDs)
		if !ok {
			continue
		}
		if from == "" {
			from, fromCol = target, fk
		} else if to == "" && target != from {
			to, toCol = target, fk
			break
		}
	}
	if from == "" || to == "" {
		return Relationship{}, false
	}

	// Supplier mappings define the supply chain direction.
	if to == common.TypeSupplier {
		from, to = to, from
		fromCol, toCol = toCol, fromCol
	}

	relType := "MAPPED_TO"
	if from == common.TypeSupplier {
		relType = common.EdgeSupplies
	}

	return Relationship{
		SourceFile: a.File,
		Type:       relType,
		FromEntity: from,
		FromColumn: fromCol,
		ToEntity:   to,
		ToColumn:   toCol,
	}, true
}

// referenceRelationship maps an in-table foreign key to an edge rule, using
// the fixed vocabulary of the domain chain.
func referenceRelationship(a FileAnalysis, fk, target string) Relationship {
	r := Relationship{
		SourceFile: a.File,
		FromEntity: a.EntityType,
		FromColumn: a.IDColumns[0],
		ToEntity:   target,
		ToColumn:   fk,
	}

	switch target {
	case common.TypeProduct:
		r.Type = common.EdgeContains
	case common.TypeAssembly:
		r.Type = common.EdgeIsPartOf
	case common.TypeSupplier:
		// Flip so the edge reads Supplier SUPPLIES <entity>.
		r.Type = common.EdgeSupplies
		r.FromEntity, r.ToEntity = target, a.EntityType
		r.FromColumn, r.ToColumn = fk, a.IDColumns[0]
	default:
		r.Type = "HAS_" + strings.ToUpper(target)
	}
	return r
}

// targetEntity resolves a foreign key column to a known entity type.
// Candidates are checked in sorted order so resolution is deterministic.
func targetEntity(fk string, entityIDs map[string]string) (string, bool) {
	base := strings.TrimSuffix(strings.ToLower(fk), "_id")

	entities := make([]string, 0, len(entityIDs))
	for entity := range entityIDs {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		if strings.Contains(strings.ToLower(entity), base) {
			return entity, true
		}
	}
	return "", false
}
