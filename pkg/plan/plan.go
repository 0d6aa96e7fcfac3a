package plan

import (
	"fmt"
	"strings"

	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/intent"
)

// MaxHops bounds relationship paths so a bad schema walk can never run away.
const MaxHops = 4

// Direction is the traversal direction of a hop relative to edge storage.
type Direction string

const (
	// Out follows an edge from its From node to its To node.
	Out Direction = "out"
	// In follows an edge backwards, from To to From.
	In Direction = "in"
)

// Hop is one traversal step: an edge type, the direction to walk it, and the
// node type expected on the far side.
type Hop struct {
	EdgeType   string    `json:"edge_type"`
	Direction  Direction `json:"direction"`
	TargetType string    `json:"target_type"`
}

// Predicate filters nodes on an attribute value.
type Predicate struct {
	Op    string `json:"op"` // "eq" (case-insensitive) or "contains"
	Value string `json:"value"`
}

// Aggregation is an optional grouping clause on the plan's result rows.
type Aggregation struct {
	GroupBy   string `json:"group_by"`
	Op        string `json:"op"` // count, sum, avg, max, min
	Attribute string `json:"attribute,omitempty"`
}

// Status marks whether a plan can be executed at all.
type Status string

const (
	StatusOK Status = "OK"
	// StatusUnsatisfiable means a referenced entity exists nowhere in the
	// graph. Such plans short-circuit to an empty answer, never a guess.
	StatusUnsatisfiable Status = "UNSATISFIABLE"
)

// Plan is an abstract, engine-agnostic traversal description. It is built
// per question and discarded after execution; plans are never persisted.
type Plan struct {
	Intent    intent.Intent        `json:"intent"`
	Status    Status               `json:"status"`
	Reason    string               `json:"reason,omitempty"`
	StartType string               `json:"start_type"`
	Hops      []Hop                `json:"hops"`
	Filters   map[string]Predicate `json:"filters,omitempty"`
	Aggregate *Aggregation         `json:"aggregate,omitempty"`

	// RequireResolution makes execution demand an inbound RESOLVED_TO edge
	// on the start node. Without one the result is the "no evidence"
	// outcome, not an error.
	RequireResolution bool `json:"require_resolution,omitempty"`

	// EvidenceEdges are the subject-side edge types collected after
	// crossing a resolution link (TEXT_EVIDENCE only).
	EvidenceEdges []string `json:"evidence_edges,omitempty"`
}

// schemaEdge records how two node types are related at the schema level,
// in edge storage direction (From -> To).
type schemaEdge struct {
	from     string
	to       string
	edgeType string
}

// The canonical domain chain: suppliers supply parts, parts belong to
// assemblies, assemblies are contained in products.
var schemaEdges = []schemaEdge{
	{from: common.TypeAssembly, to: common.TypeProduct, edgeType: common.EdgeContains},
	{from: common.TypePart, to: common.TypeAssembly, edgeType: common.EdgeIsPartOf},
	{from: common.TypeSupplier, to: common.TypePart, edgeType: common.EdgeSupplies},
}

// IsDomainType reports whether a node type belongs to the tabular domain
// chain. Plans starting on a domain type must anchor on domain-graph nodes,
// never on subject-graph mentions that happen to share the type.
func IsDomainType(t string) bool {
	for _, e := range schemaEdges {
		if e.from == t || e.to == t {
			return true
		}
	}
	return false
}

// Catalog exposes the entity names known to the unified graph, so the
// planner can refuse to plan around names that exist nowhere.
type Catalog interface {
	// FindName returns the node type and canonical name for a
	// case-insensitive name match, or ok=false.
	FindName(name string) (nodeType string, canonical string, ok bool)
}

// Build maps a classification to a traversal plan. The mapping is
// deterministic; identical classifications over the same catalog produce
// identical plans.
func Build(cls intent.Classification, catalog Catalog) Plan {
	switch cls.Intent {
	case intent.EntityListing:
		return buildListing(cls)
	case intent.AttributeLookup:
		return buildAttributeLookup(cls, catalog)
	case intent.TextEvidence:
		return buildTextEvidence(cls, catalog)
	case intent.MultiHopRelationship:
		return buildMultiHop(cls, catalog)
	case intent.Aggregation:
		return buildAggregation(cls, catalog)
	default:
		return Plan{
			Intent: cls.Intent,
			Status: StatusUnsatisfiable,
			Reason: "question intent could not be determined",
		}
	}
}

func buildListing(cls intent.Classification) Plan {
	if len(cls.EntityTypes) == 0 {
		return Plan{
			Intent: cls.Intent,
			Status: StatusUnsatisfiable,
			Reason: "listing question references no entity type",
		}
	}
	return Plan{
		Intent:    cls.Intent,
		Status:    StatusOK,
		StartType: cls.EntityTypes[0],
	}
}

func buildAttributeLookup(cls intent.Classification, catalog Catalog) Plan {
	typ, canonical, ok := firstKnownName(cls.EntityNames, catalog)
	if !ok {
		if len(cls.EntityNames) > 0 {
			return unknownEntity(cls, cls.EntityNames[0])
		}
		if len(cls.EntityTypes) > 0 {
			return Plan{
				Intent:    cls.Intent,
				Status:    StatusOK,
				StartType: cls.EntityTypes[0],
			}
		}
		return Plan{
			Intent: cls.Intent,
			Status: StatusUnsatisfiable,
			Reason: "attribute question references no known entity",
		}
	}

	return Plan{
		Intent:    cls.Intent,
		Status:    StatusOK,
		StartType: typ,
		Filters: map[string]Predicate{
			"name": {Op: "eq", Value: canonical},
		},
	}
}

func buildTextEvidence(cls intent.Classification, catalog Catalog) Plan {
	startType := common.TypeProduct
	filters := map[string]Predicate{}

	if len(cls.EntityNames) > 0 {
		typ, canonical, ok := firstKnownName(cls.EntityNames, catalog)
		if !ok {
			return unknownEntity(cls, cls.EntityNames[0])
		}
		startType = typ
		filters["name"] = Predicate{Op: "eq", Value: canonical}
	} else if len(cls.EntityTypes) > 0 {
		startType = cls.EntityTypes[0]
	}

	return Plan{
		Intent:            cls.Intent,
		Status:            StatusOK,
		StartType:         startType,
		Filters:           filters,
		RequireResolution: true,
		Hops: []Hop{
			{EdgeType: common.EdgeResolvedTo, Direction: In, TargetType: startType},
		},
		EvidenceEdges: []string{
			common.EdgeReviewedBy,
			common.EdgeHasRating,
			common.EdgeHasIssue,
			common.EdgeHasFeature,
		},
	}
}

func buildMultiHop(cls intent.Classification, catalog Catalog) Plan {
	startType := ""
	filters := map[string]Predicate{}

	if len(cls.EntityNames) > 0 {
		typ, canonical, ok := firstKnownName(cls.EntityNames, catalog)
		if !ok {
			return unknownEntity(cls, cls.EntityNames[0])
		}
		startType = typ
		filters["name"] = Predicate{Op: "eq", Value: canonical}
	}

	targetType := pickTarget(cls.EntityTypes, startType)
	if startType == "" {
		if len(cls.EntityTypes) < 2 {
			return Plan{
				Intent: cls.Intent,
				Status: StatusUnsatisfiable,
				Reason: "relationship question needs two entity types or a named entity",
			}
		}
		startType = cls.EntityTypes[len(cls.EntityTypes)-1]
		targetType = cls.EntityTypes[0]
	}
	if targetType == "" || targetType == startType {
		return Plan{
			Intent: cls.Intent,
			Status: StatusUnsatisfiable,
			Reason: fmt.Sprintf("no traversal target distinct from %s", startType),
		}
	}

	hops, ok := shortestSchemaPath(startType, targetType)
	if !ok {
		return Plan{
			Intent: cls.Intent,
			Status: StatusUnsatisfiable,
			Reason: fmt.Sprintf("no schema path from %s to %s within %d hops", startType, targetType, MaxHops),
		}
	}

	return Plan{
		Intent:    cls.Intent,
		Status:    StatusOK,
		StartType: startType,
		Filters:   filters,
		Hops:      hops,
	}
}

func buildAggregation(cls intent.Classification, catalog Catalog) Plan {
	base := cls
	base.Intent = intent.MultiHopRelationship

	var p Plan
	switch {
	case len(cls.EntityTypes) >= 2 || len(cls.EntityNames) > 0:
		p = buildMultiHop(base, catalog)
	case len(cls.EntityTypes) == 1:
		base.Intent = intent.EntityListing
		p = buildListing(base)
	default:
		return Plan{
			Intent: cls.Intent,
			Status: StatusUnsatisfiable,
			Reason: "aggregation question references no entities",
		}
	}

	p.Intent = cls.Intent
	if p.Status != StatusOK {
		return p
	}

	groupType := p.StartType
	if len(p.Hops) > 0 {
		groupType = p.Hops[len(p.Hops)-1].TargetType
	}

	p.Aggregate = &Aggregation{
		GroupBy:   groupType,
		Op:        cls.AggregateOp,
		Attribute: aggregationAttribute(cls.AggregateOp, groupType),
	}
	return p
}

// aggregationAttribute picks the numeric attribute an op applies to.
// count needs none; numeric ops use the conventional value field per type.
func aggregationAttribute(op, nodeType string) string {
	if op == "count" || op == "" {
		return ""
	}
	switch nodeType {
	case common.TypeRating:
		return "value"
	case common.TypeProduct:
		return "price"
	case common.TypePart:
		return "price"
	default:
		return ""
	}
}

func unknownEntity(cls intent.Classification, name string) Plan {
	return Plan{
		Intent: cls.Intent,
		Status: StatusUnsatisfiable,
		Reason: fmt.Sprintf("entity %q not found in the graph", name),
	}
}

func firstKnownName(names []string, catalog Catalog) (string, string, bool) {
	if catalog == nil {
		return "", "", false
	}
	for _, name := range names {
		if typ, canonical, ok := catalog.FindName(name); ok {
			return typ, canonical, true
		}
	}
	return "", "", false
}

func pickTarget(types []string, startType string) string {
	for _, t := range types {
		if t != startType {
			return t
		}
	}
	return ""
}

// shortestSchemaPath finds the hop sequence between two node types over the
// fixed schema adjacency, breadth-first, bounded by MaxHops.
func shortestSchemaPath(from, to string) ([]Hop, bool) {
	type state struct {
		node string
		hops []Hop
	}

	visited := map[string]bool{from: true}
	frontier := []state{{node: from}}

	for len(frontier) > 0 {
		var next []state
		for _, s := range frontier {
			if len(s.hops) >= MaxHops {
				continue
			}
			for _, e := range schemaEdges {
				var neighbor string
				var hop Hop
				switch s.node {
				case e.from:
					neighbor = e.to
					hop = Hop{EdgeType: e.edgeType, Direction: Out, TargetType: e.to}
				case e.to:
					neighbor = e.from
					hop = Hop{EdgeType: e.edgeType, Direction: In, TargetType: e.from}
				default:
					continue
				}
				if visited[neighbor] {
					continue
				}
				hops := append(append([]Hop{}, s.hops...), hop)
				if neighbor == to {
					return hops, true
				}
				visited[neighbor] = true
				next = append(next, state{node: neighbor, hops: hops})
			}
		}
		frontier = next
	}
	return nil, false
}

// Cypher renders the plan as a Cypher query. The memory engine reports this
// as the equivalent query text; the Neo4j adapter executes it directly.
func (p Plan) Cypher() string {
	if p.Status == StatusUnsatisfiable {
		return ""
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("MATCH (n0:%s)", p.StartType))

	prev := "n0"
	for i, hop := range p.Hops {
		cur := fmt.Sprintf("n%d", i+1)
		if hop.Direction == Out {
			b.WriteString(fmt.Sprintf("-[:%s]->(%s:%s)", hop.EdgeType, cur, hop.TargetType))
		} else {
			b.WriteString(fmt.Sprintf("<-[:%s]-(%s:%s)", hop.EdgeType, cur, hop.TargetType))
		}
		prev = cur
	}

	var conds []string
	for attr, pred := range p.Filters {
		switch pred.Op {
		case "contains":
			conds = append(conds, fmt.Sprintf("toLower(n0.%s) CONTAINS toLower('%s')", attr, escapeCypher(pred.Value)))
		default:
			conds = append(conds, fmt.Sprintf("toLower(n0.%s) = toLower('%s')", attr, escapeCypher(pred.Value)))
		}
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	switch {
	case p.Aggregate != nil && p.Aggregate.Op == "count":
		b.WriteString(fmt.Sprintf(" RETURN %s.name AS name, count(*) AS value", prev))
	case p.Aggregate != nil:
		b.WriteString(fmt.Sprintf(" RETURN %s.name AS name, %s(%s.%s) AS value",
			prev, p.Aggregate.Op, prev, p.Aggregate.Attribute))
	default:
		b.WriteString(fmt.Sprintf(" RETURN DISTINCT %s", prev))
	}

	return b.String()
}

func escapeCypher(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
