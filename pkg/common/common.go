package common

// Node is a typed vertex in the unified graph. Nodes come from one of two
// independently built graphs:
//
//   - the domain graph, derived deterministically from tabular sources
//   - the subject graph, derived from entities extracted out of free text
//
// A node is immutable after creation except for enrichment during entity
// resolution, which may add a cross-graph link annotation.
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
	Source     SourceRef      `json:"source"`

	// Origin marks which graph the node belongs to.
	Origin GraphOrigin `json:"origin"`
}

// GraphOrigin identifies which of the two graphs a node was built into.
type GraphOrigin string

const (
	OriginDomain  GraphOrigin = "domain"
	OriginSubject GraphOrigin = "subject"
)

// SourceRef links a node or answer row back to the file and record
// it was derived from.
type SourceRef struct {
	File     string `json:"file"`
	RecordID string `json:"record_id"`
}

// Edge is a typed, directed relationship between two node ids.
// Edges are append-only; there is no in-place mutation.
type Edge struct {
	Type   string    `json:"type"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Weight float64   `json:"weight,omitempty"`
	Source SourceRef `json:"source"`

	// Strategy names the matching strategy for resolution links,
	// empty for all other edge types.
	Strategy string `json:"strategy,omitempty"`
}

// EdgeResolvedTo links a subject-graph node to the domain-graph node it
// denotes. At most one per subject node; Weight carries the similarity
// score that produced the link.
const EdgeResolvedTo = "RESOLVED_TO"

// Domain-side relationship types, foreign-key-faithful to the source tables.
const (
	EdgeSupplies = "SUPPLIES"
	EdgeIsPartOf = "IS_PART_OF"
	EdgeContains = "CONTAINS"
)

// Subject-side relationship types attached to extracted entities.
const (
	EdgeReviewedBy = "reviewed_by"
	EdgeHasRating  = "has_rating"
	EdgeHasIssue   = "has_issue"
	EdgeHasFeature = "has_feature"
)

// Well-known node types. The set is open; these are the ones the schema
// adjacency and the resolver know about.
const (
	TypeProduct  = "Product"
	TypeSupplier = "Supplier"
	TypePart     = "Part"
	TypeAssembly = "Assembly"
	TypeUser     = "User"
	TypeRating   = "Rating"
	TypeIssue    = "Issue"
	TypeFeature  = "Feature"
)

// Name returns the node's primary name attribute, falling back to its id.
// Resolution and name lookups match against this value.
func (n Node) Name() string {
	if v, ok := n.Attributes["name"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return n.ID
}

// Snapshot is an immutable collection of nodes and edges from one graph.
// The resolver and planner operate on frozen snapshots; construction never
// mutates a published snapshot.
type Snapshot struct {
	Nodes []Node
	Edges []Edge
}

// NodesOfType returns all nodes with the given type.
func (s Snapshot) NodesOfType(typ string) []Node {
	var out []Node
	for _, n := range s.Nodes {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}
