package store

import (
	"context"

	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/plan"
)

// Row is one result row of an executed plan. Node is set for entity rows;
// aggregation rows carry only Name and Value.
type Row struct {
	Name  string       `json:"name"`
	Value any          `json:"value,omitempty"`
	Node  *common.Node `json:"node,omitempty"`
}

// Result is the raw outcome of running a plan against a graph engine.
type Result struct {
	Rows  []Row  `json:"rows"`
	Query string `json:"query"`

	// MinResolution is the lowest RESOLVED_TO weight crossed while
	// producing the rows, 1.0 when no resolution edge was crossed.
	MinResolution float64 `json:"min_resolution"`

	// NoEvidence is set when a plan demanded a resolution link and the
	// start entity had none.
	NoEvidence bool `json:"no_evidence"`
}

// GraphStore is the persistence boundary. The memory engine backs tests and
// offline runs; the Neo4j adapter backs deployments. Both execute the same
// abstract plans.
type GraphStore interface {
	CreateNode(ctx context.Context, node common.Node) error
	CreateEdge(ctx context.Context, edge common.Edge) error
	NodesByType(ctx context.Context, nodeType string) ([]common.Node, error)
	RunPattern(ctx context.Context, p plan.Plan) (*Result, error)
	Clear(ctx context.Context) error
	Close(ctx context.Context) error
}

// Load writes a whole snapshot into a store, nodes before edges.
func Load(ctx context.Context, s GraphStore, snap common.Snapshot) error {
	for _, n := range snap.Nodes {
		if err := s.CreateNode(ctx, n); err != nil {
			return err
		}
	}
	for _, e := range snap.Edges {
		if err := s.CreateEdge(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
