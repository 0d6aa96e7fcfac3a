package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/plan"
	"github.com/weftlabs/weft/pkg/store"
)

// Store is an in-process graph engine with the same plan semantics as the
// Neo4j adapter. It backs tests and offline pipeline runs.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]common.Node
	order []string
	edges []common.Edge
	out   map[string][]int
	in    map[string][]int
}

func New() *Store {
	return &Store{
		nodes: make(map[string]common.Node),
		out:   make(map[string][]int),
		in:    make(map[string][]int),
	}
}

func (s *Store) CreateNode(_ context.Context, node common.Node) error {
	if node.ID == "" {
		return fmt.Errorf("node has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[node.ID]; !exists {
		s.order = append(s.order, node.ID)
	}
	s.nodes[node.ID] = node
	return nil
}

func (s *Store) CreateEdge(_ context.Context, edge common.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[edge.From]; !ok {
		return fmt.Errorf("edge %s references unknown node %s", edge.Type, edge.From)
	}
	if _, ok := s.nodes[edge.To]; !ok {
		return fmt.Errorf("edge %s references unknown node %s", edge.Type, edge.To)
	}
	idx := len(s.edges)
	s.edges = append(s.edges, edge)
	s.out[edge.From] = append(s.out[edge.From], idx)
	s.in[edge.To] = append(s.in[edge.To], idx)
	return nil
}

func (s *Store) NodesByType(_ context.Context, nodeType string) ([]common.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []common.Node
	for _, id := range s.order {
		if n := s.nodes[id]; n.Type == nodeType {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]common.Node)
	s.order = nil
	s.edges = nil
	s.out = make(map[string][]int)
	s.in = make(map[string][]int)
	return nil
}

func (s *Store) Close(context.Context) error { return nil }

// RunPattern executes an abstract plan over the in-memory graph. Results are
// sorted by name then id, so repeated runs are byte-identical.
func (s *Store) RunPattern(_ context.Context, p plan.Plan) (*store.Result, error) {
	if p.Status != plan.StatusOK {
		return nil, fmt.Errorf("refusing to run a %s plan", p.Status)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	res := &store.Result{Query: p.Cypher(), MinResolution: 1.0}

	starts := s.startNodes(p)
	if p.RequireResolution {
		s.runEvidence(p, starts, res)
		return res, nil
	}
	if p.Aggregate != nil {
		s.runAggregate(p, starts, res)
		return res, nil
	}

	finals, minRes := s.walk(starts, p.Hops)
	res.MinResolution = minRes
	res.Rows = nodeRows(finals)
	return res, nil
}

func (s *Store) startNodes(p plan.Plan) []common.Node {
	anchorDomain := plan.IsDomainType(p.StartType)

	var starts []common.Node
	for _, id := range s.order {
		n := s.nodes[id]
		if n.Type != p.StartType {
			continue
		}
		if anchorDomain && n.Origin == common.OriginSubject {
			continue
		}
		if matchesFilters(n, p.Filters) {
			starts = append(starts, n)
		}
	}
	return starts
}

// walk runs the hop sequence from the given frontier and returns the
// deduplicated final nodes plus the lowest resolution weight crossed.
func (s *Store) walk(starts []common.Node, hops []plan.Hop) ([]common.Node, float64) {
	frontier := starts
	minRes := 1.0

	for _, hop := range hops {
		seen := make(map[string]bool)
		var next []common.Node
		for _, n := range frontier {
			for _, neighbor := range s.neighbors(n.ID, hop) {
				if hop.EdgeType == common.EdgeResolvedTo {
					if w := s.edgeWeight(n.ID, neighbor.ID, hop); w < minRes {
						minRes = w
					}
				}
				if !seen[neighbor.ID] {
					seen[neighbor.ID] = true
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}
	return frontier, minRes
}

func (s *Store) neighbors(id string, hop plan.Hop) []common.Node {
	var idxs []int
	if hop.Direction == plan.Out {
		idxs = s.out[id]
	} else {
		idxs = s.in[id]
	}

	var out []common.Node
	for _, i := range idxs {
		e := s.edges[i]
		if e.Type != hop.EdgeType {
			continue
		}
		otherID := e.To
		if hop.Direction == plan.In {
			otherID = e.From
		}
		other := s.nodes[otherID]
		if hop.TargetType != "" && other.Type != hop.TargetType {
			continue
		}
		out = append(out, other)
	}
	return out
}

func (s *Store) edgeWeight(id, otherID string, hop plan.Hop) float64 {
	idxs := s.out[id]
	from, to := id, otherID
	if hop.Direction == plan.In {
		idxs = s.in[id]
		from, to = otherID, id
	}
	for _, i := range idxs {
		e := s.edges[i]
		if e.Type == hop.EdgeType && e.From == from && e.To == to {
			return e.Weight
		}
	}
	return 1.0
}

// runEvidence crosses resolution links from the matched domain entities to
// their subject-graph counterparts and collects the attached evidence nodes.
func (s *Store) runEvidence(p plan.Plan, starts []common.Node, res *store.Result) {
	resolveHop := plan.Hop{EdgeType: common.EdgeResolvedTo, Direction: plan.In}

	var mentions []common.Node
	minRes := 1.0
	for _, start := range starts {
		for _, m := range s.neighbors(start.ID, resolveHop) {
			if w := s.edgeWeight(start.ID, m.ID, resolveHop); w < minRes {
				minRes = w
			}
			mentions = append(mentions, m)
		}
	}

	if len(mentions) == 0 {
		res.NoEvidence = true
		return
	}
	res.MinResolution = minRes

	seen := make(map[string]bool)
	var evidence []common.Node
	for _, m := range mentions {
		for _, edgeType := range p.EvidenceEdges {
			for _, dir := range []plan.Direction{plan.Out, plan.In} {
				for _, n := range s.neighbors(m.ID, plan.Hop{EdgeType: edgeType, Direction: dir}) {
					if !seen[n.ID] {
						seen[n.ID] = true
						evidence = append(evidence, n)
					}
				}
			}
		}
	}
	res.Rows = nodeRows(evidence)
}

func (s *Store) runAggregate(p plan.Plan, starts []common.Node, res *store.Result) {
	agg := p.Aggregate

	// No hops: one global group over the start nodes.
	if len(p.Hops) == 0 {
		vals := make([]float64, 0, len(starts))
		for _, n := range starts {
			vals = append(vals, numericAttr(n, agg.Attribute))
		}
		res.Rows = []store.Row{{Name: agg.GroupBy, Value: aggregate(agg.Op, len(starts), vals)}}
		return
	}

	// With hops: each (start, final) pair contributes to the final node's
	// group, so "parts per supplier" counts the parts each supplier
	// reaches, not the suppliers.
	groups := make(map[string][]float64)
	counts := make(map[string]int)
	var names []string
	minRes := 1.0

	for _, start := range starts {
		finals, m := s.walk([]common.Node{start}, p.Hops)
		if m < minRes {
			minRes = m
		}
		for _, f := range finals {
			name := f.Name()
			if _, ok := counts[name]; !ok {
				names = append(names, name)
			}
			counts[name]++
			groups[name] = append(groups[name], numericAttr(f, agg.Attribute))
		}
	}
	res.MinResolution = minRes

	sort.Strings(names)
	for _, name := range names {
		res.Rows = append(res.Rows, store.Row{
			Name:  name,
			Value: aggregate(agg.Op, counts[name], groups[name]),
		})
	}
}

func aggregate(op string, count int, vals []float64) any {
	switch op {
	case "sum":
		return sum(vals)
	case "avg":
		if len(vals) == 0 {
			return 0.0
		}
		return sum(vals) / float64(len(vals))
	case "max":
		return extreme(vals, func(a, b float64) bool { return a > b })
	case "min":
		return extreme(vals, func(a, b float64) bool { return a < b })
	default:
		return count
	}
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}

func extreme(vals []float64, better func(a, b float64) bool) float64 {
	if len(vals) == 0 {
		return 0
	}
	best := vals[0]
	for _, v := range vals[1:] {
		if better(v, best) {
			best = v
		}
	}
	return best
}

func numericAttr(n common.Node, attr string) float64 {
	if attr == "" {
		return 0
	}
	switch v := n.Attributes[attr].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func matchesFilters(n common.Node, filters map[string]plan.Predicate) bool {
	for attr, pred := range filters {
		val := attrString(n, attr)
		switch pred.Op {
		case "contains":
			if !strings.Contains(strings.ToLower(val), strings.ToLower(pred.Value)) {
				return false
			}
		default:
			if !strings.EqualFold(val, pred.Value) {
				return false
			}
		}
	}
	return true
}

func attrString(n common.Node, attr string) string {
	if attr == "name" {
		return n.Name()
	}
	switch v := n.Attributes[attr].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func nodeRows(nodes []common.Node) []store.Row {
	sort.Slice(nodes, func(i, j int) bool {
		ni, nj := nodes[i].Name(), nodes[j].Name()
		if ni != nj {
			return ni < nj
		}
		return nodes[i].ID < nodes[j].ID
	})
	rows := make([]store.Row, 0, len(nodes))
	for _, n := range nodes {
		n := n
		rows = append(rows, store.Row{Name: n.Name(), Node: &n})
	}
	return rows
}
