package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/weftlabs/weft/pkg/common"
	"github.com/weftlabs/weft/pkg/plan"
	"github.com/weftlabs/weft/pkg/store"
)

// Store executes graph plans against a Neo4j instance. Node types become
// labels, attribute maps are stored as a JSON string property because Neo4j
// does not support nested maps.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// Config holds Neo4j connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// New creates a new Neo4j store and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Store{driver: driver, database: database}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

var identifierRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// safeIdentifier strips anything that cannot appear in a label or
// relationship type. Labels are never parameterizable in Cypher.
func safeIdentifier(s string) string {
	return identifierRe.ReplaceAllString(s, "_")
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *Store) CreateNode(ctx context.Context, node common.Node) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		attrJSON, err := json.Marshal(node.Attributes)
		if err != nil {
			return nil, fmt.Errorf("marshaling attributes: %w", err)
		}

		sets := []string{
			"n.type = $type",
			"n.name = $name",
			"n.origin = $origin",
			"n.source_file = $source_file",
			"n.record_id = $record_id",
			"n.attributes = $attributes",
		}
		params := map[string]any{
			"id":          node.ID,
			"type":        node.Type,
			"name":        node.Name(),
			"origin":      string(node.Origin),
			"source_file": node.Source.File,
			"record_id":   node.Source.RecordID,
			"attributes":  string(attrJSON),
		}
		for k, v := range scalarAttributes(node.Attributes) {
			sets = append(sets, fmt.Sprintf("n.%s = $attr_%s", k, k))
			params["attr_"+k] = v
		}

		query := fmt.Sprintf("MERGE (n:%s {id: $id}) SET %s RETURN n",
			safeIdentifier(node.Type), strings.Join(sets, ", "))

		_, err = tx.Run(ctx, query, params)
		return nil, err
	})

	return err
}

// scalarAttributes picks the attributes that can be stored as first-class
// properties, so aggregation queries can reference them directly.
func scalarAttributes(attrs map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range attrs {
		key := safeIdentifier(k)
		switch key {
		case "id", "type", "name", "origin", "source_file", "record_id", "attributes":
			continue
		}
		switch v.(type) {
		case string, float64, int, int64, bool:
			out[key] = v
		}
	}
	return out
}

func (s *Store) CreateEdge(ctx context.Context, edge common.Edge) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (source {id: $from_id})
			MATCH (target {id: $to_id})
			MERGE (source)-[r:%s]->(target)
			SET r.weight = $weight,
				r.strategy = $strategy,
				r.source_file = $source_file,
				r.record_id = $record_id
			RETURN r
		`, safeIdentifier(edge.Type))

		params := map[string]any{
			"from_id":     edge.From,
			"to_id":       edge.To,
			"weight":      edge.Weight,
			"strategy":    edge.Strategy,
			"source_file": edge.Source.File,
			"record_id":   edge.Source.RecordID,
		}

		_, err := tx.Run(ctx, query, params)
		return nil, err
	})

	return err
}

func (s *Store) NodesByType(ctx context.Context, nodeType string) ([]common.Node, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`MATCH (n:%s) RETURN n ORDER BY n.name, n.id`, safeIdentifier(nodeType))

		result, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}

		var nodes []common.Node
		for result.Next(ctx) {
			value, _ := result.Record().Get("n")
			node, err := decodeNode(value)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
		return nodes, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]common.Node), nil
}

func (s *Store) Clear(ctx context.Context) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `MATCH (n) DETACH DELETE n`, nil)
		return nil, err
	})
	return err
}

// RunPattern renders the plan to Cypher and executes it.
func (s *Store) RunPattern(ctx context.Context, p plan.Plan) (*store.Result, error) {
	if p.Status != plan.StatusOK {
		return nil, fmt.Errorf("refusing to run a %s plan", p.Status)
	}
	if p.RequireResolution {
		return s.runEvidence(ctx, p)
	}

	query, params, lastVar := renderQuery(p)
	res := &store.Result{Query: query, MinResolution: 1.0}

	session := s.session(ctx)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		var rows []store.Row
		for result.Next(ctx) {
			record := result.Record()
			if p.Aggregate != nil {
				name, _ := record.Get("name")
				value, _ := record.Get("value")
				rows = append(rows, store.Row{Name: asString(name), Value: value})
				continue
			}
			value, _ := record.Get(lastVar)
			node, err := decodeNode(value)
			if err != nil {
				return nil, err
			}
			n := node
			rows = append(rows, store.Row{Name: n.Name(), Node: &n})
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	res.Rows = rows.([]store.Row)
	return res, nil
}

// renderQuery builds a parameterized Cypher query for listing, relationship
// and aggregation plans.
func renderQuery(p plan.Plan) (string, map[string]any, string) {
	var b strings.Builder
	params := map[string]any{}

	b.WriteString(fmt.Sprintf("MATCH (n0:%s)", safeIdentifier(p.StartType)))
	lastVar := "n0"
	for i, hop := range p.Hops {
		cur := fmt.Sprintf("n%d", i+1)
		rel := safeIdentifier(hop.EdgeType)
		target := safeIdentifier(hop.TargetType)
		if hop.Direction == plan.Out {
			b.WriteString(fmt.Sprintf("-[:%s]->(%s:%s)", rel, cur, target))
		} else {
			b.WriteString(fmt.Sprintf("<-[:%s]-(%s:%s)", rel, cur, target))
		}
		lastVar = cur
	}

	conds := []string{}
	if plan.IsDomainType(p.StartType) {
		conds = append(conds, "n0.origin = 'domain'")
	}
	for attr, pred := range p.Filters {
		key := safeIdentifier(attr)
		param := "f_" + key
		params[param] = pred.Value
		if pred.Op == "contains" {
			conds = append(conds, fmt.Sprintf("toLower(n0.%s) CONTAINS toLower($%s)", key, param))
		} else {
			conds = append(conds, fmt.Sprintf("toLower(n0.%s) = toLower($%s)", key, param))
		}
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	switch {
	case p.Aggregate != nil && (p.Aggregate.Op == "count" || p.Aggregate.Op == ""):
		b.WriteString(fmt.Sprintf(" RETURN %s.name AS name, count(*) AS value ORDER BY name", lastVar))
	case p.Aggregate != nil:
		b.WriteString(fmt.Sprintf(" RETURN %s.name AS name, %s(%s.%s) AS value ORDER BY name",
			lastVar, p.Aggregate.Op, lastVar, safeIdentifier(p.Aggregate.Attribute)))
	default:
		b.WriteString(fmt.Sprintf(" RETURN DISTINCT %s ORDER BY %s.name, %s.id", lastVar, lastVar, lastVar))
	}

	return b.String(), params, lastVar
}

// runEvidence is the TEXT_EVIDENCE path: first check that the matched domain
// entities carry a resolution link at all, then collect the subject-graph
// evidence behind those links.
func (s *Store) runEvidence(ctx context.Context, p plan.Plan) (*store.Result, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	startLabel := safeIdentifier(p.StartType)
	conds := []string{"n0.origin = 'domain'"}
	params := map[string]any{}
	for attr, pred := range p.Filters {
		key := safeIdentifier(attr)
		param := "f_" + key
		params[param] = pred.Value
		if pred.Op == "contains" {
			conds = append(conds, fmt.Sprintf("toLower(n0.%s) CONTAINS toLower($%s)", key, param))
		} else {
			conds = append(conds, fmt.Sprintf("toLower(n0.%s) = toLower($%s)", key, param))
		}
	}
	where := strings.Join(conds, " AND ")

	linkQuery := fmt.Sprintf(
		`MATCH (n0:%s)<-[r:%s]-(m) WHERE %s RETURN count(r) AS links, min(r.weight) AS min_weight`,
		startLabel, safeIdentifier(common.EdgeResolvedTo), where)

	relTypes := make([]string, 0, len(p.EvidenceEdges))
	for _, e := range p.EvidenceEdges {
		relTypes = append(relTypes, safeIdentifier(e))
	}
	evidenceQuery := fmt.Sprintf(
		`MATCH (n0:%s)<-[:%s]-(m)-[:%s]-(e) WHERE %s RETURN DISTINCT e ORDER BY e.name, e.id`,
		startLabel, safeIdentifier(common.EdgeResolvedTo), strings.Join(relTypes, "|"), where)

	res := &store.Result{Query: evidenceQuery, MinResolution: 1.0}

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, linkQuery, params)
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			res.NoEvidence = true
			return []store.Row(nil), nil
		}
		record := result.Record()
		links, _ := record.Get("links")
		if n, ok := links.(int64); !ok || n == 0 {
			res.NoEvidence = true
			return []store.Row(nil), nil
		}
		if w, _ := record.Get("min_weight"); w != nil {
			if f, ok := w.(float64); ok {
				res.MinResolution = f
			}
		}

		result, err = tx.Run(ctx, evidenceQuery, params)
		if err != nil {
			return nil, err
		}
		var rows []store.Row
		for result.Next(ctx) {
			value, _ := result.Record().Get("e")
			node, err := decodeNode(value)
			if err != nil {
				return nil, err
			}
			n := node
			rows = append(rows, store.Row{Name: n.Name(), Node: &n})
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	res.Rows = out.([]store.Row)
	return res, nil
}

func decodeNode(value any) (common.Node, error) {
	data, ok := value.(neo4j.Node)
	if !ok {
		return common.Node{}, fmt.Errorf("expected a node record, got %T", value)
	}

	var attrs map[string]any
	if raw, ok := data.Props["attributes"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
			return common.Node{}, fmt.Errorf("unmarshaling attributes: %w", err)
		}
	}

	node := common.Node{
		ID:         asString(data.Props["id"]),
		Type:       asString(data.Props["type"]),
		Attributes: attrs,
		Origin:     common.GraphOrigin(asString(data.Props["origin"])),
		Source: common.SourceRef{
			File:     asString(data.Props["source_file"]),
			RecordID: asString(data.Props["record_id"]),
		},
	}
	return node, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
