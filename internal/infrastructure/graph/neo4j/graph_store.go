// Package neo4j serves reference edges from a Neo4j graph where paragraphs,
// guide sections and standards are nodes keyed by their id property and
// edges use the relationship types HOP_EDGE, CITES, MAPS_TO and BELONGS_TO.
package neo4j

import (
	"context"
	"fmt"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

// QueryRunner executes a read query and returns its rows as maps.
type QueryRunner func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

var relationshipTypes = map[domain.EdgeKind]string{
	domain.EdgeCites:     "CITES",
	domain.EdgeHop:       "HOP_EDGE",
	domain.EdgeMapsTo:    "MAPS_TO",
	domain.EdgeBelongsTo: "BELONGS_TO",
}

type GraphStore struct {
	run  QueryRunner
	exec *resilience.Executor
}

func NewGraphStore(run QueryRunner, exec *resilience.Executor) *GraphStore {
	return &GraphStore{run: run, exec: exec}
}

// Connect opens a driver and verifies connectivity. The returned close
// function releases the driver.
func Connect(ctx context.Context, uri, user, password, database string) (QueryRunner, func(context.Context) error, error) {
	d, err := driver.NewDriverWithContext(uri, driver.BasicAuth(user, password, ""))
	if err != nil {
		return nil, nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := d.VerifyConnectivity(ctx); err != nil {
		_ = d.Close(ctx)
		return nil, nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return DriverRunner(d, database), d.Close, nil
}

// DriverRunner adapts a driver to QueryRunner using read routing.
func DriverRunner(d driver.DriverWithContext, database string) QueryRunner {
	return func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
		opts := []driver.ExecuteQueryConfigurationOption{driver.ExecuteQueryWithReadersRouting()}
		if database != "" {
			opts = append(opts, driver.ExecuteQueryWithDatabase(database))
		}
		result, err := driver.ExecuteQuery(ctx, d, cypher, params, driver.EagerResultTransformer, opts...)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(result.Records))
		for _, record := range result.Records {
			rows = append(rows, record.AsMap())
		}
		return rows, nil
	}
}

func (g *GraphStore) query(ctx context.Context, operation, cypher string, params map[string]any) ([]map[string]any, error) {
	rows, err := resilience.Call(ctx, g.exec, "neo4j."+operation, func(ctx context.Context) ([]map[string]any, error) {
		return g.run(ctx, cypher, params)
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("neo4j %s: %w", operation, err)
	}
	return rows, nil
}

func (g *GraphStore) HopEdgesFrom(ctx context.Context, srcID string) ([]domain.Edge, error) {
	rows, err := g.query(ctx, "hop_edges", `
MATCH (s {id: $src})-[r:HOP_EDGE]->(d)
RETURN d.id AS dst_id, r.weight AS weight, r.hop_type AS hop_type
ORDER BY weight DESC, dst_id`, map[string]any{"src": srcID})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Edge, 0, len(rows))
	for _, row := range rows {
		dst, _ := row["dst_id"].(string)
		if dst == "" {
			continue
		}
		hopType, _ := row["hop_type"].(string)
		out = append(out, domain.Edge{
			SrcID:  srcID,
			DstID:  dst,
			Weight: toFloat(row["weight"]),
			Type:   domain.HopType(hopType),
		})
	}
	return out, nil
}

func (g *GraphStore) MapsToTargets(ctx context.Context, sectionID string) ([]string, error) {
	rows, err := g.query(ctx, "maps_to", `
MATCH (s:GuideSection {id: $src})-[r:MAPS_TO]->(d)
RETURN d.id AS dst_id
ORDER BY coalesce(r.ordinal, 0), dst_id`, map[string]any{"src": sectionID})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, _ := row["dst_id"].(string); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

func (g *GraphStore) EdgeExists(ctx context.Context, kind domain.EdgeKind, srcID, dstID string) (bool, error) {
	relType, ok := relationshipTypes[kind]
	if !ok {
		return false, domain.WrapError(domain.ErrInvalidInput, "edge exists", fmt.Errorf("unknown edge kind %q", kind))
	}
	rows, err := g.query(ctx, "edge_exists", `
MATCH (s {id: $src})-[:`+relType+`]->(d {id: $dst})
RETURN count(*) > 0 AS found`, map[string]any{"src": srcID, "dst": dstID})
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	found, _ := rows[0]["found"].(bool)
	return found, nil
}

// Neo4j returns integers as int64 and floats as float64.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
