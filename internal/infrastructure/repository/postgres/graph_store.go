package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

// edgeTables maps edge kinds to their tables. Only known kinds are ever
// interpolated into SQL.
var edgeTables = map[domain.EdgeKind]string{
	domain.EdgeCites:     "cites",
	domain.EdgeHop:       "hop_edge",
	domain.EdgeMapsTo:    "maps_to",
	domain.EdgeBelongsTo: "belongs_to",
}

// GraphStore serves reference edges from the relational edge tables.
type GraphStore struct {
	db   *sql.DB
	exec *resilience.Executor
}

func NewGraphStore(db *sql.DB, exec *resilience.Executor) *GraphStore {
	return &GraphStore{db: db, exec: exec}
}

func (g *GraphStore) HopEdgesFrom(ctx context.Context, srcID string) ([]domain.Edge, error) {
	return resilience.Call(ctx, g.exec, "postgres.hop_edges", func(ctx context.Context) ([]domain.Edge, error) {
		rows, err := g.db.QueryContext(ctx, `
SELECT src_id, dst_id, weight, hop_type
FROM hop_edge
WHERE src_id = $1
ORDER BY weight DESC, dst_id
`, srcID)
		if err != nil {
			return nil, fmt.Errorf("hop edges: %w", err)
		}
		defer rows.Close()

		out := make([]domain.Edge, 0)
		for rows.Next() {
			var e domain.Edge
			var hopType string
			if err := rows.Scan(&e.SrcID, &e.DstID, &e.Weight, &hopType); err != nil {
				return nil, fmt.Errorf("scan hop edge: %w", err)
			}
			e.Type = domain.HopType(hopType)
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate hop edges: %w", err)
		}
		return out, nil
	}, nil)
}

func (g *GraphStore) MapsToTargets(ctx context.Context, sectionID string) ([]string, error) {
	return resilience.Call(ctx, g.exec, "postgres.maps_to", func(ctx context.Context) ([]string, error) {
		rows, err := g.db.QueryContext(ctx, `SELECT dst_id FROM maps_to WHERE src_id = $1 ORDER BY ordinal, dst_id`, sectionID)
		if err != nil {
			return nil, fmt.Errorf("maps_to targets: %w", err)
		}
		defer rows.Close()

		out := make([]string, 0)
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return nil, fmt.Errorf("scan maps_to target: %w", err)
			}
			out = append(out, id)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate maps_to targets: %w", err)
		}
		return out, nil
	}, nil)
}

func (g *GraphStore) EdgeExists(ctx context.Context, kind domain.EdgeKind, srcID, dstID string) (bool, error) {
	table, ok := edgeTables[kind]
	if !ok {
		return false, domain.WrapError(domain.ErrInvalidInput, "edge exists", fmt.Errorf("unknown edge kind %q", kind))
	}
	return resilience.Call(ctx, g.exec, "postgres.edge_exists", func(ctx context.Context) (bool, error) {
		var exists bool
		err := g.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE src_id = $1 AND dst_id = $2)`, srcID, dstID).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("edge exists %s: %w", kind, err)
		}
		return exists, nil
	}, nil)
}
