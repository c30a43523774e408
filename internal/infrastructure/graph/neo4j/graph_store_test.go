package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

type recordedQuery struct {
	cypher string
	params map[string]any
}

func runnerReturning(rows []map[string]any, err error, calls *[]recordedQuery) QueryRunner {
	return func(_ context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
		*calls = append(*calls, recordedQuery{cypher: cypher, params: params})
		return rows, err
	}
}

func TestHopEdgesFromConvertsRows(t *testing.T) {
	var calls []recordedQuery
	store := NewGraphStore(runnerReturning([]map[string]any{
		{"dst_id": "ip_2", "weight": 0.95, "hop_type": "sub_paragraph"},
		{"dst_id": "ip_3", "weight": int64(1), "hop_type": nil},
		{"dst_id": nil, "weight": 0.5},
	}, nil, &calls), nil)

	edges, err := store.HopEdgesFrom(context.Background(), "ip_1")
	if err != nil {
		t.Fatalf("HopEdgesFrom() error = %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected rows without a destination to be skipped, got %d", len(edges))
	}
	if edges[0].SrcID != "ip_1" || edges[0].Type != domain.HopSubParagraph || edges[1].Weight != 1 {
		t.Fatalf("unexpected edges: %+v", edges)
	}
	if calls[0].params["src"] != "ip_1" || !strings.Contains(calls[0].cypher, "HOP_EDGE") {
		t.Fatalf("unexpected query: %+v", calls[0])
	}
}

func TestMapsToTargets(t *testing.T) {
	var calls []recordedQuery
	store := NewGraphStore(runnerReturning([]map[string]any{{"dst_id": "ip_9"}, {"dst_id": "ip_1"}}, nil, &calls), nil)

	got, err := store.MapsToTargets(context.Background(), "gs_1")
	if err != nil || len(got) != 2 || got[0] != "ip_9" {
		t.Fatalf("unexpected targets: %v err=%v", got, err)
	}
}

func TestEdgeExistsUsesRelationshipType(t *testing.T) {
	var calls []recordedQuery
	store := NewGraphStore(runnerReturning([]map[string]any{{"found": true}}, nil, &calls), nil)

	ok, err := store.EdgeExists(context.Background(), domain.EdgeCites, "ip_1", "ip_2")
	if err != nil || !ok {
		t.Fatalf("expected edge, got %v err=%v", ok, err)
	}
	if !strings.Contains(calls[0].cypher, ":CITES]") {
		t.Fatalf("expected CITES relationship, got %s", calls[0].cypher)
	}

	if _, err := store.EdgeExists(context.Background(), domain.EdgeKind("x"), "a", "b"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestQueryErrorIsWrapped(t *testing.T) {
	var calls []recordedQuery
	store := NewGraphStore(runnerReturning(nil, errors.New("connection refused"), &calls), nil)
	_, err := store.HopEdgesFrom(context.Background(), "ip_1")
	if err == nil || !strings.Contains(err.Error(), "neo4j hop_edges") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
