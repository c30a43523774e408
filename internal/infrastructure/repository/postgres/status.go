package postgres

import (
	"context"
	"database/sql"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

// statusTables are counted in this order by Status.
var statusTables = []string{"isa_standard", "isa_paragraph", "guide_section", "cites", "hop_edge", "maps_to", "belongs_to"}

// StatusReporter counts rows per table for diagnostics.
type StatusReporter struct {
	db *sql.DB
}

func NewStatusReporter(db *sql.DB) *StatusReporter {
	return &StatusReporter{db: db}
}

// Status never fails as a whole: per-table errors are reported inline.
func (r *StatusReporter) Status(ctx context.Context) domain.StoreStatus {
	out := domain.StoreStatus{Tables: make(map[string]domain.TableCount, len(statusTables))}
	if err := r.db.PingContext(ctx); err != nil {
		out.Error = err.Error()
		return out
	}
	out.Connected = true

	for _, table := range statusTables {
		var count int64
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			out.Tables[table] = domain.TableCount{Error: err.Error()}
			continue
		}
		out.Tables[table] = domain.TableCount{RowCount: count}
	}
	return out
}
