package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the knowledge-base tables when they are missing.
// Ingestion owns the data; the service only reads it.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/mcp/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS isa_standard (
	id TEXT PRIMARY KEY,
	isa_number TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT '',
	effective_date TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS isa_paragraph (
	id TEXT PRIMARY KEY,
	isa_number TEXT NOT NULL,
	para_num TEXT NOT NULL DEFAULT '',
	sub_paragraph TEXT NOT NULL DEFAULT '',
	application_ref TEXT NOT NULL DEFAULT '',
	paragraph_ref TEXT NOT NULL,
	content TEXT NOT NULL,
	page_number INTEGER NOT NULL DEFAULT 0,
	source_doc TEXT NOT NULL DEFAULT '',
	tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
);

CREATE INDEX IF NOT EXISTS idx_isa_paragraph_tsv ON isa_paragraph USING GIN (tsv);
CREATE INDEX IF NOT EXISTS idx_isa_paragraph_ref ON isa_paragraph(paragraph_ref);
CREATE INDEX IF NOT EXISTS idx_isa_paragraph_parts ON isa_paragraph(isa_number, para_num, sub_paragraph, application_ref);

CREATE TABLE IF NOT EXISTS guide_section (
	id TEXT PRIMARY KEY,
	heading TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	source_doc TEXT NOT NULL,
	isa_references JSONB NOT NULL DEFAULT '[]'::jsonb,
	tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', heading || ' ' || content)) STORED
);

CREATE INDEX IF NOT EXISTS idx_guide_section_tsv ON guide_section USING GIN (tsv);
CREATE INDEX IF NOT EXISTS idx_guide_section_source ON guide_section(source_doc);

CREATE TABLE IF NOT EXISTS cites (
	src_id TEXT NOT NULL,
	dst_id TEXT NOT NULL,
	citation_text TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (src_id, dst_id)
);

CREATE TABLE IF NOT EXISTS hop_edge (
	src_id TEXT NOT NULL,
	dst_id TEXT NOT NULL,
	weight DOUBLE PRECISION NOT NULL,
	hop_type TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (src_id, dst_id)
);

CREATE TABLE IF NOT EXISTS maps_to (
	src_id TEXT NOT NULL,
	dst_id TEXT NOT NULL,
	ordinal INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (src_id, dst_id)
);

CREATE TABLE IF NOT EXISTS belongs_to (
	src_id TEXT NOT NULL,
	dst_id TEXT NOT NULL,
	PRIMARY KEY (src_id, dst_id)
);

CREATE INDEX IF NOT EXISTS idx_cites_dst ON cites(dst_id);
CREATE INDEX IF NOT EXISTS idx_hop_edge_dst ON hop_edge(dst_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
