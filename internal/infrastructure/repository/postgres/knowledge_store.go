package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

const (
	paragraphColumns = `id, isa_number, para_num, sub_paragraph, application_ref, paragraph_ref, content, page_number, source_doc`
	sectionColumns   = `id, heading, content, source_doc, isa_references`
)

var tsTermPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

type rowScanner interface {
	Scan(dest ...any) error
}

// KnowledgeStore reads standards, paragraphs and guide sections. Keyword
// search uses Postgres full text with ts_rank_cd as the relevance score.
type KnowledgeStore struct {
	db   *sql.DB
	exec *resilience.Executor
}

func NewKnowledgeStore(db *sql.DB, exec *resilience.Executor) *KnowledgeStore {
	return &KnowledgeStore{db: db, exec: exec}
}

// orTSQuery turns free text into a disjunctive tsquery so that any matching
// term contributes to the rank.
func orTSQuery(query string) string {
	terms := tsTermPattern.FindAllString(strings.ToLower(query), -1)
	return strings.Join(terms, " | ")
}

func (s *KnowledgeStore) SearchParagraphs(ctx context.Context, query string, limit int, standard string) ([]*domain.ParagraphResult, error) {
	tsquery := orTSQuery(query)
	if tsquery == "" || limit <= 0 {
		return []*domain.ParagraphResult{}, nil
	}
	standard = domain.StripStandardPrefix(strings.TrimSpace(standard))

	return resilience.Call(ctx, s.exec, "postgres.search_paragraphs", func(ctx context.Context) ([]*domain.ParagraphResult, error) {
		rows, err := s.db.QueryContext(ctx, `
SELECT `+paragraphColumns+`, ts_rank_cd(tsv, q) AS score
FROM isa_paragraph, to_tsquery('english', $1) AS q
WHERE tsv @@ q AND ($2 = '' OR isa_number = $2)
ORDER BY score DESC, id
LIMIT $3
`, tsquery, standard, limit)
		if err != nil {
			return nil, fmt.Errorf("search paragraphs: %w", err)
		}
		defer rows.Close()

		out := make([]*domain.ParagraphResult, 0, limit)
		for rows.Next() {
			var score float64
			p, err := scanParagraph(rows, &score)
			if err != nil {
				return nil, fmt.Errorf("scan paragraph hit: %w", err)
			}
			out = append(out, domain.NewParagraphResult(p, score, domain.PathKeyword))
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate paragraph hits: %w", err)
		}
		return out, nil
	}, nil)
}

func (s *KnowledgeStore) SearchSections(ctx context.Context, query string, limit int, guide string) ([]*domain.SectionResult, error) {
	tsquery := orTSQuery(query)
	if tsquery == "" || limit <= 0 {
		return []*domain.SectionResult{}, nil
	}

	return resilience.Call(ctx, s.exec, "postgres.search_sections", func(ctx context.Context) ([]*domain.SectionResult, error) {
		rows, err := s.db.QueryContext(ctx, `
SELECT `+sectionColumns+`, ts_rank_cd(tsv, q) AS score
FROM guide_section, to_tsquery('english', $1) AS q
WHERE tsv @@ q AND ($2 = '' OR source_doc = $2)
ORDER BY score DESC, id
LIMIT $3
`, tsquery, strings.TrimSpace(guide), limit)
		if err != nil {
			return nil, fmt.Errorf("search sections: %w", err)
		}
		defer rows.Close()

		out := make([]*domain.SectionResult, 0, limit)
		for rows.Next() {
			var score float64
			sec, err := scanSection(rows, &score)
			if err != nil {
				return nil, fmt.Errorf("scan section hit: %w", err)
			}
			out = append(out, domain.NewSectionResult(sec, score, domain.PathKeyword))
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate section hits: %w", err)
		}
		return out, nil
	}, nil)
}

func (s *KnowledgeStore) ParagraphByID(ctx context.Context, id string) (*domain.Paragraph, error) {
	return resilience.Call(ctx, s.exec, "postgres.paragraph_by_id", func(ctx context.Context) (*domain.Paragraph, error) {
		row := s.db.QueryRowContext(ctx, `SELECT `+paragraphColumns+` FROM isa_paragraph WHERE id = $1`, id)
		p, err := scanParagraph(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, domain.WrapError(domain.ErrNotFound, "get paragraph "+id, err)
			}
			return nil, fmt.Errorf("scan paragraph: %w", err)
		}
		return &p, nil
	}, nil)
}

func (s *KnowledgeStore) ParagraphsByIDs(ctx context.Context, ids []string) ([]domain.Paragraph, error) {
	if len(ids) == 0 {
		return []domain.Paragraph{}, nil
	}
	placeholders, args := inList(ids, 1)
	return s.queryParagraphs(ctx, "postgres.paragraphs_by_ids",
		`SELECT `+paragraphColumns+` FROM isa_paragraph WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
}

func (s *KnowledgeStore) ParagraphsByRef(ctx context.Context, ref string) ([]domain.Paragraph, error) {
	return s.queryParagraphs(ctx, "postgres.paragraphs_by_ref",
		`SELECT `+paragraphColumns+` FROM isa_paragraph WHERE paragraph_ref = $1 ORDER BY id`, ref)
}

// ParagraphsByParts matches the decomposed reference columns. Empty parts
// act as wildcards; requirement paragraphs sort before application material.
func (s *KnowledgeStore) ParagraphsByParts(ctx context.Context, parts domain.ReferenceParts) ([]domain.Paragraph, error) {
	return s.queryParagraphs(ctx, "postgres.paragraphs_by_parts", `
SELECT `+paragraphColumns+`
FROM isa_paragraph
WHERE isa_number = $1
	AND ($2 = '' OR para_num = $2)
	AND ($3 = '' OR sub_paragraph = $3)
	AND ($4 = '' OR application_ref = $4)
ORDER BY (application_ref = '') DESC, paragraph_ref, id
LIMIT 10
`, parts.StandardNumber, parts.ParaNum, parts.SubParagraph, parts.ApplicationRef)
}

func (s *KnowledgeStore) queryParagraphs(ctx context.Context, operation, query string, args ...any) ([]domain.Paragraph, error) {
	return resilience.Call(ctx, s.exec, operation, func(ctx context.Context) ([]domain.Paragraph, error) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", operation, err)
		}
		defer rows.Close()

		out := make([]domain.Paragraph, 0)
		for rows.Next() {
			p, err := scanParagraph(rows)
			if err != nil {
				return nil, fmt.Errorf("scan paragraph: %w", err)
			}
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate paragraphs: %w", err)
		}
		return out, nil
	}, nil)
}

func (s *KnowledgeStore) SectionByID(ctx context.Context, id string) (*domain.Section, error) {
	return resilience.Call(ctx, s.exec, "postgres.section_by_id", func(ctx context.Context) (*domain.Section, error) {
		row := s.db.QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM guide_section WHERE id = $1`, id)
		sec, err := scanSection(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, domain.WrapError(domain.ErrNotFound, "get section "+id, err)
			}
			return nil, fmt.Errorf("scan section: %w", err)
		}
		return &sec, nil
	}, nil)
}

func (s *KnowledgeStore) SectionsByIDs(ctx context.Context, ids []string) ([]domain.Section, error) {
	if len(ids) == 0 {
		return []domain.Section{}, nil
	}
	placeholders, args := inList(ids, 1)
	return resilience.Call(ctx, s.exec, "postgres.sections_by_ids", func(ctx context.Context) ([]domain.Section, error) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+sectionColumns+` FROM guide_section WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
		if err != nil {
			return nil, fmt.Errorf("sections by ids: %w", err)
		}
		defer rows.Close()

		out := make([]domain.Section, 0, len(ids))
		for rows.Next() {
			sec, err := scanSection(rows)
			if err != nil {
				return nil, fmt.Errorf("scan section: %w", err)
			}
			out = append(out, sec)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate sections: %w", err)
		}
		return out, nil
	}, nil)
}

// RelatedRecords lists outgoing citations, incoming citations and the
// parent standard of a paragraph.
func (s *KnowledgeStore) RelatedRecords(ctx context.Context, paragraphID string) ([]domain.RelatedRecord, error) {
	return resilience.Call(ctx, s.exec, "postgres.related_records", func(ctx context.Context) ([]domain.RelatedRecord, error) {
		rows, err := s.db.QueryContext(ctx, `
SELECT c.dst_id, 'cites', p.paragraph_ref, p.isa_number, '', c.citation_text, p.content
FROM cites c JOIN isa_paragraph p ON p.id = c.dst_id
WHERE c.src_id = $1
UNION ALL
SELECT c.src_id, 'cited_by', p.paragraph_ref, p.isa_number, '', c.citation_text, p.content
FROM cites c JOIN isa_paragraph p ON p.id = c.src_id
WHERE c.dst_id = $1
UNION ALL
SELECT b.dst_id, 'belongs_to', '', st.isa_number, st.title, '', ''
FROM belongs_to b JOIN isa_standard st ON st.id = b.dst_id
WHERE b.src_id = $1
`, paragraphID)
		if err != nil {
			return nil, fmt.Errorf("related records: %w", err)
		}
		defer rows.Close()

		out := make([]domain.RelatedRecord, 0)
		for rows.Next() {
			var r domain.RelatedRecord
			if err := rows.Scan(&r.ID, &r.Relation, &r.Ref, &r.StandardNumber, &r.Title, &r.CitationText, &r.ContentPreview); err != nil {
				return nil, fmt.Errorf("scan related record: %w", err)
			}
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate related records: %w", err)
		}
		return out, nil
	}, nil)
}

func (s *KnowledgeStore) ListStandards(ctx context.Context) ([]domain.Standard, error) {
	return resilience.Call(ctx, s.exec, "postgres.list_standards", func(ctx context.Context) ([]domain.Standard, error) {
		rows, err := s.db.QueryContext(ctx, `
SELECT st.id, st.isa_number, st.title, st.version, st.effective_date, COUNT(p.id)
FROM isa_standard st
LEFT JOIN isa_paragraph p ON p.isa_number = st.isa_number
GROUP BY st.id, st.isa_number, st.title, st.version, st.effective_date
ORDER BY st.isa_number
`)
		if err != nil {
			return nil, fmt.Errorf("list standards: %w", err)
		}
		defer rows.Close()

		out := make([]domain.Standard, 0)
		for rows.Next() {
			var st domain.Standard
			if err := rows.Scan(&st.ID, &st.Number, &st.Title, &st.Version, &st.EffectiveDate, &st.ParagraphCount); err != nil {
				return nil, fmt.Errorf("scan standard: %w", err)
			}
			out = append(out, st)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate standards: %w", err)
		}
		return out, nil
	}, nil)
}

func (s *KnowledgeStore) ListGuides(ctx context.Context) ([]domain.Guide, error) {
	return resilience.Call(ctx, s.exec, "postgres.list_guides", func(ctx context.Context) ([]domain.Guide, error) {
		rows, err := s.db.QueryContext(ctx, `
SELECT source_doc, COUNT(*), COALESCE(MIN(heading) FILTER (WHERE heading <> ''), '')
FROM guide_section
GROUP BY source_doc
ORDER BY source_doc
`)
		if err != nil {
			return nil, fmt.Errorf("list guides: %w", err)
		}
		defer rows.Close()

		out := make([]domain.Guide, 0)
		for rows.Next() {
			var g domain.Guide
			if err := rows.Scan(&g.SourceDoc, &g.SectionCount, &g.FirstHeading); err != nil {
				return nil, fmt.Errorf("scan guide: %w", err)
			}
			out = append(out, g)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate guides: %w", err)
		}
		return out, nil
	}, nil)
}

func scanParagraph(row rowScanner, extra ...any) (domain.Paragraph, error) {
	var p domain.Paragraph
	dest := append([]any{
		&p.ID, &p.StandardNumber, &p.ParaNum, &p.SubParagraph, &p.ApplicationRef,
		&p.Ref, &p.Content, &p.PageNumber, &p.SourceDoc,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Paragraph{}, err
	}
	return p, nil
}

func scanSection(row rowScanner, extra ...any) (domain.Section, error) {
	var sec domain.Section
	var refsRaw []byte
	dest := append([]any{&sec.ID, &sec.Heading, &sec.Content, &sec.SourceDoc, &refsRaw}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Section{}, err
	}
	if len(refsRaw) > 0 {
		if err := json.Unmarshal(refsRaw, &sec.References); err != nil {
			return domain.Section{}, fmt.Errorf("unmarshal isa_references: %w", err)
		}
	}
	if sec.References == nil {
		sec.References = []string{}
	}
	return sec, nil
}

// inList renders $n placeholders for values starting at position start.
func inList(values []string, start int) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "$" + strconv.Itoa(start+i)
		args[i] = v
	}
	return strings.Join(placeholders, ","), args
}
