package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

var paragraphRowColumns = []string{"id", "isa_number", "para_num", "sub_paragraph", "application_ref", "paragraph_ref", "content", "page_number", "source_doc"}

func newStoreWithMock(t *testing.T) (*KnowledgeStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewKnowledgeStore(db, nil), mock, func() { _ = db.Close() }
}

func TestSearchParagraphsBuildsDisjunctiveQuery(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows(append(paragraphRowColumns, "score")).
		AddRow("ip_1", "315", "12", "a", "", "315.12(a)", "Identify risks.", 7, "ISA_315.pdf", 0.42)
	mock.ExpectQuery("FROM isa_paragraph, to_tsquery").
		WithArgs("risk | assessment | s", "315", 5).
		WillReturnRows(rows)

	got, err := store.SearchParagraphs(context.Background(), "Risk, assessment's!", 5, "ISA 315")
	if err != nil {
		t.Fatalf("SearchParagraphs() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "ip_1" || got[0].Confidence != 0.42 || got[0].PageNumber != 7 {
		t.Fatalf("unexpected hits: %+v", got)
	}
	if got[0].RetrievalPath != domain.PathKeyword || got[0].Tier != domain.TierStandard {
		t.Fatalf("unexpected ranking: %+v", got[0].Ranking)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchParagraphsSkipsEmptyQuery(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	got, err := store.SearchParagraphs(context.Background(), " ?! ", 5, "")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result without query, got %v err=%v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchSectionsDecodesReferences(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "heading", "content", "source_doc", "isa_references", "score"}).
		AddRow("gs_1", "Risk", "Guide text", "ISA_LCE", []byte(`["ISA 315.12","ISA 330"]`), 0.3).
		AddRow("gs_2", "", "Other", "ISA_LCE", []byte(`null`), 0.1)
	mock.ExpectQuery("FROM guide_section, to_tsquery").
		WithArgs("risk", "ISA_LCE", 10).
		WillReturnRows(rows)

	got, err := store.SearchSections(context.Background(), "risk", 10, "ISA_LCE")
	if err != nil {
		t.Fatalf("SearchSections() error = %v", err)
	}
	if len(got) != 2 || len(got[0].References) != 2 || got[0].References[1] != "ISA 330" {
		t.Fatalf("unexpected sections: %+v", got)
	}
	if got[1].References == nil || got[0].Tier != domain.TierGuide {
		t.Fatalf("expected empty reference list and guide tier, got %+v", got[1])
	}
}

func TestParagraphByIDReturnsDomainNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("FROM isa_paragraph WHERE id").
		WithArgs("ip_missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.ParagraphByID(context.Background(), "ip_missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSectionByIDReturnsDomainNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("FROM guide_section WHERE id").
		WithArgs("gs_missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.SectionByID(context.Background(), "gs_missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParagraphsByIDsUsesPositionalList(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows(paragraphRowColumns).
		AddRow("ip_1", "315", "12", "", "", "315.12", "A", 1, "ISA_315.pdf").
		AddRow("ip_2", "330", "6", "", "", "330.6", "B", 2, "ISA_330.pdf")
	mock.ExpectQuery(`WHERE id IN \(\$1,\$2\)`).
		WithArgs("ip_1", "ip_2").
		WillReturnRows(rows)

	got, err := store.ParagraphsByIDs(context.Background(), []string{"ip_1", "ip_2"})
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d err=%v", len(got), err)
	}

	empty, err := store.ParagraphsByIDs(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no query for empty ids, got %v err=%v", empty, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestParagraphsByPartsPassesColumns(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("WHERE isa_number = ").
		WithArgs("315", "12", "a", "").
		WillReturnRows(sqlmock.NewRows(paragraphRowColumns))

	got, err := store.ParagraphsByParts(context.Background(), domain.ReferenceParts{StandardNumber: "315", ParaNum: "12", SubParagraph: "a"})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no rows, got %v err=%v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRelatedRecordsScansAllRelations(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "relation", "ref", "isa_number", "title", "citation_text", "content"}).
		AddRow("ip_2", "cites", "330.6", "330", "", "see ISA 330", "Content B").
		AddRow("ip_3", "cited_by", "500.4", "500", "", "", "Content C").
		AddRow("is_1", "belongs_to", "", "315", "Identifying risks", "", "")
	mock.ExpectQuery("UNION ALL").WithArgs("ip_1").WillReturnRows(rows)

	got, err := store.RelatedRecords(context.Background(), "ip_1")
	if err != nil || len(got) != 3 {
		t.Fatalf("expected 3 related records, got %d err=%v", len(got), err)
	}
	if got[2].Relation != "belongs_to" || got[2].Title != "Identifying risks" {
		t.Fatalf("unexpected parent standard: %+v", got[2])
	}
}

func TestListStandardsPropagatesQueryError(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("FROM isa_standard").WillReturnError(errors.New("relation does not exist"))
	if _, err := store.ListStandards(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestListGuidesScansCounts(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("FROM guide_section").
		WillReturnRows(sqlmock.NewRows([]string{"source_doc", "count", "first_heading"}).AddRow("ISA_LCE", 12, "Introduction"))

	got, err := store.ListGuides(context.Background())
	if err != nil || len(got) != 1 || got[0].SectionCount != 12 {
		t.Fatalf("unexpected guides: %+v err=%v", got, err)
	}
}

func TestOrTSQuery(t *testing.T) {
	if got := orTSQuery("ToC & (RMM)"); got != "toc | rmm" {
		t.Fatalf("unexpected tsquery: %q", got)
	}
}
