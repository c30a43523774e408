package ports

import (
	"context"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

// KnowledgeStore is the read-only structured record store.
type KnowledgeStore interface {
	// SearchParagraphs runs the keyword relevance query; Confidence holds the raw score.
	SearchParagraphs(ctx context.Context, query string, limit int, standard string) ([]*domain.ParagraphResult, error)
	SearchSections(ctx context.Context, query string, limit int, guide string) ([]*domain.SectionResult, error)

	// ParagraphByID and SectionByID wrap domain.ErrNotFound for unknown ids.
	ParagraphByID(ctx context.Context, id string) (*domain.Paragraph, error)
	ParagraphsByIDs(ctx context.Context, ids []string) ([]domain.Paragraph, error)
	ParagraphsByRef(ctx context.Context, ref string) ([]domain.Paragraph, error)
	ParagraphsByParts(ctx context.Context, parts domain.ReferenceParts) ([]domain.Paragraph, error)

	SectionByID(ctx context.Context, id string) (*domain.Section, error)
	SectionsByIDs(ctx context.Context, ids []string) ([]domain.Section, error)

	RelatedRecords(ctx context.Context, paragraphID string) ([]domain.RelatedRecord, error)
	ListStandards(ctx context.Context) ([]domain.Standard, error)
	ListGuides(ctx context.Context) ([]domain.Guide, error)
}

// GraphStore reads the reference edges.
type GraphStore interface {
	HopEdgesFrom(ctx context.Context, srcID string) ([]domain.Edge, error)
	MapsToTargets(ctx context.Context, sectionID string) ([]string, error)
	EdgeExists(ctx context.Context, kind domain.EdgeKind, srcID, dstID string) (bool, error)
}

// StatusReporter exposes table or collection sizes for diagnostics.
type StatusReporter interface {
	Status(ctx context.Context) domain.StoreStatus
}

// VectorIndex performs similarity search over paragraph and guide collections.
type VectorIndex interface {
	SearchParagraphs(ctx context.Context, vector []float32, limit int, standard string) ([]VectorMatch[domain.Paragraph], error)
	SearchSections(ctx context.Context, vector []float32, limit int, guide string) ([]VectorMatch[domain.Section], error)
}

// VectorMatch is a record returned by the vector index with its distance.
type VectorMatch[T any] struct {
	Record   T
	Distance float64
}

// Embedder builds query vectors. Available reports whether it is configured.
type Embedder interface {
	Available() bool
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchObserver records which mode a search actually ran in.
type SearchObserver interface {
	ObserveSearch(corpus string, requested, used domain.SearchMode)
}

// Reranker scores documents against a query, keyed by document id.
type Reranker interface {
	Available() bool
	Rerank(ctx context.Context, query string, docs []domain.RerankDocument) (map[string]float64, error)
}
