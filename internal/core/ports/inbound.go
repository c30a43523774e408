package ports

import (
	"context"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

// SearchService is the inbound contract for single-corpus fusion search.
type SearchService interface {
	SearchParagraphs(ctx context.Context, req domain.SearchRequest) domain.SearchResponse
	SearchSections(ctx context.Context, req domain.SearchRequest) domain.SearchResponse
}

// MultiTierService ranks guide sections and paragraphs together.
type MultiTierService interface {
	Search(ctx context.Context, req domain.MultiTierRequest) domain.MultiTierResponse
}

// HopService walks the reference graph.
type HopService interface {
	Retrieve(ctx context.Context, req domain.HopRequest) domain.HopResponse
	GuideHop(ctx context.Context, sectionID string, maxHops int) domain.GuideHopResponse
}

// ContextFormatter renders ranked results into a budgeted document.
type ContextFormatter interface {
	Assemble(req domain.ContextRequest) domain.AssembledContext
}

// Verifier runs the output verification checks.
type Verifier interface {
	Entities(ctx context.Context, entities, sourceIDs []string) domain.EntityCheck
	Citations(ctx context.Context, citations []domain.Citation) domain.CitationCheck
	Relations(ctx context.Context, relations []domain.Relation) domain.RelationCheck
	Contradictions(ctx context.Context, paragraphIDs []string) domain.ContradictionCheck
}

// CatalogService serves id/reference lookups and listings.
type CatalogService interface {
	GetParagraph(ctx context.Context, identifier string) domain.ParagraphLookup
	ListStandards(ctx context.Context) domain.StandardList
	ListGuides(ctx context.Context) domain.GuideList
}

// DiagnosticsService exposes introspection of store state and pipeline stages.
type DiagnosticsService interface {
	Status(ctx context.Context) domain.KBStatus
	DebugSearch(ctx context.Context, query string, limit int) domain.DebugSearch
	DebugHopTrace(ctx context.Context, startID string, maxHops int) domain.HopTrace
}

// QueryExpander rewrites queries with domain acronym expansions.
type QueryExpander interface {
	Expand(query string) string
	Variants(query string) []string
}

// ReferenceResolver maps ids and human references to stored records.
type ReferenceResolver interface {
	Resolve(ctx context.Context, identifier string) domain.Resolution
}
