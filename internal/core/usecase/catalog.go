package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
)

const relatedPreviewRunes = 200

// CatalogUseCase resolves identifiers and serves listings.
type CatalogUseCase struct {
	store ports.KnowledgeStore
}

func NewCatalogUseCase(store ports.KnowledgeStore) *CatalogUseCase {
	return &CatalogUseCase{store: store}
}

// Resolve accepts a direct id (ip_/gs_) or a reference such as
// "ISA 315.12(a).A2" and returns the first matching record.
func (uc *CatalogUseCase) Resolve(ctx context.Context, identifier string) domain.Resolution {
	identifier = strings.TrimSpace(identifier)
	res := domain.Resolution{Identifier: identifier}
	if identifier == "" {
		return notFound(res, "empty identifier")
	}

	if domain.IsSectionID(identifier) {
		section, err := uc.store.SectionByID(ctx, identifier)
		if err != nil {
			return lookupFailed(res, err)
		}
		res.Found = true
		res.Section = section
		return res
	}
	if domain.IsDirectID(identifier) {
		paragraph, err := uc.store.ParagraphByID(ctx, identifier)
		if err != nil {
			return lookupFailed(res, err)
		}
		res.Found = true
		res.Paragraph = paragraph
		return res
	}

	ref := domain.StripStandardPrefix(identifier)
	rows, err := uc.store.ParagraphsByRef(ctx, ref)
	if err != nil {
		return lookupFailed(res, err)
	}
	if len(rows) > 0 {
		return found(res, rows)
	}

	parts, ok := domain.ParseParagraphRef(ref)
	if !ok {
		parts, ok = domain.ParseApplicationRef(ref)
	}
	if !ok {
		return notFound(res, fmt.Sprintf("Paragraph '%s' not found", identifier))
	}

	paragraph, err := uc.store.ParagraphByID(ctx, domain.ParagraphID(parts.StandardNumber, parts.Canonical()))
	switch {
	case err == nil:
		res.Found = true
		res.Paragraph = paragraph
		return res
	case !domain.IsKind(err, domain.ErrNotFound):
		return lookupFailed(res, err)
	}

	rows, err = uc.store.ParagraphsByParts(ctx, parts)
	if err != nil {
		return lookupFailed(res, err)
	}
	if len(rows) > 0 {
		return found(res, rows)
	}

	slog.Info("reference_not_found", "identifier", identifier)
	return notFound(res, fmt.Sprintf("Paragraph '%s' not found", identifier))
}

func found(res domain.Resolution, rows []domain.Paragraph) domain.Resolution {
	first := rows[0]
	res.Found = true
	res.Paragraph = &first
	if len(rows) > 1 {
		res.AdditionalMatches = append([]domain.Paragraph(nil), rows[1:]...)
	}
	return res
}

func notFound(res domain.Resolution, message string) domain.Resolution {
	res.Found = false
	res.Error = message
	res.Hint = domain.ReferenceHint
	return res
}

func lookupFailed(res domain.Resolution, err error) domain.Resolution {
	if domain.IsKind(err, domain.ErrNotFound) {
		return notFound(res, fmt.Sprintf("Record '%s' not found", res.Identifier))
	}
	slog.Warn("reference_lookup_failed", "identifier", res.Identifier, "error", err)
	res.Found = false
	res.Error = err.Error()
	res.Hint = domain.ReferenceHint
	return res
}

// GetParagraph resolves identifier and attaches its direct neighbours.
func (uc *CatalogUseCase) GetParagraph(ctx context.Context, identifier string) domain.ParagraphLookup {
	out := domain.ParagraphLookup{
		Resolution: uc.Resolve(ctx, identifier),
		Related:    []domain.RelatedRecord{},
	}
	if !out.Found || out.Paragraph == nil {
		return out
	}

	related, err := uc.store.RelatedRecords(ctx, out.Paragraph.ID)
	if err != nil {
		slog.Warn("related_lookup_failed", "paragraph_id", out.Paragraph.ID, "error", err)
		out.Warnings = append(out.Warnings, "Related records unavailable: "+err.Error())
		return out
	}
	for i := range related {
		related[i].ContentPreview = domain.Preview(related[i].ContentPreview, relatedPreviewRunes)
	}
	out.Related = related
	return out
}

func (uc *CatalogUseCase) ListStandards(ctx context.Context) domain.StandardList {
	standards, err := uc.store.ListStandards(ctx)
	if err != nil {
		slog.Error("list_standards_failed", "error", err)
		return domain.StandardList{Standards: []domain.Standard{}, Error: err.Error()}
	}
	if standards == nil {
		standards = []domain.Standard{}
	}
	return domain.StandardList{Standards: standards, TotalStandards: len(standards)}
}

func (uc *CatalogUseCase) ListGuides(ctx context.Context) domain.GuideList {
	guides, err := uc.store.ListGuides(ctx)
	if err != nil {
		slog.Error("list_guides_failed", "error", err)
		return domain.GuideList{Guides: []domain.Guide{}, Error: err.Error()}
	}
	if guides == nil {
		guides = []domain.Guide{}
	}
	return domain.GuideList{Guides: guides, TotalGuides: len(guides)}
}
