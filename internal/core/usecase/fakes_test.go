package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
)

// storeFake is an in-memory KnowledgeStore. Keyword search returns the
// configured rows verbatim.
type storeFake struct {
	paragraphs map[string]domain.Paragraph
	sections   map[string]domain.Section
	related    map[string][]domain.RelatedRecord
	standards  []domain.Standard
	guides     []domain.Guide

	keywordParagraphs []*domain.ParagraphResult
	keywordSections   []*domain.SectionResult
	keywordErr        error
	lookupErr         error

	lastQuery  string
	lastFilter string
}

func newStoreFake(paragraphs ...domain.Paragraph) *storeFake {
	s := &storeFake{
		paragraphs: make(map[string]domain.Paragraph),
		sections:   make(map[string]domain.Section),
		related:    make(map[string][]domain.RelatedRecord),
	}
	for _, p := range paragraphs {
		s.paragraphs[p.ID] = p
	}
	return s
}

func (s *storeFake) addSection(sections ...domain.Section) *storeFake {
	for _, sec := range sections {
		s.sections[sec.ID] = sec
	}
	return s
}

func (s *storeFake) SearchParagraphs(_ context.Context, query string, limit int, standard string) ([]*domain.ParagraphResult, error) {
	s.lastQuery = query
	s.lastFilter = standard
	if s.keywordErr != nil {
		return nil, s.keywordErr
	}
	return trimResults(s.keywordParagraphs, limit), nil
}

func (s *storeFake) SearchSections(_ context.Context, query string, limit int, guide string) ([]*domain.SectionResult, error) {
	s.lastQuery = query
	s.lastFilter = guide
	if s.keywordErr != nil {
		return nil, s.keywordErr
	}
	return trimResults(s.keywordSections, limit), nil
}

func (s *storeFake) ParagraphByID(_ context.Context, id string) (*domain.Paragraph, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	p, ok := s.paragraphs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "paragraph by id", fmt.Errorf("%s", id))
	}
	return &p, nil
}

func (s *storeFake) ParagraphsByIDs(_ context.Context, ids []string) ([]domain.Paragraph, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	out := make([]domain.Paragraph, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.paragraphs[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *storeFake) ParagraphsByRef(_ context.Context, ref string) ([]domain.Paragraph, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.filter(func(p domain.Paragraph) bool { return p.Ref == ref }), nil
}

func (s *storeFake) ParagraphsByParts(_ context.Context, parts domain.ReferenceParts) ([]domain.Paragraph, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.filter(func(p domain.Paragraph) bool {
		if p.StandardNumber != parts.StandardNumber {
			return false
		}
		if parts.ParaNum != "" && p.ParaNum != parts.ParaNum {
			return false
		}
		if parts.SubParagraph != "" && p.SubParagraph != parts.SubParagraph {
			return false
		}
		if parts.ApplicationRef != "" && p.ApplicationRef != parts.ApplicationRef {
			return false
		}
		return true
	}), nil
}

func (s *storeFake) filter(keep func(domain.Paragraph) bool) []domain.Paragraph {
	out := make([]domain.Paragraph, 0)
	for _, p := range s.paragraphs {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}

func (s *storeFake) SectionByID(_ context.Context, id string) (*domain.Section, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	sec, ok := s.sections[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "section by id", fmt.Errorf("%s", id))
	}
	return &sec, nil
}

func (s *storeFake) SectionsByIDs(_ context.Context, ids []string) ([]domain.Section, error) {
	out := make([]domain.Section, 0, len(ids))
	for _, id := range ids {
		if sec, ok := s.sections[id]; ok {
			out = append(out, sec)
		}
	}
	return out, nil
}

func (s *storeFake) RelatedRecords(_ context.Context, id string) ([]domain.RelatedRecord, error) {
	return s.related[id], nil
}

func (s *storeFake) ListStandards(context.Context) ([]domain.Standard, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.standards, nil
}

func (s *storeFake) ListGuides(context.Context) ([]domain.Guide, error) {
	return s.guides, nil
}

// graphFake holds hop edges, maps_to targets and cites pairs.
type graphFake struct {
	hops   map[string][]domain.Edge
	mapsTo map[string][]string
	cites  map[string]bool
	err    error
	calls  int
}

func newGraphFake() *graphFake {
	return &graphFake{
		hops:   make(map[string][]domain.Edge),
		mapsTo: make(map[string][]string),
		cites:  make(map[string]bool),
	}
}

func (g *graphFake) hop(src, dst string, weight float64, hopType domain.HopType) *graphFake {
	g.hops[src] = append(g.hops[src], domain.Edge{SrcID: src, DstID: dst, Weight: weight, Type: hopType})
	return g
}

func (g *graphFake) HopEdgesFrom(_ context.Context, src string) ([]domain.Edge, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.hops[src], nil
}

func (g *graphFake) MapsToTargets(_ context.Context, sectionID string) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.mapsTo[sectionID], nil
}

func (g *graphFake) EdgeExists(_ context.Context, kind domain.EdgeKind, src, dst string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	switch kind {
	case domain.EdgeCites:
		return g.cites[src+"|"+dst], nil
	case domain.EdgeHop:
		for _, e := range g.hops[src] {
			if e.DstID == dst {
				return true, nil
			}
		}
	}
	return false, nil
}

type embedderFake struct {
	available bool
	err       error
	query     string
}

func (f *embedderFake) Available() bool { return f.available }

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.query = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type vectorFake struct {
	paragraphs []ports.VectorMatch[domain.Paragraph]
	sections   []ports.VectorMatch[domain.Section]
	err        error
}

func (f *vectorFake) SearchParagraphs(_ context.Context, _ []float32, limit int, _ string) ([]ports.VectorMatch[domain.Paragraph], error) {
	if f.err != nil {
		return nil, f.err
	}
	return trimResults(f.paragraphs, limit), nil
}

func (f *vectorFake) SearchSections(_ context.Context, _ []float32, limit int, _ string) ([]ports.VectorMatch[domain.Section], error) {
	if f.err != nil {
		return nil, f.err
	}
	return trimResults(f.sections, limit), nil
}

type rerankerFake struct {
	available bool
	scores    map[string]float64
	err       error
}

func (f *rerankerFake) Available() bool { return f.available }

func (f *rerankerFake) Rerank(context.Context, string, []domain.RerankDocument) (map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

var errStoreDown = errors.New("store down")

func paragraph(std, ref, content string) domain.Paragraph {
	parts, _ := domain.ParseParagraphRef(ref)
	return domain.Paragraph{
		ID:             domain.ParagraphID(std, ref),
		StandardNumber: std,
		ParaNum:        parts.ParaNum,
		SubParagraph:   parts.SubParagraph,
		ApplicationRef: parts.ApplicationRef,
		Ref:            ref,
		Content:        content,
		SourceDoc:      "ISA_" + std + ".pdf",
	}
}

func idsOf[T domain.RankedResult](results []T) string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ResultID())
	}
	return strings.Join(ids, ",")
}
