package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
)

const defaultRerankTopK = 20

// RerankStage applies an optional second-pass scorer over fused results.
type RerankStage struct {
	reranker ports.Reranker
	topK     int
}

func NewRerankStage(reranker ports.Reranker, topK int) *RerankStage {
	if topK <= 0 {
		topK = defaultRerankTopK
	}
	return &RerankStage{reranker: reranker, topK: topK}
}

func (s *RerankStage) Available() bool {
	return s != nil && s.reranker != nil && s.reranker.Available()
}

// Apply reorders results by reranker score and truncates to topK (or the stage
// default when topK <= 0). Without a working reranker the input order is kept
// and a warning is returned.
func (s *RerankStage) Apply(ctx context.Context, query string, results []domain.RankedResult, topK int) ([]domain.RankedResult, string) {
	if topK <= 0 && s != nil {
		topK = s.topK
	}
	if topK <= 0 {
		topK = defaultRerankTopK
	}
	if len(results) == 0 {
		return results, ""
	}
	if !s.Available() {
		return trimResults(results, topK), "Reranker unavailable; keeping fused order."
	}

	docs := make([]domain.RerankDocument, 0, len(results))
	for _, r := range results {
		docs = append(docs, domain.RerankDocument{ID: r.ResultID(), Label: resultLabel(r), Text: r.ResultContent()})
	}
	scores, err := s.reranker.Rerank(ctx, query, docs)
	if err != nil {
		slog.Warn("rerank_failed", "results", len(results), "error", err)
		return trimResults(results, topK), "Reranking failed; keeping fused order."
	}

	out := cloneResults(results)
	for _, r := range out {
		if score, ok := scores[r.ResultID()]; ok {
			rounded := domain.Round(score, 6)
			r.Rank().RerankScore = &rounded
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return rerankScore(out[i]) > rerankScore(out[j])
	})
	return trimResults(out, topK), ""
}

// resultLabel is the human reference of a result: "ISA 315.12" or a guide heading.
func resultLabel(r domain.RankedResult) string {
	if section, ok := r.(*domain.SectionResult); ok {
		return section.Heading
	}
	if p, ok := paragraphOf(r); ok && p.Ref != "" {
		return "ISA " + p.Ref
	}
	return ""
}

func rerankScore(r domain.RankedResult) float64 {
	if score := r.Rank().RerankScore; score != nil {
		return *score
	}
	return 0
}
