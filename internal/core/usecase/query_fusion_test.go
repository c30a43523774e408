package usecase

import (
	"testing"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

func keywordHit(id string, confidence float64) domain.RankedResult {
	return domain.NewParagraphResult(domain.Paragraph{ID: id, Content: "text " + id}, confidence, domain.PathKeyword)
}

func vectorHit(id string, confidence float64) domain.RankedResult {
	return domain.NewParagraphResult(domain.Paragraph{ID: id, Content: "text " + id}, confidence, domain.PathVector)
}

func TestFuseCandidatesRRFSharedItemRanksFirst(t *testing.T) {
	keyword := []domain.RankedResult{keywordHit("a", 3.2), keywordHit("b", 2.0)}
	vector := []domain.RankedResult{vectorHit("a", 0.8), vectorHit("c", 0.7)}

	fused := fuseCandidatesRRF(60,
		rankedList{path: domain.PathKeyword, results: keyword},
		rankedList{path: domain.PathVector, results: vector},
	)
	if got := idsOf(fused); got != "a,b,c" {
		t.Fatalf("unexpected fused order: %s", got)
	}
	top := fused[0].Rank()
	if top.RRFScore != domain.Round(2.0/61.0, 6) {
		t.Fatalf("expected rrf score %v, got %v", domain.Round(2.0/61.0, 6), top.RRFScore)
	}
	if top.RetrievalPath != "keyword+vector" {
		t.Fatalf("expected keyword+vector path, got %q", top.RetrievalPath)
	}
	if top.Confidence != 0.8 {
		t.Fatalf("expected confidence from vector list, got %v", top.Confidence)
	}
	if fused[1].Rank().RetrievalPath != "keyword" || fused[2].Rank().RetrievalPath != "vector" {
		t.Fatalf("unexpected single-list paths: %q %q", fused[1].Rank().RetrievalPath, fused[2].Rank().RetrievalPath)
	}
}

func TestFuseCandidatesRRFTieKeepsFirstAppearance(t *testing.T) {
	fused := fuseCandidatesRRF(60,
		rankedList{path: domain.PathKeyword, results: []domain.RankedResult{keywordHit("z", 1)}},
		rankedList{path: domain.PathVector, results: []domain.RankedResult{vectorHit("a", 1)}},
	)
	if got := idsOf(fused); got != "z,a" {
		t.Fatalf("expected first-appearance tie order z,a, got %s", got)
	}
}

func TestFuseCandidatesRRFDoesNotMutateInputs(t *testing.T) {
	keyword := []domain.RankedResult{keywordHit("a", 1.5)}
	_ = fuseCandidatesRRF(60, rankedList{path: domain.PathKeyword, results: keyword})
	if keyword[0].Rank().RRFScore != 0 {
		t.Fatalf("expected input to keep zero rrf score, got %v", keyword[0].Rank().RRFScore)
	}
}

func TestFuseCandidatesRRFDefaultsK(t *testing.T) {
	fused := fuseCandidatesRRF(0, rankedList{path: domain.PathKeyword, results: []domain.RankedResult{keywordHit("a", 1)}})
	if fused[0].Rank().RRFScore != domain.Round(1.0/61.0, 6) {
		t.Fatalf("expected default k=60, got score %v", fused[0].Rank().RRFScore)
	}
}
