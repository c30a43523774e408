package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
)

const DefaultMultiTierLimit = 20

// MultiTierUseCase ranks guide sections and standard paragraphs together,
// discounting the supplementary tier by its authority weight.
type MultiTierUseCase struct {
	search ports.SearchService
}

func NewMultiTierUseCase(search ports.SearchService) *MultiTierUseCase {
	return &MultiTierUseCase{search: search}
}

func (uc *MultiTierUseCase) Search(ctx context.Context, req domain.MultiTierRequest) domain.MultiTierResponse {
	if req.Limit <= 0 {
		req.Limit = DefaultMultiTierLimit
	}
	if req.Mode == "" {
		req.Mode = domain.SearchHybrid
	}
	tiers, warnings := normalizeTiers(req.Tiers)

	responses := make([]domain.SearchResponse, len(tiers))
	var g errgroup.Group
	for i, tier := range tiers {
		sreq := domain.SearchRequest{Query: req.Query, Limit: req.Limit, Mode: req.Mode}
		g.Go(func() error {
			if tier == domain.TierGuide {
				responses[i] = uc.search.SearchSections(ctx, sreq)
			} else {
				responses[i] = uc.search.SearchParagraphs(ctx, sreq)
			}
			return nil
		})
	}
	_ = g.Wait()

	modeUsed := req.Mode
	merged := make([]domain.RankedResult, 0)
	for i, tier := range tiers {
		resp := responses[i]
		warnings = append(warnings, resp.Warnings...)
		if resp.ModeUsed != req.Mode {
			modeUsed = resp.ModeUsed
		}
		for _, r := range resp.Results {
			weighted := r.Clone()
			rank := weighted.Rank()
			rank.Tier = tier
			rank.WeightedScore = domain.Round(rank.Confidence*tier.Weight(), 4)
			merged = append(merged, weighted)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Rank().WeightedScore > merged[j].Rank().WeightedScore
	})
	merged = trimResults(merged, req.Limit)

	counts := make(map[domain.Tier]int, len(tiers))
	for _, tier := range tiers {
		counts[tier] = 0
	}
	for _, r := range merged {
		counts[r.Rank().Tier]++
	}

	if warning := authorityOverlapWarning(merged); warning != "" {
		warnings = append(warnings, warning)
	}

	return domain.MultiTierResponse{
		Query:        req.Query,
		Results:      merged,
		TotalResults: len(merged),
		ModeUsed:     modeUsed,
		TierCounts:   counts,
		Warnings:     warnings,
	}
}

func normalizeTiers(raw []domain.Tier) ([]domain.Tier, []string) {
	warnings := []string{}
	seen := make(map[domain.Tier]bool, 2)
	tiers := make([]domain.Tier, 0, 2)
	for _, tier := range raw {
		if tier != domain.TierGuide && tier != domain.TierStandard {
			warnings = append(warnings, fmt.Sprintf("Ignoring unknown tier %d.", tier))
			continue
		}
		if seen[tier] {
			continue
		}
		seen[tier] = true
		tiers = append(tiers, tier)
	}
	if len(tiers) == 0 {
		tiers = []domain.Tier{domain.TierGuide, domain.TierStandard}
	}
	return tiers, warnings
}

// authorityOverlapWarning names guide sections that reference a paragraph
// also present in the result set. Nothing is removed.
func authorityOverlapWarning(results []domain.RankedResult) string {
	refs := make(map[string]bool)
	for _, r := range results {
		if p, ok := paragraphOf(r); ok && p.Ref != "" {
			refs[p.Ref] = true
		}
	}
	if len(refs) == 0 {
		return ""
	}

	overlaps := make([]string, 0)
	for _, r := range results {
		s, ok := r.(*domain.SectionResult)
		if !ok {
			continue
		}
		for _, ref := range s.References {
			if refs[domain.StripStandardPrefix(ref)] {
				overlaps = append(overlaps, s.ID+"->"+domain.StripStandardPrefix(ref))
			}
		}
	}
	if len(overlaps) == 0 {
		return ""
	}
	return "Guide sections overlap with authoritative paragraphs (kept both): " + strings.Join(overlaps, ", ")
}

func paragraphOf(r domain.RankedResult) (domain.Paragraph, bool) {
	switch v := r.(type) {
	case *domain.ParagraphResult:
		return v.Paragraph, true
	case *domain.HopNode:
		return v.Paragraph, true
	default:
		return domain.Paragraph{}, false
	}
}
