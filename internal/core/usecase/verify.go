package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
)

const (
	maxFoundIn           = 5
	claimPreviewRunes    = 200
	excerptRunes         = 150
	maxContradictionPair = 100
	minClaimTermRunes    = 4
)

var (
	claimTermPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	entityISAPrefix  = regexp.MustCompile(`^isa\s*`)

	claimStopWords = map[string]bool{
		"the": true, "and": true, "for": true, "that": true, "this": true,
		"with": true, "from": true, "are": true, "was": true, "were": true,
		"been": true, "have": true, "has": true, "not": true, "but": true,
		"can": true, "should": true, "shall": true, "may": true, "must": true,
	}
)

type opposingPattern struct {
	positive *regexp.Regexp
	negative *regexp.Regexp
}

func (p opposingPattern) String() string {
	return p.positive.String() + " vs " + p.negative.String()
}

var contradictionPatterns = []opposingPattern{
	{regexp.MustCompile(`\bshall\b`), regexp.MustCompile(`\bshall not\b`)},
	{regexp.MustCompile(`\bmust\b`), regexp.MustCompile(`\bmust not\b`)},
	{regexp.MustCompile(`\brequired\b`), regexp.MustCompile(`\bnot required\b`)},
	{regexp.MustCompile(`\bprohibited\b`), regexp.MustCompile(`\bpermitted\b`)},
	{regexp.MustCompile(`\bmandatory\b`), regexp.MustCompile(`\boptional\b`)},
	{regexp.MustCompile(`\balways\b`), regexp.MustCompile(`\bnever\b`)},
}

// VerifyUseCase checks synthesized output against the knowledge base.
type VerifyUseCase struct {
	store    ports.KnowledgeStore
	graph    ports.GraphStore
	resolver ports.ReferenceResolver
}

func NewVerifyUseCase(store ports.KnowledgeStore, graph ports.GraphStore, resolver ports.ReferenceResolver) *VerifyUseCase {
	return &VerifyUseCase{store: store, graph: graph, resolver: resolver}
}

// sourceText is the lowercased content of one source record.
type sourceText struct {
	id   string
	text string
}

// Entities reports the share of entities that occur in the given sources.
func (uc *VerifyUseCase) Entities(ctx context.Context, entities, sourceIDs []string) domain.EntityCheck {
	out := domain.EntityCheck{Details: []domain.EntityDetail{}, TotalEntities: len(entities)}
	if len(entities) == 0 {
		out.Score = 1.0
		out.Passed = true
		return out
	}
	if len(sourceIDs) == 0 {
		for _, e := range entities {
			out.Details = append(out.Details, domain.EntityDetail{Entity: e, FoundIn: []string{}, Reason: "no source paragraphs"})
		}
		return out
	}

	sources, warnings := uc.loadSources(ctx, sourceIDs)
	out.Warnings = warnings
	texts := make([]string, 0, len(sources))
	for _, s := range sources {
		texts = append(texts, s.text)
	}
	combined := strings.Join(texts, " ")

	for _, entity := range entities {
		detail := domain.EntityDetail{Entity: entity, FoundIn: []string{}}
		needle := strings.ToLower(strings.TrimSpace(entity))
		if needle == "" {
			detail.Reason = "empty entity"
			out.Details = append(out.Details, detail)
			continue
		}
		for _, s := range sources {
			if strings.Contains(s.text, needle) {
				detail.FoundIn = append(detail.FoundIn, s.id)
			}
		}
		detail.Grounded = len(detail.FoundIn) > 0
		if !detail.Grounded {
			if stripped := entityISAPrefix.ReplaceAllString(needle, ""); stripped != "" && strings.Contains(combined, stripped) {
				detail.Grounded = true
				detail.FoundIn = []string{"fuzzy_match"}
			}
		}
		if detail.Grounded {
			out.GroundedCount++
		} else {
			detail.Reason = "not found in source paragraphs"
		}
		detail.FoundIn = trimResults(detail.FoundIn, maxFoundIn)
		out.Details = append(out.Details, detail)
	}

	out.Score = domain.Round(float64(out.GroundedCount)/float64(len(entities)), 4)
	out.Passed = out.Score >= domain.EntityThreshold
	return out
}

// loadSources fetches paragraph and section content in the order given.
func (uc *VerifyUseCase) loadSources(ctx context.Context, ids []string) ([]sourceText, []string) {
	var warnings []string
	var paragraphIDs, sectionIDs []string
	for _, id := range ids {
		if domain.IsSectionID(id) {
			sectionIDs = append(sectionIDs, id)
		} else {
			paragraphIDs = append(paragraphIDs, id)
		}
	}

	texts := make(map[string]string, len(ids))
	if len(paragraphIDs) > 0 {
		paragraphs, err := uc.store.ParagraphsByIDs(ctx, paragraphIDs)
		if err != nil {
			slog.Warn("verify_source_lookup_failed", "kind", "paragraph", "error", err)
			warnings = append(warnings, "Source paragraph lookup failed: "+err.Error())
		}
		for _, p := range paragraphs {
			texts[p.ID] = strings.ToLower(p.Content)
		}
	}
	if len(sectionIDs) > 0 {
		sections, err := uc.store.SectionsByIDs(ctx, sectionIDs)
		if err != nil {
			slog.Warn("verify_source_lookup_failed", "kind", "section", "error", err)
			warnings = append(warnings, "Source section lookup failed: "+err.Error())
		}
		for _, s := range sections {
			texts[s.ID] = strings.ToLower(s.Content)
		}
	}

	out := make([]sourceText, 0, len(texts))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		text, ok := texts[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, sourceText{id: id, text: text})
	}
	return out, warnings
}

// Citations checks that each cited record exists and shares enough terms
// with the claim attributed to it.
func (uc *VerifyUseCase) Citations(ctx context.Context, citations []domain.Citation) domain.CitationCheck {
	out := domain.CitationCheck{Details: []domain.CitationDetail{}, TotalCitations: len(citations)}
	if len(citations) == 0 {
		out.Score = 1.0
		out.Passed = true
		return out
	}

	for _, c := range citations {
		identifier := c.ParagraphID
		if strings.TrimSpace(identifier) == "" {
			identifier = c.ParagraphRef
		}
		claim := domain.Preview(c.Claim, claimPreviewRunes)

		res := uc.resolver.Resolve(ctx, identifier)
		if !res.Found {
			out.Details = append(out.Details, domain.CitationDetail{
				ParagraphID: identifier,
				Claim:       claim,
				Reason:      "paragraph not found in knowledge base",
			})
			continue
		}

		detail := domain.CitationDetail{ParagraphID: res.ID(), Claim: claim, Exists: true}
		content := ""
		if res.Paragraph != nil {
			detail.ParagraphRef = res.Paragraph.Ref
			content = res.Paragraph.Content
		} else if res.Section != nil {
			content = res.Section.Content
		}

		terms := claimTerms(c.Claim)
		if len(terms) == 0 {
			detail.SupportsClaim = true
			detail.TermOverlap = 1.0
			detail.Reason = "paragraph exists; claim too short for content analysis"
			out.VerifiedCount++
			out.Details = append(out.Details, detail)
			continue
		}

		lowered := strings.ToLower(content)
		for _, t := range terms {
			if strings.Contains(lowered, t) {
				detail.MatchingTerms++
			}
		}
		detail.TotalClaimTerms = len(terms)
		detail.TermOverlap = domain.Round(float64(detail.MatchingTerms)/float64(len(terms)), 4)
		// 30% overlap, compared in integers so the boundary is exact.
		detail.SupportsClaim = detail.MatchingTerms*10 >= len(terms)*3
		if detail.SupportsClaim {
			out.VerifiedCount++
		}
		out.Details = append(out.Details, detail)
	}

	out.Score = domain.Round(float64(out.VerifiedCount)/float64(len(citations)), 4)
	out.Passed = out.Score >= domain.CitationThreshold
	return out
}

// claimTerms returns lowercased words of at least four characters that are
// not stop words. Repeated words count once per occurrence.
func claimTerms(claim string) []string {
	words := claimTermPattern.FindAllString(strings.ToLower(claim), -1)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < minClaimTermRunes || claimStopWords[w] {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// Relations checks that claimed relationships are backed by graph edges or
// by both ends belonging to the same standard.
func (uc *VerifyUseCase) Relations(ctx context.Context, relations []domain.Relation) domain.RelationCheck {
	out := domain.RelationCheck{Details: []domain.RelationDetail{}, TotalRelations: len(relations)}
	if len(relations) == 0 {
		out.Score = 1.0
		out.Passed = true
		return out
	}

	for _, rel := range relations {
		detail := domain.RelationDetail{Source: rel.Source, Target: rel.Target, RelationType: rel.RelationType}
		src := uc.resolver.Resolve(ctx, rel.Source)
		if !src.Found {
			detail.Reason = "source paragraph not found"
			out.Details = append(out.Details, detail)
			continue
		}
		dst := uc.resolver.Resolve(ctx, rel.Target)
		if !dst.Found {
			detail.Reason = "target paragraph not found"
			out.Details = append(out.Details, detail)
			continue
		}
		detail.SourceID = src.ID()
		detail.TargetID = dst.ID()

		evidence, warnings := uc.relationEvidence(ctx, src, dst)
		out.Warnings = append(out.Warnings, warnings...)
		if evidence != "" {
			detail.Preserved = true
			detail.Evidence = evidence
			out.PreservedCount++
		} else {
			detail.Reason = "no edge or shared standard between the paragraphs"
		}
		out.Details = append(out.Details, detail)
	}

	out.Score = domain.Round(float64(out.PreservedCount)/float64(len(relations)), 4)
	out.Passed = out.Score >= domain.RelationThreshold
	return out
}

func (uc *VerifyUseCase) relationEvidence(ctx context.Context, src, dst domain.Resolution) (string, []string) {
	var warnings []string
	checks := []struct {
		evidence string
		kind     domain.EdgeKind
		from, to string
	}{
		{"cites", domain.EdgeCites, src.ID(), dst.ID()},
		{"hop_edge", domain.EdgeHop, src.ID(), dst.ID()},
		{"cites_reverse", domain.EdgeCites, dst.ID(), src.ID()},
		{"hop_edge_reverse", domain.EdgeHop, dst.ID(), src.ID()},
	}
	if uc.graph != nil {
		for _, check := range checks {
			ok, err := uc.graph.EdgeExists(ctx, check.kind, check.from, check.to)
			if err != nil {
				slog.Warn("edge_lookup_failed", "kind", check.kind, "src_id", check.from, "dst_id", check.to, "error", err)
				warnings = append(warnings, fmt.Sprintf("Edge lookup %s %s->%s failed: %v", check.kind, check.from, check.to, err))
				continue
			}
			if ok {
				return check.evidence, warnings
			}
		}
	}
	if src.Paragraph != nil && dst.Paragraph != nil && src.Paragraph.StandardNumber == dst.Paragraph.StandardNumber {
		return "same_standard", warnings
	}
	return "", warnings
}

// Contradictions flags same-standard paragraph pairs where one asserts a
// requirement and the other negates it.
func (uc *VerifyUseCase) Contradictions(ctx context.Context, paragraphIDs []string) domain.ContradictionCheck {
	out := domain.ContradictionCheck{Passed: true, Details: []domain.Contradiction{}}
	ids := uniqueStrings(paragraphIDs)
	if len(ids) < 2 {
		return out
	}

	rows, err := uc.store.ParagraphsByIDs(ctx, ids)
	if err != nil {
		slog.Warn("contradiction_lookup_failed", "error", err)
		out.Warnings = append(out.Warnings, "Paragraph lookup failed: "+err.Error())
		return out
	}
	paragraphs := orderByIDs(rows, ids)

	pairs := 0
outer:
	for i := 0; i < len(paragraphs); i++ {
		for j := i + 1; j < len(paragraphs); j++ {
			if pairs >= maxContradictionPair {
				break outer
			}
			pairs++
			p1, p2 := paragraphs[i], paragraphs[j]
			if p1.StandardNumber != p2.StandardNumber {
				continue
			}
			c1, c2 := strings.ToLower(p1.Content), strings.ToLower(p2.Content)
			for _, pattern := range contradictionPatterns {
				if !opposes(pattern, c1, c2) {
					continue
				}
				out.Details = append(out.Details, domain.Contradiction{
					First:    domain.ContradictionSide{ID: p1.ID, Ref: p1.Ref, Excerpt: domain.Preview(c1, excerptRunes)},
					Second:   domain.ContradictionSide{ID: p2.ID, Ref: p2.Ref, Excerpt: domain.Preview(c2, excerptRunes)},
					Pattern:  pattern.String(),
					Severity: "potential",
				})
			}
		}
	}

	out.TotalPairsChecked = pairs
	out.ContradictionCount = len(out.Details)
	out.Passed = out.ContradictionCount == 0
	return out
}

func opposes(p opposingPattern, a, b string) bool {
	aPos, aNeg := p.positive.MatchString(a), p.negative.MatchString(a)
	bPos, bNeg := p.positive.MatchString(b), p.negative.MatchString(b)
	return (aPos && bNeg) || (aNeg && bPos)
}

func uniqueStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
