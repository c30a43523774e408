package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

func contextItem(id, std, ref string, contentLen int) domain.RankedResult {
	p := domain.Paragraph{ID: id, StandardNumber: std, Ref: ref, Content: strings.Repeat("a", contentLen), PageNumber: 4}
	return domain.NewParagraphResult(p, 0.75, domain.PathKeyword)
}

func TestAssembleEmptyInput(t *testing.T) {
	out := NewContextAssembler().Assemble(domain.ContextRequest{Query: `risk & "controls"`, MaxTokens: 100})
	if out.IncludedCount != 0 || out.ExcludedCount != 0 || out.TotalTokensEstimated != 0 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if !strings.Contains(out.XML, "<no_results/>") {
		t.Fatalf("expected no_results element, got %s", out.XML)
	}
	if !strings.Contains(out.XML, `query="risk &amp; &quot;controls&quot;"`) {
		t.Fatalf("expected escaped query attribute, got %s", out.XML)
	}
}

func TestAssembleFlatAlwaysIncludesOne(t *testing.T) {
	results := []domain.RankedResult{
		contextItem("ip_1", "315", "315.1", 5000),
		contextItem("ip_2", "315", "315.2", 10),
	}
	out := NewContextAssembler().Assemble(domain.ContextRequest{Results: results, Query: "q", MaxTokens: 1})
	if out.IncludedCount != 1 || out.ExcludedCount != 1 {
		t.Fatalf("expected 1 included and 1 excluded, got %d/%d", out.IncludedCount, out.ExcludedCount)
	}
	if !strings.Contains(out.XML, `<out_of_scope_segments count="1"/>`) {
		t.Fatalf("expected out_of_scope footer, got %s", out.XML)
	}
	if strings.Contains(out.XML, `format="role_grouped"`) {
		t.Fatalf("flat output must not carry role_grouped format")
	}
	if out.TotalTokensEstimated != len(out.XML)/4 {
		t.Fatalf("expected token estimate len/4, got %d", out.TotalTokensEstimated)
	}
}

func TestAssembleGroupedIncludesOnePerRole(t *testing.T) {
	results := []domain.RankedResult{
		contextItem("ip_p1", "315", "315.1", 5000),
		contextItem("ip_p2", "315", "315.2", 5000),
		contextItem("ip_s1", "330", "330.1", 5000),
		contextItem("ip_c1", "500", "500.1", 5000),
	}
	roles := map[string]domain.Role{"ip_s1": domain.RoleSupporting, "ip_c1": domain.RoleContext}
	out := NewContextAssembler().Assemble(domain.ContextRequest{Results: results, Query: "q", MaxTokens: 100, Roles: roles, GroupByRole: true})

	if out.IncludedCount != 3 || out.ExcludedCount != 1 {
		t.Fatalf("expected 3 included and 1 excluded, got %d/%d", out.IncludedCount, out.ExcludedCount)
	}
	for _, role := range domain.Roles {
		if out.RoleCounts[role] != 1 {
			t.Fatalf("expected one item for %s, got %d", role, out.RoleCounts[role])
		}
	}
	for _, fragment := range []string{
		`format="role_grouped"`,
		`<primary_isa count="1" budget_pct="60">`,
		`<supporting_isa count="1" budget_pct="30">`,
		`<context_isa count="1" budget_pct="10">`,
		`<excluded_by_budget count="1"/>`,
	} {
		if !strings.Contains(out.XML, fragment) {
			t.Fatalf("expected %q in %s", fragment, out.XML)
		}
	}
}

func TestAssembleAppliesRoleCaps(t *testing.T) {
	results := make([]domain.RankedResult, 0, 8)
	roles := make(map[string]domain.Role)
	for i := 0; i < 8; i++ {
		id := "ip_ctx" + string(rune('a'+i))
		results = append(results, contextItem(id, "315", "315.1", 10))
		roles[id] = domain.RoleContext
	}
	out := NewContextAssembler().Assemble(domain.ContextRequest{Results: results, Query: "q", Roles: roles, GroupByRole: true})
	if out.IncludedCount+out.ExcludedCount != 5 {
		t.Fatalf("expected context cap of 5 candidates, got %d", out.IncludedCount+out.ExcludedCount)
	}
	if !strings.Contains(out.XML, `total_results="5"`) {
		t.Fatalf("expected post-cap total, got %s", out.XML)
	}
}

func TestAssembleRendersParagraphMetadata(t *testing.T) {
	p := domain.Paragraph{
		ID:             "ip_1",
		StandardNumber: "315",
		Ref:            "315.12(a).A2",
		SubParagraph:   "a",
		ApplicationRef: "A2",
		Content:        "See ISA 330.6 and isa 500, also ISA 315.4 and ISA 330.6 again.",
		PageNumber:     12,
	}
	results := []domain.RankedResult{domain.NewParagraphResult(p, 0.8123, domain.PathVector)}
	out := NewContextAssembler().Assemble(domain.ContextRequest{Results: results, Query: "q"})

	for _, fragment := range []string{
		`<result rank="1" source="ISA 315.12(a).A2" confidence="0.8123" retrieval_path="vector" role="primary" tier="2">`,
		`<source_text standard="ISA 315" paragraph="315.12(a).A2" page="12"/>`,
		`<cross_references>ISA 330.6, ISA 500</cross_references>`,
		`<sub_paragraph>a</sub_paragraph>`,
		`<application_ref>A2</application_ref>`,
	} {
		if !strings.Contains(out.XML, fragment) {
			t.Fatalf("expected %q in %s", fragment, out.XML)
		}
	}
}

func TestAssembleRendersSectionMetadata(t *testing.T) {
	s := domain.Section{ID: "gs_1", Heading: "Risk <assessment>", SourceDoc: "ISA_LCE", Content: "Guide text", References: []string{"ISA 315.12", "ISA 330"}}
	results := []domain.RankedResult{domain.NewSectionResult(s, 0.5, domain.PathKeyword)}
	out := NewContextAssembler().Assemble(domain.ContextRequest{Results: results, Query: "q"})

	for _, fragment := range []string{
		`source="Guide: Risk &lt;assessment&gt;"`,
		`tier="1"`,
		`<source_text guide="ISA_LCE" section="Risk &lt;assessment&gt;"/>`,
		`<isa_references>ISA 315.12, ISA 330</isa_references>`,
	} {
		if !strings.Contains(out.XML, fragment) {
			t.Fatalf("expected %q in %s", fragment, out.XML)
		}
	}
}

func TestCrossReferencesSkipsSelf(t *testing.T) {
	refs := crossReferences("ISA 315.3 refers to ISA 240 and ISA 240.", "315")
	if strings.Join(refs, "|") != "ISA 240" {
		t.Fatalf("unexpected refs: %v", refs)
	}
}
