package usecase

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

const (
	charsPerToken      = 4
	perItemOverhead    = 200
	flatHeaderChars    = 200
	groupedHeaderChars = 300
)

var (
	roleCaps = map[domain.Role]int{
		domain.RolePrimary:    999,
		domain.RoleSupporting: 15,
		domain.RoleContext:    5,
	}
	roleBudgetPct = map[domain.Role]int{
		domain.RolePrimary:    60,
		domain.RoleSupporting: 30,
		domain.RoleContext:    10,
	}
	roleElements = map[domain.Role]string{
		domain.RolePrimary:    "primary_isa",
		domain.RoleSupporting: "supporting_isa",
		domain.RoleContext:    "context_isa",
	}

	crossReferencePattern = regexp.MustCompile(`(?i)ISA\s+(\d{3})(?:\.(\d+))?`)
	xmlEscaper            = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
)

// ContextAssembler renders ranked results into a budgeted XML document.
type ContextAssembler struct{}

func NewContextAssembler() *ContextAssembler {
	return &ContextAssembler{}
}

type placedResult struct {
	rank   int
	role   domain.Role
	result domain.RankedResult
}

func (a *ContextAssembler) Assemble(req domain.ContextRequest) domain.AssembledContext {
	if req.MaxTokens <= 0 {
		req.MaxTokens = domain.DefaultContextTokens
	}
	roleCounts := map[domain.Role]int{
		domain.RolePrimary:    0,
		domain.RoleSupporting: 0,
		domain.RoleContext:    0,
	}

	if len(req.Results) == 0 {
		xml := fmt.Sprintf("<search_results query=\"%s\" total_results=\"0\" included_results=\"0\" token_budget=\"%d\">\n  <no_results/>\n</search_results>",
			escapeXML(req.Query), req.MaxTokens)
		return domain.AssembledContext{XML: xml, RoleCounts: roleCounts}
	}

	grouped := groupByRole(req.Results, req.Roles)
	var out domain.AssembledContext
	if req.GroupByRole {
		out = assembleGrouped(grouped, req.Query, req.MaxTokens)
	} else {
		out = assembleFlat(grouped, req.Query, req.MaxTokens)
	}
	out.TotalTokensEstimated = utf8.RuneCountInString(out.XML) / charsPerToken

	slog.Info("context_assembled",
		"grouped", req.GroupByRole,
		"included", out.IncludedCount,
		"excluded", out.ExcludedCount,
		"tokens_estimated", out.TotalTokensEstimated,
		"budget", req.MaxTokens,
	)
	return out
}

// groupByRole buckets results by their assigned role and applies the role caps.
func groupByRole(results []domain.RankedResult, roles map[string]domain.Role) map[domain.Role][]domain.RankedResult {
	grouped := make(map[domain.Role][]domain.RankedResult, len(domain.Roles))
	for _, r := range results {
		role, ok := roles[r.ResultID()]
		if !ok {
			role = domain.RolePrimary
		}
		role = domain.ParseRole(string(role))
		grouped[role] = append(grouped[role], r)
	}
	for role, limit := range roleCaps {
		grouped[role] = trimResults(grouped[role], limit)
	}
	return grouped
}

func candidateCount(grouped map[domain.Role][]domain.RankedResult) int {
	total := 0
	for _, items := range grouped {
		total += len(items)
	}
	return total
}

func itemCost(r domain.RankedResult) int {
	return utf8.RuneCountInString(r.ResultContent()) + perItemOverhead
}

func assembleFlat(grouped map[domain.Role][]domain.RankedResult, query string, maxTokens int) domain.AssembledContext {
	available := maxTokens*charsPerToken - flatHeaderChars
	total := candidateCount(grouped)

	included := make([]placedResult, 0, total)
	used, excluded, rank := 0, 0, 0
	for _, role := range domain.Roles {
		for _, r := range grouped[role] {
			rank++
			cost := itemCost(r)
			if used+cost > available && len(included) > 0 {
				excluded++
				continue
			}
			included = append(included, placedResult{rank: rank, role: role, result: r})
			used += cost
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<search_results query=\"%s\" total_results=\"%d\" included_results=\"%d\" token_budget=\"%d\">\n",
		escapeXML(query), total, len(included), maxTokens)
	roleCounts := map[domain.Role]int{}
	for _, role := range domain.Roles {
		roleCounts[role] = 0
	}
	for _, item := range included {
		writeResultXML(&b, item, "  ")
		roleCounts[item.role]++
	}
	if excluded > 0 {
		fmt.Fprintf(&b, "  <out_of_scope_segments count=\"%d\"/>\n", excluded)
	}
	b.WriteString("</search_results>")

	return domain.AssembledContext{
		XML:           b.String(),
		IncludedCount: len(included),
		ExcludedCount: excluded,
		RoleCounts:    roleCounts,
	}
}

func assembleGrouped(grouped map[domain.Role][]domain.RankedResult, query string, maxTokens int) domain.AssembledContext {
	available := maxTokens*charsPerToken - groupedHeaderChars
	total := candidateCount(grouped)

	includedByRole := make(map[domain.Role][]placedResult, len(domain.Roles))
	excluded, rank := 0, 0
	for _, role := range domain.Roles {
		budget := available * roleBudgetPct[role] / 100
		used := 0
		for _, r := range grouped[role] {
			rank++
			cost := itemCost(r)
			if used+cost > budget && len(includedByRole[role]) > 0 {
				excluded++
				continue
			}
			includedByRole[role] = append(includedByRole[role], placedResult{rank: rank, role: role, result: r})
			used += cost
		}
	}

	includedTotal := 0
	roleCounts := make(map[domain.Role]int, len(domain.Roles))
	for _, role := range domain.Roles {
		roleCounts[role] = len(includedByRole[role])
		includedTotal += roleCounts[role]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<search_results query=\"%s\" total_results=\"%d\" included_results=\"%d\" token_budget=\"%d\" format=\"role_grouped\">\n",
		escapeXML(query), total, includedTotal, maxTokens)
	for _, role := range domain.Roles {
		element := roleElements[role]
		fmt.Fprintf(&b, "  <%s count=\"%d\" budget_pct=\"%d\">\n", element, roleCounts[role], roleBudgetPct[role])
		for _, item := range includedByRole[role] {
			writeResultXML(&b, item, "    ")
		}
		fmt.Fprintf(&b, "  </%s>\n", element)
	}
	if excluded > 0 {
		fmt.Fprintf(&b, "  <excluded_by_budget count=\"%d\"/>\n", excluded)
	}
	b.WriteString("</search_results>")

	return domain.AssembledContext{
		XML:           b.String(),
		IncludedCount: includedTotal,
		ExcludedCount: excluded,
		RoleCounts:    roleCounts,
	}
}

func writeResultXML(b *strings.Builder, item placedResult, indent string) {
	rank := item.result.Rank()
	path := rank.RetrievalPath
	if path == "" {
		path = "unknown"
	}
	confidence := strconv.FormatFloat(rank.Confidence, 'f', -1, 64)

	if section, ok := item.result.(*domain.SectionResult); ok {
		label := "Guide: " + section.SourceDoc
		if section.Heading != "" {
			label = "Guide: " + section.Heading
		}
		fmt.Fprintf(b, "%s<result rank=\"%d\" source=\"%s\" confidence=\"%s\" retrieval_path=\"%s\" role=\"%s\" tier=\"%d\">\n",
			indent, item.rank, escapeXML(label), confidence, escapeXML(path), item.role, domain.TierGuide)
		fmt.Fprintf(b, "%s  <content>%s</content>\n", indent, escapeXML(section.Content))
		fmt.Fprintf(b, "%s  <source_text guide=\"%s\" section=\"%s\"/>\n", indent, escapeXML(section.SourceDoc), escapeXML(section.Heading))
		if len(section.References) > 0 {
			fmt.Fprintf(b, "%s  <metadata>\n", indent)
			fmt.Fprintf(b, "%s    <isa_references>%s</isa_references>\n", indent, escapeXML(strings.Join(section.References, ", ")))
			fmt.Fprintf(b, "%s  </metadata>\n", indent)
		}
		fmt.Fprintf(b, "%s</result>\n", indent)
		return
	}

	p, _ := paragraphOf(item.result)
	label := "ISA " + p.StandardNumber
	if p.Ref != "" {
		label = "ISA " + p.Ref
	}
	fmt.Fprintf(b, "%s<result rank=\"%d\" source=\"%s\" confidence=\"%s\" retrieval_path=\"%s\" role=\"%s\" tier=\"%d\">\n",
		indent, item.rank, escapeXML(label), confidence, escapeXML(path), item.role, domain.TierStandard)
	fmt.Fprintf(b, "%s  <content>%s</content>\n", indent, escapeXML(p.Content))
	fmt.Fprintf(b, "%s  <source_text standard=\"ISA %s\" paragraph=\"%s\" page=\"%d\"/>\n",
		indent, escapeXML(p.StandardNumber), escapeXML(p.Ref), p.PageNumber)
	if refs := crossReferences(p.Content, p.StandardNumber); len(refs) > 0 {
		fmt.Fprintf(b, "%s  <metadata>\n", indent)
		fmt.Fprintf(b, "%s    <cross_references>%s</cross_references>\n", indent, escapeXML(strings.Join(refs, ", ")))
		if p.SubParagraph != "" {
			fmt.Fprintf(b, "%s    <sub_paragraph>%s</sub_paragraph>\n", indent, escapeXML(p.SubParagraph))
		}
		if p.ApplicationRef != "" {
			fmt.Fprintf(b, "%s    <application_ref>%s</application_ref>\n", indent, escapeXML(p.ApplicationRef))
		}
		fmt.Fprintf(b, "%s  </metadata>\n", indent)
	}
	fmt.Fprintf(b, "%s</result>\n", indent)
}

// crossReferences lists "ISA NNN[.P]" mentions of other standards in order of
// first appearance.
func crossReferences(content, standard string) []string {
	refs := make([]string, 0)
	seen := make(map[string]bool)
	for _, m := range crossReferencePattern.FindAllStringSubmatch(content, -1) {
		if m[1] == standard {
			continue
		}
		ref := "ISA " + m[1]
		if m[2] != "" {
			ref += "." + m[2]
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
