package toolkit

import (
	"context"
	"encoding/json"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
)

// Services are the use cases behind the knowledge-base tools.
type Services struct {
	Search      ports.SearchService
	MultiTier   ports.MultiTierService
	Hop         ports.HopService
	Context     ports.ContextFormatter
	Verify      ports.Verifier
	Catalog     ports.CatalogService
	Diagnostics ports.DiagnosticsService
	Expander    ports.QueryExpander
}

// ExpandedQuery is the isa_expand_query result.
type ExpandedQuery struct {
	Query         string   `json:"query"`
	ExpandedQuery string   `json:"expanded_query"`
	Variants      []string `json:"variants"`
}

func searchModeParam() Param {
	return Param{
		Name:        "search_type",
		Type:        TypeString,
		Description: `Search mode: "hybrid", "keyword" or "vector".`,
		Default:     string(domain.SearchHybrid),
	}
}

func optInParams() []Param {
	return []Param{
		{Name: "expand", Type: TypeBoolean, Description: "Expand audit acronyms before searching.", Default: false},
		{Name: "rerank", Type: TypeBoolean, Description: "Rerank fused results when a reranker is configured.", Default: false},
	}
}

// NewKnowledgeBase registers every knowledge-base tool.
func NewKnowledgeBase(svc Services, observer Observer) *Registry {
	r := NewRegistry(observer)
	r.MustRegister(
		Tool{
			Name:        "isa_hybrid_search",
			Description: "Search ISA paragraphs with keyword and vector retrieval fused by reciprocal rank fusion. Falls back to keyword search when embeddings are unavailable.",
			Params: append([]Param{
				{Name: "query", Type: TypeString, Description: "Search query text.", Required: true},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum results.", Default: 20},
				{Name: "isa_filter", Type: TypeString, Description: `Optional ISA standard number, e.g. "315".`, Default: ""},
				searchModeParam(),
			}, optInParams()...),
			Handler: func(ctx context.Context, a Args) (any, error) {
				return svc.Search.SearchParagraphs(ctx, searchRequest(a, "isa_filter")), nil
			},
		},
		Tool{
			Name:        "isa_hop_retrieve",
			Description: "Retrieve ISA paragraphs connected to a seed paragraph by multi-hop traversal with per-hop score decay.",
			Params: []Param{
				{Name: "paragraph_id", Type: TypeString, Description: `Seed paragraph id or reference, e.g. "ip_a1b2c3d4" or "315.12".`, Required: true},
				{Name: "max_hops", Type: TypeInteger, Description: "Maximum traversal depth.", Default: domain.DefaultMaxHops},
				{Name: "decay", Type: TypeNumber, Description: "Score decay per hop.", Default: domain.DefaultHopDecay},
				{Name: "min_score", Type: TypeNumber, Description: "Paths scoring below this are pruned.", Default: domain.DefaultHopMinScore},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum connected paragraphs.", Default: domain.DefaultHopResults},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return svc.Hop.Retrieve(ctx, domain.HopRequest{
					SeedID:     a.String("paragraph_id"),
					MaxHops:    a.Int("max_hops"),
					Decay:      a.Float("decay"),
					MinScore:   a.Float("min_score"),
					MaxResults: a.Int("max_results"),
				}), nil
			},
		},
		Tool{
			Name:        "isa_list_standards",
			Description: "List the ISA standards in the knowledge base with paragraph counts.",
			Handler: func(ctx context.Context, _ Args) (any, error) {
				return svc.Catalog.ListStandards(ctx), nil
			},
		},
		Tool{
			Name:        "isa_get_paragraph",
			Description: `Get an ISA paragraph by id or reference ("ip_a1b2c3d4", "315.12(a).A2", "ISA 315.12", "315.A2") with its related records.`,
			Params: []Param{
				{Name: "identifier", Type: TypeString, Description: "Paragraph id or reference string.", Required: true},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return svc.Catalog.GetParagraph(ctx, a.String("identifier")), nil
			},
		},
		Tool{
			Name:        "isa_guide_search",
			Description: "Search guide sections with keyword and vector retrieval fused by reciprocal rank fusion.",
			Params: append([]Param{
				{Name: "query", Type: TypeString, Description: "Search query text.", Required: true},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum results.", Default: 10},
				{Name: "guide_filter", Type: TypeString, Description: `Optional source document, e.g. "ISA_LCE".`, Default: ""},
				searchModeParam(),
			}, optInParams()...),
			Handler: func(ctx context.Context, a Args) (any, error) {
				return svc.Search.SearchSections(ctx, searchRequest(a, "guide_filter")), nil
			},
		},
		Tool{
			Name:        "isa_guide_to_isa_hop",
			Description: "From a guide section follow maps_to edges to ISA paragraphs, then hop edges to further connected paragraphs.",
			Params: []Param{
				{Name: "guide_section_id", Type: TypeString, Description: `Guide section id, e.g. "gs_a1b2c3d4".`, Required: true},
				{Name: "max_hops", Type: TypeInteger, Description: "Additional hops beyond maps_to.", Default: domain.DefaultGuideMaxHops},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return svc.Hop.GuideHop(ctx, a.String("guide_section_id"), a.Int("max_hops")), nil
			},
		},
		Tool{
			Name:        "isa_list_guides",
			Description: "List guide documents with section counts and first headings.",
			Handler: func(ctx context.Context, _ Args) (any, error) {
				return svc.Catalog.ListGuides(ctx), nil
			},
		},
		Tool{
			Name:        "isa_multi_tier_search",
			Description: "Search guide sections (tier 1) and ISA paragraphs (tier 2) together with authority weighting 0.85 and 1.0.",
			Params: []Param{
				{Name: "query", Type: TypeString, Description: "Search query text.", Required: true},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum total results.", Default: 20},
				{Name: "tiers", Type: TypeArray, Items: TypeInteger, Description: "Tiers to search: 1 guides, 2 ISA standards."},
				searchModeParam(),
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				tiers := make([]domain.Tier, 0)
				for _, t := range a.Ints("tiers") {
					tiers = append(tiers, domain.Tier(t))
				}
				return svc.MultiTier.Search(ctx, domain.MultiTierRequest{
					Query: a.String("query"),
					Limit: a.Int("max_results"),
					Tiers: tiers,
					Mode:  domain.ParseSearchMode(a.String("search_type")),
				}), nil
			},
		},
		Tool{
			Name:        "isa_entity_verify",
			Description: "Check that entities named in a synthesis appear in the cited source paragraphs.",
			Params: []Param{
				{Name: "entities", Type: TypeArray, Items: TypeString, Description: "Entity strings to ground.", Required: true},
				{Name: "source_paragraph_ids", Type: TypeArray, Items: TypeString, Description: "Source paragraph ids.", Required: true},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return svc.Verify.Entities(ctx, a.Strings("entities"), a.Strings("source_paragraph_ids")), nil
			},
		},
		Tool{
			Name:        "isa_citation_verify",
			Description: "Verify cited paragraphs exist and their content supports the attributed claims.",
			Params: []Param{
				{Name: "citations", Type: TypeArray, Items: TypeObject, Description: "Objects with paragraph_id or paragraph_ref and claim.", Required: true},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				var citations []domain.Citation
				if err := a.Decode("citations", &citations); err != nil {
					return nil, invalid("isa_citation_verify", err)
				}
				return svc.Verify.Citations(ctx, citations), nil
			},
		},
		Tool{
			Name:        "isa_relation_verify",
			Description: "Check that relations claimed between paragraphs exist as cites or hop edges.",
			Params: []Param{
				{Name: "relations", Type: TypeArray, Items: TypeObject, Description: "Objects with source_paragraph, target_paragraph and relation_type.", Required: true},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				var relations []domain.Relation
				if err := a.Decode("relations", &relations); err != nil {
					return nil, invalid("isa_relation_verify", err)
				}
				return svc.Verify.Relations(ctx, relations), nil
			},
		},
		Tool{
			Name:        "isa_contradiction_check",
			Description: `Detect opposing requirements ("shall" vs "shall not") between cited paragraphs of the same standard.`,
			Params: []Param{
				{Name: "paragraph_ids", Type: TypeArray, Items: TypeString, Description: "Paragraph ids cited together.", Required: true},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return svc.Verify.Contradictions(ctx, a.Strings("paragraph_ids")), nil
			},
		},
		Tool{
			Name:        "isa_format_context",
			Description: "Format retrieved results into budgeted XML, grouped by primary, supporting and context roles.",
			Params: []Param{
				{Name: "paragraphs", Type: TypeArray, Items: TypeObject, Description: "Results from the search or hop tools.", Required: true},
				{Name: "query", Type: TypeString, Description: "The original query.", Required: true},
				{Name: "max_tokens", Type: TypeInteger, Description: "Token budget.", Default: domain.DefaultContextTokens},
				{Name: "roles", Type: TypeObject, Description: "Map of result id to primary, supporting or context."},
				{Name: "group_by_role", Type: TypeBoolean, Description: "Emit role wrappers with a 60/30/10 budget split.", Default: true},
			},
			Handler: func(_ context.Context, a Args) (any, error) {
				var raw []json.RawMessage
				if err := a.Decode("paragraphs", &raw); err != nil {
					return nil, invalid("isa_format_context", err)
				}
				results, err := decodeResults(raw)
				if err != nil {
					return nil, invalid("isa_format_context", err)
				}
				roles := map[string]string{}
				if err := a.Decode("roles", &roles); err != nil {
					return nil, invalid("isa_format_context", err)
				}
				return svc.Context.Assemble(domain.ContextRequest{
					Results:     results,
					Query:       a.String("query"),
					MaxTokens:   a.Int("max_tokens"),
					Roles:       decodeRoles(roles),
					GroupByRole: a.Bool("group_by_role"),
				}), nil
			},
		},
		Tool{
			Name:        "isa_expand_query",
			Description: "Expand audit acronyms (RMM, ToC, KAM) in a query and list query variants.",
			Params: []Param{
				{Name: "query", Type: TypeString, Description: "Query text.", Required: true},
			},
			Handler: func(_ context.Context, a Args) (any, error) {
				q := a.String("query")
				return ExpandedQuery{
					Query:         q,
					ExpandedQuery: svc.Expander.Expand(q),
					Variants:      svc.Expander.Variants(q),
				}, nil
			},
		},
		Tool{
			Name:        "isa_kb_status",
			Description: "Report store table counts, vector collection sizes and capability availability.",
			Handler: func(ctx context.Context, _ Args) (any, error) {
				return svc.Diagnostics.Status(ctx), nil
			},
		},
		Tool{
			Name:        "isa_debug_hop_trace",
			Description: "Trace every edge reached from a guide section or paragraph.",
			Params: []Param{
				{Name: "start_id", Type: TypeString, Description: "Start node id (gs_ or ip_ prefix).", Required: true},
				{Name: "max_hops", Type: TypeInteger, Description: "Maximum traversal depth.", Default: domain.DefaultMaxHops},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return svc.Diagnostics.DebugHopTrace(ctx, a.String("start_id"), a.Int("max_hops")), nil
			},
		},
		Tool{
			Name:        "isa_debug_search",
			Description: "Run hybrid search and return every stage: expansion, keyword, vector, fused and reranked results.",
			Params: []Param{
				{Name: "query", Type: TypeString, Description: "Query to debug.", Required: true},
				{Name: "max_results", Type: TypeInteger, Description: "Maximum results per stage.", Default: 10},
			},
			Handler: func(ctx context.Context, a Args) (any, error) {
				return svc.Diagnostics.DebugSearch(ctx, a.String("query"), a.Int("max_results")), nil
			},
		},
	)
	return r
}

func searchRequest(a Args, filterParam string) domain.SearchRequest {
	return domain.SearchRequest{
		Query:  a.String("query"),
		Limit:  a.Int("max_results"),
		Filter: a.String(filterParam),
		Mode:   domain.ParseSearchMode(a.String("search_type")),
		Expand: a.Bool("expand"),
		Rerank: a.Bool("rerank"),
	}
}

func invalid(op string, err error) error {
	return domain.WrapError(domain.ErrInvalidInput, op, err)
}
