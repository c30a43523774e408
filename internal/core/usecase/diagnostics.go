package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
)

const (
	DefaultDebugLimit  = 10
	tracePreviewRunes  = 200
	traceNodeParagraph = "ISAParagraph"
	traceNodeSection   = "GuideSection"
)

type DiagnosticsOptions struct {
	GraphBackend string
	StoreStatus  ports.StatusReporter
	VectorStatus ports.StatusReporter
}

// DiagnosticsUseCase exposes store health and every intermediate stage of
// search and traversal.
type DiagnosticsUseCase struct {
	store  ports.KnowledgeStore
	graph  ports.GraphStore
	search *SearchUseCase
	opts   DiagnosticsOptions
}

func NewDiagnosticsUseCase(
	store ports.KnowledgeStore,
	graph ports.GraphStore,
	search *SearchUseCase,
	opts DiagnosticsOptions,
) *DiagnosticsUseCase {
	return &DiagnosticsUseCase{store: store, graph: graph, search: search, opts: opts}
}

func (uc *DiagnosticsUseCase) Status(ctx context.Context) domain.KBStatus {
	return domain.KBStatus{
		Store:             reportStatus(ctx, uc.opts.StoreStatus),
		GraphBackend:      uc.opts.GraphBackend,
		Vectors:           reportStatus(ctx, uc.opts.VectorStatus),
		EmbedderAvailable: uc.search.VectorReady(),
		RerankerAvailable: uc.search.opts.Rerank.Available(),
	}
}

func reportStatus(ctx context.Context, reporter ports.StatusReporter) domain.StoreStatus {
	if reporter == nil {
		return domain.StoreStatus{Tables: map[string]domain.TableCount{}, Error: "not configured"}
	}
	return reporter.Status(ctx)
}

// DebugSearch runs the paragraph pipeline with expansion and reranking
// forced on, returning each stage separately.
func (uc *DiagnosticsUseCase) DebugSearch(ctx context.Context, query string, limit int) domain.DebugSearch {
	if limit <= 0 {
		limit = DefaultDebugLimit
	}
	out := domain.DebugSearch{
		Query:    query,
		Reranked: []domain.RankedResult{},
		Warnings: []string{},
	}

	out.ExpandedQuery = uc.search.expand(query)
	c := uc.search.paragraphCorpus()
	kw, vec := uc.search.bothPaths(ctx, c, out.ExpandedQuery, limit, "")
	out.Warnings = appendWarning(out.Warnings, kw.warning)
	out.Warnings = appendWarning(out.Warnings, vec.warning)
	if !vec.used {
		out.Warnings = append(out.Warnings, "Vector search unavailable; fusion uses keyword results only.")
	}
	out.KeywordResults = kw.results
	out.VectorResults = vec.results

	out.RRFFused = trimResults(fuseCandidatesRRF(uc.search.opts.RRFK,
		rankedList{path: domain.PathKeyword, results: kw.results},
		rankedList{path: domain.PathVector, results: vec.results},
	), limit)

	final := out.RRFFused
	if uc.search.opts.Rerank.Available() {
		reranked, warning := uc.search.opts.Rerank.Apply(ctx, query, out.RRFFused, limit)
		out.Warnings = appendWarning(out.Warnings, warning)
		if warning == "" {
			out.Reranked = reranked
		}
		final = reranked
	} else {
		out.Warnings = append(out.Warnings, "Reranker unavailable; final order is the fused order.")
	}
	out.Final = trimResults(final, limit)
	return out
}

// DebugHopTrace lists every edge reached from startID, visiting each node once.
// Guide sections are first bridged through maps_to.
func (uc *DiagnosticsUseCase) DebugHopTrace(ctx context.Context, startID string, maxHops int) domain.HopTrace {
	if maxHops <= 0 {
		maxHops = domain.DefaultMaxHops
	}
	out := domain.HopTrace{Hops: []domain.TraceHop{}}

	start, ok := uc.traceStart(ctx, startID)
	out.StartNode = start
	if !ok {
		return out
	}

	discovered := map[string]bool{startID: true}
	frontier := []string{startID}
	depth := 0

	if start.Type == traceNodeSection {
		targets, err := uc.graph.MapsToTargets(ctx, startID)
		if err != nil {
			out.Warnings = append(out.Warnings, "maps_to lookup failed: "+err.Error())
		}
		paragraphs, err := uc.paragraphIndex(ctx, targets)
		if err != nil {
			out.Warnings = append(out.Warnings, "Paragraph lookup failed: "+err.Error())
		}
		frontier = frontier[:0]
		for _, dst := range targets {
			p, ok := paragraphs[dst]
			if !ok || discovered[dst] {
				continue
			}
			discovered[dst] = true
			frontier = append(frontier, dst)
			out.Hops = append(out.Hops, domain.TraceHop{
				Depth:         1,
				EdgeType:      string(domain.EdgeMapsTo),
				FromID:        startID,
				ToID:          dst,
				TargetLabel:   p.Ref,
				TargetPreview: domain.Preview(p.Content, tracePreviewRunes),
			})
		}
		depth = 1
	}

	for i := 0; i < maxHops && len(frontier) > 0; i++ {
		depth++
		next := make([]string, 0)
		for _, src := range frontier {
			edges, err := uc.graph.HopEdgesFrom(ctx, src)
			if err != nil {
				slog.Warn("trace_hop_edges_failed", "src_id", src, "error", err)
				out.Warnings = append(out.Warnings, "hop_edge lookup from "+src+" failed: "+err.Error())
				continue
			}
			dsts := make([]string, 0, len(edges))
			for _, e := range edges {
				dsts = append(dsts, e.DstID)
			}
			paragraphs, err := uc.paragraphIndex(ctx, dsts)
			if err != nil {
				out.Warnings = append(out.Warnings, "Paragraph lookup failed: "+err.Error())
				continue
			}
			for _, e := range edges {
				p, ok := paragraphs[e.DstID]
				if !ok || discovered[e.DstID] {
					continue
				}
				discovered[e.DstID] = true
				next = append(next, e.DstID)
				out.Hops = append(out.Hops, domain.TraceHop{
					Depth:         depth,
					EdgeType:      string(domain.EdgeHop),
					FromID:        src,
					ToID:          e.DstID,
					Weight:        domain.Round(e.Weight, 4),
					HopType:       e.Type,
					TargetLabel:   p.Ref,
					TargetPreview: domain.Preview(p.Content, tracePreviewRunes),
				})
			}
		}
		frontier = next
	}

	out.TotalNodesDiscovered = len(discovered)
	for _, h := range out.Hops {
		if h.Depth > out.MaxDepthReached {
			out.MaxDepthReached = h.Depth
		}
	}
	return out
}

func (uc *DiagnosticsUseCase) traceStart(ctx context.Context, id string) (domain.TraceNode, bool) {
	if domain.IsSectionID(id) {
		node := domain.TraceNode{ID: id, Type: traceNodeSection}
		section, err := uc.store.SectionByID(ctx, id)
		if err != nil {
			node.Error = traceError(err)
			return node, false
		}
		node.Label = section.Heading
		node.ContentPreview = domain.Preview(section.Content, tracePreviewRunes)
		return node, true
	}

	node := domain.TraceNode{ID: id, Type: traceNodeParagraph}
	paragraph, err := uc.store.ParagraphByID(ctx, id)
	if err != nil {
		node.Error = traceError(err)
		return node, false
	}
	node.Label = paragraph.Ref
	node.ContentPreview = domain.Preview(paragraph.Content, tracePreviewRunes)
	return node, true
}

func (uc *DiagnosticsUseCase) paragraphIndex(ctx context.Context, ids []string) (map[string]domain.Paragraph, error) {
	out := make(map[string]domain.Paragraph, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	paragraphs, err := uc.store.ParagraphsByIDs(ctx, ids)
	if err != nil {
		return out, err
	}
	for _, p := range paragraphs {
		out[p.ID] = p
	}
	return out, nil
}

func traceError(err error) string {
	if domain.IsKind(err, domain.ErrNotFound) {
		return "not found"
	}
	return err.Error()
}
