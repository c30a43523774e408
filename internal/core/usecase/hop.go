package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
)

const (
	defaultMaxExpansions = 50000
	guideHopConcurrency  = 4
)

// HopUseCase walks hop_edge relationships outward from a seed with
// multiplicative decay.
type HopUseCase struct {
	store         ports.KnowledgeStore
	graph         ports.GraphStore
	resolver      ports.ReferenceResolver
	maxExpansions int
}

func NewHopUseCase(store ports.KnowledgeStore, graph ports.GraphStore, resolver ports.ReferenceResolver) *HopUseCase {
	return &HopUseCase{
		store:         store,
		graph:         graph,
		resolver:      resolver,
		maxExpansions: defaultMaxExpansions,
	}
}

// WithMaxExpansions bounds the number of path extensions a single walk may make.
func (uc *HopUseCase) WithMaxExpansions(n int) *HopUseCase {
	if n > 0 {
		uc.maxExpansions = n
	}
	return uc
}

func (uc *HopUseCase) Retrieve(ctx context.Context, req domain.HopRequest) domain.HopResponse {
	req = req.Normalize()
	resp := domain.HopResponse{
		SeedID:      req.SeedID,
		Connected:   []*domain.HopNode{},
		MaxHopsUsed: req.MaxHops,
	}

	seed := uc.resolver.Resolve(ctx, req.SeedID)
	if !seed.Found {
		resp.Error = seed.Error
		resp.Hint = seed.Hint
		return resp
	}
	resp.SeedID = seed.ID()
	resp.Found = true

	nodes, warnings, err := uc.traverse(ctx, resp.SeedID, req)
	resp.Warnings = warnings
	if err != nil {
		slog.Error("hop_retrieve_failed", "seed_id", resp.SeedID, "error", err)
		resp.Error = err.Error()
		return resp
	}
	resp.Connected = nodes
	resp.TotalFound = len(nodes)

	slog.Info("hop_retrieve_completed", "seed_id", resp.SeedID, "max_hops", req.MaxHops, "found", resp.TotalFound)
	return resp
}

// hopPath is one self-avoiding walk from the seed. nodes includes the seed
// and the current node.
type hopPath struct {
	nodes   []string
	score   float64
	hopType domain.HopType
}

func (p hopPath) current() string { return p.nodes[len(p.nodes)-1] }

func (p hopPath) visits(id string) bool {
	for _, n := range p.nodes {
		if n == id {
			return true
		}
	}
	return false
}

// traverse expands paths level by level, keeping the best path per node.
func (uc *HopUseCase) traverse(ctx context.Context, seedID string, req domain.HopRequest) ([]*domain.HopNode, []string, error) {
	var warnings []string
	best := make(map[string]hopPath)
	edgeCache := make(map[string][]domain.Edge)
	expansions := 0

	frontier := []hopPath{{nodes: []string{seedID}, score: 1}}
walk:
	for depth := 1; depth <= req.MaxHops && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, warnings, err
		}
		next := make([]hopPath, 0)
		for _, path := range frontier {
			src := path.current()
			edges, ok := edgeCache[src]
			if !ok {
				var err error
				edges, err = uc.graph.HopEdgesFrom(ctx, src)
				if err != nil {
					return nil, warnings, fmt.Errorf("hop edges from %s: %w", src, err)
				}
				edgeCache[src] = edges
			}

			for _, edge := range edges {
				if path.visits(edge.DstID) {
					continue
				}
				score := edge.Weight
				if depth > 1 {
					score = path.score * req.Decay * edge.Weight
				}
				if score < req.MinScore {
					continue
				}
				expansions++
				if expansions > uc.maxExpansions {
					warnings = append(warnings, fmt.Sprintf("Traversal stopped after %d path expansions; results may be incomplete.", uc.maxExpansions))
					break walk
				}

				extended := hopPath{
					nodes:   append(append(make([]string, 0, len(path.nodes)+1), path.nodes...), edge.DstID),
					score:   score,
					hopType: edge.Type,
				}
				if prev, seen := best[edge.DstID]; !seen || betterPath(extended, prev) {
					best[edge.DstID] = extended
				}
				if depth < req.MaxHops {
					next = append(next, extended)
				}
			}
		}
		frontier = next
	}

	nodes, err := uc.hydrate(ctx, best)
	if err != nil {
		return nil, warnings, err
	}
	sortHopNodes(nodes)
	return trimResults(nodes, req.MaxResults), warnings, nil
}

func betterPath(candidate, current hopPath) bool {
	if candidate.score != current.score {
		return candidate.score > current.score
	}
	return len(candidate.nodes) < len(current.nodes)
}

// hydrate joins best paths with paragraph records, dropping ids that are
// not paragraphs.
func (uc *HopUseCase) hydrate(ctx context.Context, best map[string]hopPath) ([]*domain.HopNode, error) {
	if len(best) == 0 {
		return []*domain.HopNode{}, nil
	}
	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	paragraphs, err := uc.store.ParagraphsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load hop paragraphs: %w", err)
	}

	nodes := make([]*domain.HopNode, 0, len(paragraphs))
	for _, p := range paragraphs {
		path, ok := best[p.ID]
		if !ok {
			continue
		}
		score := domain.Round(path.score, 4)
		nodes = append(nodes, &domain.HopNode{
			ParagraphResult: *domain.NewParagraphResult(p, score, domain.PathHop),
			HopScore:        score,
			HopDepth:        len(path.nodes) - 1,
			HopPath:         path.nodes,
			HopType:         path.hopType,
		})
	}
	return nodes, nil
}

func sortHopNodes(nodes []*domain.HopNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.HopScore != b.HopScore {
			return a.HopScore > b.HopScore
		}
		if a.HopDepth != b.HopDepth {
			return a.HopDepth < b.HopDepth
		}
		return a.ID < b.ID
	})
}

// GuideHop bridges a guide section into the paragraph graph through its
// maps_to references, then walks outward from each reference.
func (uc *HopUseCase) GuideHop(ctx context.Context, sectionID string, maxHops int) domain.GuideHopResponse {
	if maxHops <= 0 {
		maxHops = domain.DefaultGuideMaxHops
	}
	resp := domain.GuideHopResponse{
		DirectReferences: []domain.Paragraph{},
		Connected:        []*domain.HopNode{},
		MaxHopsUsed:      maxHops,
	}

	res := uc.resolver.Resolve(ctx, sectionID)
	if !res.Found {
		resp.Error = res.Error
		resp.Hint = res.Hint
		return resp
	}
	if res.Section == nil {
		resp.Error = fmt.Sprintf("'%s' is not a guide section", sectionID)
		resp.Hint = "Guide section ids start with 'gs_'; use isa_guide_search to find one."
		return resp
	}
	section := res.Section
	resp.GuideSection = section
	resp.Found = true

	targets, err := uc.graph.MapsToTargets(ctx, section.ID)
	if err != nil {
		slog.Error("maps_to_lookup_failed", "section_id", section.ID, "error", err)
		resp.Error = err.Error()
		return resp
	}
	if len(targets) == 0 {
		return resp
	}

	direct, err := uc.store.ParagraphsByIDs(ctx, targets)
	if err != nil {
		slog.Error("direct_reference_lookup_failed", "section_id", section.ID, "error", err)
		resp.Error = err.Error()
		return resp
	}
	resp.DirectReferences = orderByIDs(direct, targets)

	req := domain.NewHopRequest("")
	req.MaxHops = maxHops
	perSeed := make([][]*domain.HopNode, len(resp.DirectReferences))
	seedWarnings := make([][]string, len(resp.DirectReferences))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(guideHopConcurrency)
	for i, ref := range resp.DirectReferences {
		g.Go(func() error {
			nodes, warnings, err := uc.traverse(gctx, ref.ID, req)
			if err != nil {
				slog.Warn("guide_hop_seed_failed", "section_id", section.ID, "seed_id", ref.ID, "error", err)
				warnings = append(warnings, fmt.Sprintf("Traversal from %s failed: %v", ref.ID, err))
			}
			perSeed[i] = nodes
			seedWarnings[i] = warnings
			return nil
		})
	}
	_ = g.Wait()

	directIDs := make(map[string]bool, len(resp.DirectReferences))
	for _, ref := range resp.DirectReferences {
		directIDs[ref.ID] = true
	}

	merged := make(map[string]*domain.HopNode)
	for i := range perSeed {
		resp.Warnings = append(resp.Warnings, seedWarnings[i]...)
		for _, node := range perSeed[i] {
			if directIDs[node.ID] || node.ID == section.ID {
				continue
			}
			prefixed := node.Clone().(*domain.HopNode)
			prefixed.HopPath = append([]string{section.ID}, prefixed.HopPath...)
			prefixed.HopDepth++
			if prev, ok := merged[node.ID]; !ok || prefixed.HopScore > prev.HopScore ||
				(prefixed.HopScore == prev.HopScore && prefixed.HopDepth < prev.HopDepth) {
				merged[node.ID] = prefixed
			}
		}
	}

	connected := make([]*domain.HopNode, 0, len(merged))
	for _, node := range merged {
		connected = append(connected, node)
	}
	sortHopNodes(connected)
	resp.Connected = trimResults(connected, req.MaxResults)
	resp.TotalFound = len(resp.Connected)

	slog.Info("guide_hop_completed", "section_id", section.ID, "direct", len(resp.DirectReferences), "connected", resp.TotalFound)
	return resp
}

// orderByIDs returns paragraphs in the order of ids, skipping unknown ids.
func orderByIDs(paragraphs []domain.Paragraph, ids []string) []domain.Paragraph {
	byID := make(map[string]domain.Paragraph, len(paragraphs))
	for _, p := range paragraphs {
		byID[p.ID] = p
	}
	out := make([]domain.Paragraph, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, p)
	}
	return out
}
