package usecase

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
)

const (
	DefaultParagraphLimit = 20
	DefaultSectionLimit   = 10

	CorpusParagraphs = "paragraphs"
	CorpusSections   = "sections"
)

type SearchOptions struct {
	RRFK     int
	Expander ports.QueryExpander
	Rerank   *RerankStage
	Observer ports.SearchObserver
}

// SearchUseCase fuses keyword and vector retrieval over one corpus at a time.
type SearchUseCase struct {
	store    ports.KnowledgeStore
	vectors  ports.VectorIndex
	embedder ports.Embedder
	opts     SearchOptions
}

func NewSearchUseCase(
	store ports.KnowledgeStore,
	vectors ports.VectorIndex,
	embedder ports.Embedder,
	opts SearchOptions,
) *SearchUseCase {
	if opts.RRFK <= 0 {
		opts.RRFK = defaultRRFK
	}
	return &SearchUseCase{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		opts:     opts,
	}
}

type keywordFunc func(ctx context.Context, query string, limit int, filter string) ([]domain.RankedResult, error)

type vectorFunc func(ctx context.Context, vector []float32, limit int, filter string) ([]domain.RankedResult, error)

// corpus binds the two retrieval paths of one record kind.
type corpus struct {
	name    string
	keyword keywordFunc
	vector  vectorFunc
}

// pathOutcome is what one retrieval path produced. used is false when the
// vector capability could not run at all.
type pathOutcome struct {
	results []domain.RankedResult
	used    bool
	warning string
}

func (uc *SearchUseCase) SearchParagraphs(ctx context.Context, req domain.SearchRequest) domain.SearchResponse {
	if req.Limit <= 0 {
		req.Limit = DefaultParagraphLimit
	}
	return uc.search(ctx, uc.paragraphCorpus(), req)
}

func (uc *SearchUseCase) SearchSections(ctx context.Context, req domain.SearchRequest) domain.SearchResponse {
	if req.Limit <= 0 {
		req.Limit = DefaultSectionLimit
	}
	return uc.search(ctx, uc.sectionCorpus(), req)
}

// VectorReady reports whether the vector path can run.
func (uc *SearchUseCase) VectorReady() bool {
	return uc.vectors != nil && uc.embedder != nil && uc.embedder.Available()
}

func (uc *SearchUseCase) search(ctx context.Context, c corpus, req domain.SearchRequest) domain.SearchResponse {
	requested := req.Mode
	if requested == "" {
		requested = domain.SearchHybrid
	}
	resp := domain.SearchResponse{
		Query:    req.Query,
		Results:  []domain.RankedResult{},
		ModeUsed: requested,
		Warnings: []string{},
	}

	query := req.Query
	if req.Expand {
		if expanded := uc.expand(query); expanded != query {
			resp.ExpandedQuery = expanded
			query = expanded
		}
	}

	var results []domain.RankedResult
	switch requested {
	case domain.SearchKeyword:
		kw := uc.keywordPath(ctx, c, query, req.Limit, req.Filter)
		results = kw.results
		resp.Warnings = appendWarning(resp.Warnings, kw.warning)

	case domain.SearchVector:
		vec := uc.vectorPath(ctx, c, query, req.Limit, req.Filter)
		resp.Warnings = appendWarning(resp.Warnings, vec.warning)
		if vec.used {
			results = vec.results
			break
		}
		resp.Warnings = append(resp.Warnings, "Vector search unavailable. Falling back to keyword search.")
		resp.ModeUsed = domain.SearchKeyword
		kw := uc.keywordPath(ctx, c, query, req.Limit, req.Filter)
		results = kw.results
		resp.Warnings = appendWarning(resp.Warnings, kw.warning)

	default:
		kw, vec := uc.bothPaths(ctx, c, query, req.Limit, req.Filter)
		resp.Warnings = appendWarning(resp.Warnings, kw.warning)
		resp.Warnings = appendWarning(resp.Warnings, vec.warning)
		if !vec.used {
			resp.Warnings = append(resp.Warnings, "Vector search unavailable. Using keyword-only results.")
			resp.ModeUsed = domain.SearchKeyword
			results = kw.results
			break
		}
		resp.ModeUsed = domain.SearchHybrid
		results = trimResults(fuseCandidatesRRF(uc.opts.RRFK,
			rankedList{path: domain.PathKeyword, results: kw.results},
			rankedList{path: domain.PathVector, results: vec.results},
		), req.Limit)
	}

	if req.Rerank {
		var warning string
		results, warning = uc.opts.Rerank.Apply(ctx, req.Query, results, req.Limit)
		resp.Warnings = appendWarning(resp.Warnings, warning)
	}

	results = trimResults(results, req.Limit)
	if results != nil {
		resp.Results = results
	}
	resp.TotalResults = len(resp.Results)

	if uc.opts.Observer != nil {
		uc.opts.Observer.ObserveSearch(c.name, requested, resp.ModeUsed)
	}
	slog.Info("search_completed",
		"corpus", c.name,
		"mode", resp.ModeUsed,
		"query", domain.Preview(req.Query, 80),
		"results", resp.TotalResults,
	)
	return resp
}

func (uc *SearchUseCase) expand(query string) string {
	if uc.opts.Expander == nil {
		return query
	}
	return uc.opts.Expander.Expand(query)
}

// bothPaths runs the keyword and vector paths concurrently.
func (uc *SearchUseCase) bothPaths(ctx context.Context, c corpus, query string, limit int, filter string) (pathOutcome, pathOutcome) {
	var kw, vec pathOutcome
	var g errgroup.Group
	g.Go(func() error {
		kw = uc.keywordPath(ctx, c, query, limit, filter)
		return nil
	})
	g.Go(func() error {
		vec = uc.vectorPath(ctx, c, query, limit, filter)
		return nil
	})
	_ = g.Wait()
	return kw, vec
}

func (uc *SearchUseCase) keywordPath(ctx context.Context, c corpus, query string, limit int, filter string) pathOutcome {
	if uc.store == nil {
		return pathOutcome{results: []domain.RankedResult{}, warning: "Keyword search unavailable: no store configured."}
	}
	results, err := c.keyword(ctx, query, limit, filter)
	if err != nil {
		slog.Warn("keyword_search_failed", "corpus", c.name, "error", err)
		return pathOutcome{results: []domain.RankedResult{}, warning: "Keyword search failed: " + err.Error()}
	}
	return pathOutcome{results: results, used: true}
}

func (uc *SearchUseCase) vectorPath(ctx context.Context, c corpus, query string, limit int, filter string) pathOutcome {
	if !uc.VectorReady() {
		return pathOutcome{results: []domain.RankedResult{}}
	}
	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("query_embedding_failed", "corpus", c.name, "error", err)
		return pathOutcome{results: []domain.RankedResult{}, warning: "Query embedding failed: " + err.Error()}
	}
	results, err := c.vector(ctx, vector, limit, filter)
	if err != nil {
		slog.Warn("vector_search_failed", "corpus", c.name, "error", err)
		return pathOutcome{results: []domain.RankedResult{}, used: true, warning: "Vector search failed: " + err.Error()}
	}
	return pathOutcome{results: results, used: true}
}

func (uc *SearchUseCase) paragraphCorpus() corpus {
	return corpus{
		name: CorpusParagraphs,
		keyword: func(ctx context.Context, query string, limit int, filter string) ([]domain.RankedResult, error) {
			rows, err := uc.store.SearchParagraphs(ctx, query, limit, filter)
			if err != nil {
				return nil, err
			}
			out := make([]domain.RankedResult, 0, len(rows))
			for _, row := range rows {
				out = append(out, domain.NewParagraphResult(row.Paragraph, domain.Round(row.Confidence, 4), domain.PathKeyword))
			}
			return out, nil
		},
		vector: func(ctx context.Context, vector []float32, limit int, filter string) ([]domain.RankedResult, error) {
			matches, err := uc.vectors.SearchParagraphs(ctx, vector, limit, filter)
			if err != nil {
				return nil, err
			}
			out := make([]domain.RankedResult, 0, len(matches))
			for _, m := range matches {
				confidence := domain.Round(domain.VectorConfidence(m.Distance), 4)
				out = append(out, domain.NewParagraphResult(m.Record, confidence, domain.PathVector))
			}
			return out, nil
		},
	}
}

func (uc *SearchUseCase) sectionCorpus() corpus {
	return corpus{
		name: CorpusSections,
		keyword: func(ctx context.Context, query string, limit int, filter string) ([]domain.RankedResult, error) {
			rows, err := uc.store.SearchSections(ctx, query, limit, filter)
			if err != nil {
				return nil, err
			}
			out := make([]domain.RankedResult, 0, len(rows))
			for _, row := range rows {
				out = append(out, domain.NewSectionResult(row.Section, domain.Round(row.Confidence, 4), domain.PathKeyword))
			}
			return out, nil
		},
		vector: func(ctx context.Context, vector []float32, limit int, filter string) ([]domain.RankedResult, error) {
			matches, err := uc.vectors.SearchSections(ctx, vector, limit, filter)
			if err != nil {
				return nil, err
			}
			out := make([]domain.RankedResult, 0, len(matches))
			for _, m := range matches {
				confidence := domain.Round(domain.VectorConfidence(m.Distance), 4)
				out = append(out, domain.NewSectionResult(m.Record, confidence, domain.PathVector))
			}
			return out, nil
		},
	}
}

func appendWarning(warnings []string, warning string) []string {
	if strings.TrimSpace(warning) == "" {
		return warnings
	}
	return append(warnings, warning)
}
