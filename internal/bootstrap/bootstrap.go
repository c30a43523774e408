package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/isa-knowledge-base/internal/adapters/toolkit"
	"github.com/kirillkom/isa-knowledge-base/internal/config"
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
	"github.com/kirillkom/isa-knowledge-base/internal/core/usecase"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/glossary"
	neo4jgraph "github.com/kirillkom/isa-knowledge-base/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/rerank/httprerank"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/rerank/lexical"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/vector/qdrant"
)

// Observer receives search and tool call events, usually a metrics registry.
type Observer interface {
	ports.SearchObserver
	toolkit.Observer
}

type App struct {
	Config config.Config
	Tools  *toolkit.Registry

	closers []func(context.Context) error
}

func New(ctx context.Context, cfg config.Config, observer Observer) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close(ctx)
		}
	}()

	storeExec := resilience.NewExecutor(cfg.Resilience.WithTimeout(cfg.StoreTimeout))
	vectorExec := resilience.NewExecutor(cfg.Resilience.WithTimeout(cfg.VectorTimeout))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, func(context.Context) error { return db.Close() })
	if cfg.PostgresEnsureSchema {
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	store := postgres.NewKnowledgeStore(db, storeExec)

	graph, err := app.openGraph(ctx, cfg, db, storeExec)
	if err != nil {
		return nil, err
	}

	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantParagraphCollection, cfg.QdrantGuideCollection, vectorExec)
	embedModel := cfg.OllamaEmbedModel
	if !cfg.EmbeddingsEnabled {
		embedModel = ""
	}
	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, embedModel, vectorExec))

	overrides, err := glossary.Load(cfg.GlossaryPath)
	if err != nil {
		return nil, fmt.Errorf("load glossary: %w", err)
	}
	expander := usecase.NewQueryExpander(overrides)

	var searchObserver ports.SearchObserver
	var toolObserver toolkit.Observer
	if observer != nil {
		searchObserver, toolObserver = observer, observer
	}

	search := usecase.NewSearchUseCase(store, vectors, embedder, usecase.SearchOptions{
		RRFK:     cfg.RAGFusionRRFK,
		Expander: expander,
		Rerank:   usecase.NewRerankStage(newReranker(cfg, vectorExec), cfg.RAGRerankTopN),
		Observer: searchObserver,
	})
	catalog := usecase.NewCatalogUseCase(store)

	app.Tools = toolkit.NewKnowledgeBase(toolkit.Services{
		Search:    search,
		MultiTier: usecase.NewMultiTierUseCase(search),
		Hop:       usecase.NewHopUseCase(store, graph, catalog),
		Context:   usecase.NewContextAssembler(),
		Verify:    usecase.NewVerifyUseCase(store, graph, catalog),
		Catalog:   catalog,
		Diagnostics: usecase.NewDiagnosticsUseCase(store, graph, search, usecase.DiagnosticsOptions{
			GraphBackend: cfg.GraphBackend,
			StoreStatus:  postgres.NewStatusReporter(db),
			VectorStatus: vectors,
		}),
		Expander: expander,
	}, toolObserver)

	slog.Info("bootstrap_ready",
		"graph_backend", cfg.GraphBackend,
		"embedder_available", embedder.Available(),
		"rerank_provider", cfg.RerankProvider,
		"glossary_overrides", len(overrides),
	)
	ok = true
	return app, nil
}

func (a *App) openGraph(ctx context.Context, cfg config.Config, db *sql.DB, exec *resilience.Executor) (ports.GraphStore, error) {
	if cfg.GraphBackend != config.GraphBackendNeo4j {
		return postgres.NewGraphStore(db, exec), nil
	}
	run, closeDriver, err := neo4jgraph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		return nil, fmt.Errorf("open neo4j: %w", err)
	}
	a.closers = append(a.closers, closeDriver)
	return neo4jgraph.NewGraphStore(run, exec), nil
}

func newReranker(cfg config.Config, exec *resilience.Executor) ports.Reranker {
	switch cfg.RerankProvider {
	case config.RerankLexical:
		return lexical.New()
	case config.RerankHTTP:
		return httprerank.New(cfg.RerankURL, cfg.RerankModel, exec)
	default:
		return nil
	}
}

// Close releases handles in reverse order of opening.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			slog.Warn("close_failed", "error", err)
		}
	}
	a.closers = nil
}
