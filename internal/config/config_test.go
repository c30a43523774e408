package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"GRAPH_BACKEND", "RERANK_PROVIDER", "RAG_FUSION_RRF_K", "RAG_RERANK_TOP_N", "STORE_TIMEOUT", "NATS_SUBJECT_PREFIX", "RESILIENCE_RETRY_MAX_ATTEMPTS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.GraphBackend != GraphBackendPostgres {
		t.Fatalf("expected postgres graph backend, got %q", cfg.GraphBackend)
	}
	if cfg.RerankProvider != RerankNone {
		t.Fatalf("expected no reranker by default, got %q", cfg.RerankProvider)
	}
	if cfg.RAGFusionRRFK != 60 || cfg.RAGRerankTopN != 20 {
		t.Fatalf("unexpected retrieval defaults: k=%d topN=%d", cfg.RAGFusionRRFK, cfg.RAGRerankTopN)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("expected 5s store timeout, got %s", cfg.StoreTimeout)
	}
	if cfg.NATSSubjectPrefix != "isa.kb" {
		t.Fatalf("expected default subject prefix, got %q", cfg.NATSSubjectPrefix)
	}
	if cfg.Resilience.RetryMaxAttempts != 2 || !cfg.Resilience.BreakerEnabled {
		t.Fatalf("unexpected resilience defaults: %+v", cfg.Resilience)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("GRAPH_BACKEND", " Neo4j ")
	t.Setenv("RERANK_PROVIDER", "http")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("VECTOR_TIMEOUT", "3")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")
	t.Setenv("EMBEDDINGS_ENABLED", "0")

	cfg := Load()
	if cfg.GraphBackend != GraphBackendNeo4j {
		t.Fatalf("expected neo4j backend, got %q", cfg.GraphBackend)
	}
	if cfg.RerankProvider != RerankHTTP {
		t.Fatalf("expected http reranker, got %q", cfg.RerankProvider)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.StoreTimeout != 750*time.Millisecond || cfg.VectorTimeout != 3*time.Second {
		t.Fatalf("unexpected timeouts: %s %s", cfg.StoreTimeout, cfg.VectorTimeout)
	}
	if cfg.Resilience.BreakerEnabled || cfg.EmbeddingsEnabled {
		t.Fatalf("expected boolean overrides to apply")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("GRAPH_BACKEND", "sqlite")
	t.Setenv("RAG_FUSION_RRF_K", "-5")
	t.Setenv("STORE_TIMEOUT", "soon")
	t.Setenv("API_RATE_LIMIT_RPS", "fast")

	cfg := Load()
	if cfg.GraphBackend != GraphBackendPostgres {
		t.Fatalf("expected fallback backend, got %q", cfg.GraphBackend)
	}
	if cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected fallback rrf k, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.StoreTimeout)
	}
	if cfg.APIRateLimitRPS != 20 {
		t.Fatalf("expected fallback rps, got %v", cfg.APIRateLimitRPS)
	}
}
