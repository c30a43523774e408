package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

func TestEmbedQuerySendsModelAndInput(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "nomic-embed-text", nil))
	vector, err := embedder.EmbedQuery(context.Background(), "risk of material misstatement")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(vector))
	}
	if payload["model"] != "nomic-embed-text" {
		t.Fatalf("unexpected model: %v", payload["model"])
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "embed", nil))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestEmbedDoesNotRetryClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, BreakerEnabled: false})
	_, err := NewEmbedder(New(server.URL, "missing", exec)).EmbedQuery(context.Background(), "q")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
	if !domain.IsKind(err, domain.ErrUnavailable) {
		t.Fatalf("expected missing model to be unavailable, got %v", err)
	}
}

func TestEmbedderAvailability(t *testing.T) {
	if NewEmbedder(New("http://ollama:11434", "", nil)).Available() {
		t.Fatalf("embedder without model must be unavailable")
	}
	var nilEmbedder *Embedder
	if nilEmbedder.Available() {
		t.Fatalf("nil embedder must be unavailable")
	}
	if !NewEmbedder(New("http://ollama:11434", "nomic-embed-text", nil)).Available() {
		t.Fatalf("configured embedder must be available")
	}
	if _, err := NewEmbedder(nil).EmbedQuery(context.Background(), "q"); !domain.IsKind(err, domain.ErrUnavailable) {
		t.Fatalf("expected unavailable from unconfigured embedder, got %v", err)
	}
}
