package qdrant

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

func TestSearchParagraphsMapsPayloadAndFilter(t *testing.T) {
	var gotFilter any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/isa_paragraphs/points/search" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotFilter = body["filter"]
		_, _ = w.Write([]byte(`{"result":[{"score":0.75,"payload":{"id":"ip_1","isa_number":"315","paragraph_ref":"315.12","content":"Risks.","page_number":9}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "isa_paragraphs", "guide_sections", nil)
	got, err := client.SearchParagraphs(context.Background(), []float32{0.1}, 5, "ISA 315")
	if err != nil {
		t.Fatalf("SearchParagraphs() error = %v", err)
	}
	if len(got) != 1 || got[0].Record.ID != "ip_1" || got[0].Record.PageNumber != 9 {
		t.Fatalf("unexpected matches: %+v", got)
	}
	if got[0].Distance != 0.25 {
		t.Fatalf("expected cosine distance 0.25, got %v", got[0].Distance)
	}
	raw, _ := json.Marshal(gotFilter)
	if !strings.Contains(string(raw), `"key":"isa_number"`) || !strings.Contains(string(raw), `"value":"315"`) {
		t.Fatalf("expected isa_number filter, got %s", raw)
	}
}

func TestSearchSectionsReadsReferences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"score":1,"payload":{"id":"gs_1","heading":"Risk","source_doc":"ISA_LCE","isa_references":["ISA 315",3]}}]}`))
	}))
	defer server.Close()

	got, err := New(server.URL, "p", "g", nil).SearchSections(context.Background(), []float32{0.1}, 5, "")
	if err != nil {
		t.Fatalf("SearchSections() error = %v", err)
	}
	if len(got[0].Record.References) != 1 || got[0].Distance != 0 {
		t.Fatalf("unexpected section match: %+v", got[0])
	}
}

func TestSearchRetriesTemporaryStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 2, BreakerEnabled: false})
	if _, err := New(server.URL, "p", "g", exec).SearchParagraphs(context.Background(), []float32{0.1}, 5, ""); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestSearchIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "wrong vector size", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := New(server.URL, "p", "g", nil).SearchParagraphs(context.Background(), []float32{0.1}, 5, "")
	if err == nil || !strings.Contains(err.Error(), "wrong vector size") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("400 must not be temporary")
	}
}

func TestStatusReportsPointCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/p":
			_, _ = w.Write([]byte(`{"result":{"points_count":1200}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	status := New(server.URL, "p", "g", nil).Status(context.Background())
	if !status.Connected || status.Tables["p"].RowCount != 1200 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Tables["g"].Error == "" {
		t.Fatalf("expected missing collection error")
	}
}
