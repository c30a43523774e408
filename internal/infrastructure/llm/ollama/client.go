package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	embedModel string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, embedModel string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
	}
}

// Embedder builds query vectors with the configured embedding model. A nil
// client or an empty model leaves it unavailable, which search treats as
// keyword-only operation.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Available() bool {
	return e != nil && e.client != nil && e.client.baseURL != "" && e.client.embedModel != ""
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	embeddings, err := resilience.Call(ctx, e.client.exec, "ollama.embed", func(ctx context.Context) ([][]float32, error) {
		var response struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := e.client.post(ctx, "/api/embed", request, &response); err != nil {
			return nil, err
		}
		return response.Embeddings, nil
	}, classifyEmbedError)
	if err != nil {
		return nil, embedError(err)
	}
	return embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if !e.Available() {
		return nil, domain.WrapError(domain.ErrUnavailable, "embed query", fmt.Errorf("embedding model not configured"))
	}
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding for model %s", e.client.embedModel)
	}
	return vectors[0], nil
}
