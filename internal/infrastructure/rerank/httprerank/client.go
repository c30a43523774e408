// Package httprerank calls a cross-encoder served behind a /rerank endpoint
// that accepts {model, query, documents} and returns indexed relevance scores.
package httprerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, model string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		exec:       exec,
	}
}

func (c *Client) Available() bool {
	return c != nil && c.baseURL != ""
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (c *Client) Rerank(ctx context.Context, query string, docs []domain.RerankDocument) (map[string]float64, error) {
	out := make(map[string]float64, len(docs))
	if len(docs) == 0 {
		return out, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	parsed, err := resilience.Call(ctx, c.exec, "rerank.http", func(ctx context.Context) (rerankResponse, error) {
		var parsed rerankResponse
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
		if err != nil {
			return parsed, fmt.Errorf("create rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return parsed, fmt.Errorf("rerank request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			statusErr := fmt.Errorf("rerank status: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return parsed, domain.WrapError(domain.ErrTemporary, "rerank", statusErr)
			}
			return parsed, statusErr
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return parsed, fmt.Errorf("decode rerank response: %w", err)
		}
		return parsed, nil
	}, nil)
	if err != nil {
		return nil, err
	}

	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(docs) {
			return nil, fmt.Errorf("rerank result index %d out of range", r.Index)
		}
		out[docs[r.Index].ID] = r.RelevanceScore
	}
	return out, nil
}
