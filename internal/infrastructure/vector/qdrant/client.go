package qdrant

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
	"github.com/kirillkom/isa-knowledge-base/internal/core/ports"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

// Client searches the paragraph and guide-section collections. Collections
// use cosine similarity; results report distance as 1 - score.
type Client struct {
	baseURL    string
	paragraphs string
	guides     string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, paragraphCollection, guideCollection string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		paragraphs: paragraphCollection,
		guides:     guideCollection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
	}
}

type searchHit struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) SearchParagraphs(ctx context.Context, vector []float32, limit int, standard string) ([]ports.VectorMatch[domain.Paragraph], error) {
	hits, err := c.search(ctx, c.paragraphs, vector, limit, "isa_number", domain.StripStandardPrefix(strings.TrimSpace(standard)))
	if err != nil {
		return nil, err
	}
	out := make([]ports.VectorMatch[domain.Paragraph], 0, len(hits))
	for _, h := range hits {
		out = append(out, ports.VectorMatch[domain.Paragraph]{
			Record: domain.Paragraph{
				ID:             getStringPayload(h.Payload, "id"),
				StandardNumber: getStringPayload(h.Payload, "isa_number"),
				ParaNum:        getStringPayload(h.Payload, "para_num"),
				SubParagraph:   getStringPayload(h.Payload, "sub_paragraph"),
				ApplicationRef: getStringPayload(h.Payload, "application_ref"),
				Ref:            getStringPayload(h.Payload, "paragraph_ref"),
				Content:        getStringPayload(h.Payload, "content"),
				PageNumber:     getIntPayload(h.Payload, "page_number"),
				SourceDoc:      getStringPayload(h.Payload, "source_doc"),
			},
			Distance: distance(h.Score),
		})
	}
	return out, nil
}

func (c *Client) SearchSections(ctx context.Context, vector []float32, limit int, guide string) ([]ports.VectorMatch[domain.Section], error) {
	hits, err := c.search(ctx, c.guides, vector, limit, "source_doc", strings.TrimSpace(guide))
	if err != nil {
		return nil, err
	}
	out := make([]ports.VectorMatch[domain.Section], 0, len(hits))
	for _, h := range hits {
		out = append(out, ports.VectorMatch[domain.Section]{
			Record: domain.Section{
				ID:         getStringPayload(h.Payload, "id"),
				Heading:    getStringPayload(h.Payload, "heading"),
				Content:    getStringPayload(h.Payload, "content"),
				SourceDoc:  getStringPayload(h.Payload, "source_doc"),
				References: getStringsPayload(h.Payload, "isa_references"),
			},
			Distance: distance(h.Score),
		})
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, collection string, vector []float32, limit int, filterKey, filterValue string) ([]searchHit, error) {
	if limit <= 0 {
		return []searchHit{}, nil
	}
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if filterValue != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": filterKey,
					"match": map[string]any{
						"value": filterValue,
					},
				},
			},
		}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	return resilience.Call(ctx, c.exec, "qdrant.search."+collection, func(ctx context.Context) ([]searchHit, error) {
		url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("qdrant search request: %w", err)
		}
		defer resp.Body.Close()

		if err := statusError("search", resp); err != nil {
			return nil, err
		}

		var searchResp struct {
			Result []searchHit `json:"result"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
			return nil, fmt.Errorf("decode search response: %w", err)
		}
		return searchResp.Result, nil
	}, nil)
}

// Status reports the point count of each collection.
func (c *Client) Status(ctx context.Context) domain.StoreStatus {
	out := domain.StoreStatus{Tables: make(map[string]domain.TableCount, 2)}
	for _, collection := range []string{c.paragraphs, c.guides} {
		count, err := c.pointsCount(ctx, collection)
		if err != nil {
			out.Tables[collection] = domain.TableCount{Error: err.Error()}
			continue
		}
		out.Connected = true
		out.Tables[collection] = domain.TableCount{RowCount: count}
	}
	if !out.Connected {
		out.Error = "no collection reachable"
	}
	return out
}

func (c *Client) pointsCount(ctx context.Context, collection string) (int64, error) {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create collection info request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant collection info request: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError("collection info", resp); err != nil {
		return 0, err
	}
	var info struct {
		Result struct {
			PointsCount int64 `json:"points_count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, fmt.Errorf("decode collection info: %w", err)
	}
	return info.Result.PointsCount, nil
}

// statusError turns a non-2xx response into an error carrying the body.
// 429 and 5xx are temporary.
func statusError(operation string, resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	if msg := strings.TrimSpace(string(body)); msg != "" {
		err = fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.WrapError(domain.ErrNotFound, "qdrant "+operation, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	return err
}

func distance(score float64) float64 {
	return 1 - score
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case string:
		var n int
		_, _ = fmt.Sscanf(v, "%d", &n)
		return n
	default:
		return 0
	}
}

func getStringsPayload(payload map[string]any, key string) []string {
	raw, _ := payload[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
