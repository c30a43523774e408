package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

const maxErrorBody = 2048

// apiError is a non-2xx answer from the Ollama API.
type apiError struct {
	path   string
	status int
	body   string
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("ollama %s: %d %s", e.path, e.status, http.StatusText(e.status))
	if e.body != "" {
		msg += ": " + e.body
	}
	return msg
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ollama %s: encode request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ollama %s: build request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apiError{path: path, status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama %s: decode response: %w", path, err)
	}
	return nil
}

// classifyEmbedError retries throttling and server faults. A 404 means the
// embedding model is not pulled, which no retry will fix.
func classifyEmbedError(err error) resilience.ErrorClassification {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return resilience.ClassifyTransient(err)
	}
	switch {
	case apiErr.status == http.StatusRequestTimeout, apiErr.status == http.StatusTooManyRequests, apiErr.status >= 500:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{}
	}
}

// embedError attaches a domain kind to a failed embed call.
func embedError(err error) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
		return domain.WrapError(domain.ErrUnavailable, "ollama embed", err)
	}
	return resilience.WrapTemporary("ollama embed", err, classifyEmbedError)
}
