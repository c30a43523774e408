package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	var reasons []string
	handler := newTestHandler(Options{
		RateLimitRPS: 1,
		RateBurst:    1,
		Rejected:     func(reason string) { reasons = append(reasons, reason) },
	})

	req1 := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1 for 429 response, got %q", res2.Header().Get("Retry-After"))
	}
	if len(reasons) != 1 || reasons[0] != "rate_limited" {
		t.Fatalf("expected one rate_limited rejection, got %v", reasons)
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected overload error message in response")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	handler := newTestHandler(Options{APIKey: "secret"})

	cases := []struct {
		name   string
		path   string
		header string
		value  string
		want   int
	}{
		{name: "missing key", path: "/v1/tools", want: http.StatusUnauthorized},
		{name: "wrong bearer", path: "/v1/tools", header: "Authorization", value: "Bearer nope", want: http.StatusUnauthorized},
		{name: "bearer", path: "/v1/tools", header: "Authorization", value: "Bearer secret", want: http.StatusOK},
		{name: "api key header", path: "/v1/tools", header: "X-Api-Key", value: "secret", want: http.StatusOK},
		{name: "health is open", path: "/healthz", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}
