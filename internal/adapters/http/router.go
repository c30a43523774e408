package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/isa-knowledge-base/internal/adapters/toolkit"
)

const (
	maxBodyBytes     = 4 << 20
	backpressureWait = 250 * time.Millisecond
)

type Options struct {
	APIKey       string
	RateLimitRPS float64
	RateBurst    int
	MaxInFlight  int
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Instrument wraps the mux, typically with request metrics.
	Instrument func(http.Handler) http.Handler
	// Rejected is told why traffic control refused a request.
	Rejected func(reason string)
}

type Router struct {
	tools *toolkit.Registry
	opts  Options
}

func NewRouter(tools *toolkit.Registry, opts Options) *Router {
	if opts.Rejected == nil {
		opts.Rejected = func(string) {}
	}
	return &Router{tools: tools, opts: opts}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/tools", rt.listTools)
	mux.HandleFunc("POST /v1/tools/{name}", rt.callTool)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics)
	}

	var h http.Handler = mux
	h = backpressureWithRejection(h, rt.opts.MaxInFlight, backpressureWait, rt.opts.Rejected)
	h = rateLimitMiddleware(h, rt.opts.RateLimitRPS, rt.opts.RateBurst, rt.opts.Rejected)
	h = apiKeyMiddleware(h, rt.opts.APIKey, rt.opts.Rejected)
	if rt.opts.Instrument != nil {
		h = rt.opts.Instrument(h)
	}
	h = accessLogMiddleware(h)
	return requestIDMiddleware(h)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

func (rt *Router) listTools(w http.ResponseWriter, _ *http.Request) {
	tools := rt.tools.Tools()
	out := make([]toolDescriptor, 0, len(tools))
	for _, tool := range tools {
		out = append(out, toolDescriptor{Name: tool.Name, Description: tool.Description, InputSchema: tool.InputSchema()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out, "total_tools": len(out)})
}

func (rt *Router) callTool(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))

	args := map[string]any{}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body failed"})
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be a JSON object"})
			return
		}
	}

	result, err := rt.tools.Call(r.Context(), name, args)
	if err != nil {
		hint := ""
		if _, known := rt.tools.Lookup(name); !known {
			hint = "GET /v1/tools lists the available tools."
		}
		writeError(w, r, err, hint)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
