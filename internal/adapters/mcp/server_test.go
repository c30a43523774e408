package mcpadapter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/isa-knowledge-base/internal/adapters/toolkit"
)

func testRegistry() *toolkit.Registry {
	r := toolkit.NewRegistry(nil)
	r.MustRegister(toolkit.Tool{
		Name:        "isa_expand_query",
		Description: "expand",
		Params:      []toolkit.Param{{Name: "query", Type: toolkit.TypeString, Required: true}},
		Handler: func(_ context.Context, a toolkit.Args) (any, error) {
			return map[string]string{"expanded_query": a.String("query") + " risk of material misstatement"}, nil
		},
	})
	return r
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = "isa_expand_query"
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestHandlerReturnsJSONText(t *testing.T) {
	handler := handlerFor(testRegistry(), "isa_expand_query")
	result, err := handler(context.Background(), callRequest(map[string]any{"query": "RMM"}))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textOf(t, result))
	}

	var out map[string]string
	if err := json.Unmarshal([]byte(textOf(t, result)), &out); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if out["expanded_query"] != "RMM risk of material misstatement" {
		t.Fatalf("unexpected result: %v", out)
	}
}

func TestHandlerReportsArgumentErrorsAsToolErrors(t *testing.T) {
	handler := handlerFor(testRegistry(), "isa_expand_query")
	result, err := handler(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if !result.IsError || !strings.Contains(textOf(t, result), `missing required argument "query"`) {
		t.Fatalf("expected tool error result, got %+v", result)
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s, err := NewServer(testRegistry(), "test")
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	payload, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("encode response: %v", err)
	}
	if !strings.Contains(string(payload), `"name":"isa_expand_query"`) || !strings.Contains(string(payload), `"required":["query"]`) {
		t.Fatalf("expected registered tool with schema, got %s", payload)
	}
}
