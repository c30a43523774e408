package httpadapter

import (
	"net/http"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

var statusByKind = map[string]int{
	"invalid_input": http.StatusBadRequest,
	"unauthorized":  http.StatusUnauthorized,
	"not_found":     http.StatusNotFound,
	"temporary":     http.StatusServiceUnavailable,
	"unavailable":   http.StatusServiceUnavailable,
}

func mapErrorToHTTPStatus(err error) int {
	if status, ok := statusByKind[domain.KindName(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
	Hint      string `json:"hint,omitempty"`
}

// writeError masks untyped failures; typed ones echo the wrapped message.
func writeError(w http.ResponseWriter, r *http.Request, err error, hint string) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{
		Error:     message,
		Kind:      domain.KindName(err),
		RequestID: requestIDFromContext(r.Context()),
		Hint:      hint,
	})
}
