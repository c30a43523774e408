package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

// transportErrors mean no responder produced a reply.
var transportErrors = []error{
	nats.ErrNoServers,
	nats.ErrNoResponders,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
}

func isTransportError(err error) bool {
	for _, target := range transportErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classifyCallError decides how a failed tool request counts against the
// breaker. A decoded rejection came from a healthy responder.
func classifyCallError(err error) resilience.ErrorClassification {
	switch {
	case err == nil, domain.IsRejection(err):
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), isTransportError(err), domain.IsKind(err, domain.ErrTemporary):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// asTemporary marks retryable call failures so HTTP and MCP callers map
// them to 503.
func asTemporary(tool string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyCallError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "nats request "+tool, err)
	}
	return err
}
