package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
	"github.com/kirillkom/isa-knowledge-base/internal/infrastructure/resilience"
)

const (
	QueueGroup   = "kb-tools"
	callIDHeader = "Kb-Call-Id"
)

// Dispatcher runs one tool call. toolkit.Registry.Call satisfies it.
type Dispatcher func(ctx context.Context, tool string, args map[string]any) (any, error)

// RequestObserver is notified around every handled request.
type RequestObserver interface {
	StartRequest()
	FinishRequest(replySize int, err error)
}

// ToolBus serves and calls tools over NATS request/reply on
// "<prefix>.<tool>" subjects.
type ToolBus struct {
	conn           *nats.Conn
	prefix         string
	executor       *resilience.Executor
	requestTimeout time.Duration
	observer       RequestObserver
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	RequestTimeout       time.Duration
	ResilienceExecutor   *resilience.Executor
	Observer             RequestObserver
}

func New(url, prefix string) (*ToolBus, error) {
	return NewWithOptions(url, prefix, Options{})
}

func NewWithOptions(url, prefix string, options Options) (*ToolBus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	requestTimeout := options.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	conn, err := nats.Connect(
		url,
		nats.Name("isa-knowledge-base"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &ToolBus{
		conn:           conn,
		prefix:         strings.TrimSuffix(prefix, "."),
		executor:       options.ResilienceExecutor,
		requestTimeout: requestTimeout,
		observer:       options.Observer,
	}, nil
}

func (b *ToolBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *ToolBus) Subject(tool string) string {
	return b.prefix + "." + tool
}

// Serve answers tool requests until ctx is cancelled, then drains.
func (b *ToolBus) Serve(ctx context.Context, dispatch Dispatcher) error {
	sub, err := b.conn.QueueSubscribe(b.prefix+".*", QueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		callID := msg.Header.Get(callIDHeader)

		if b.observer != nil {
			b.observer.StartRequest()
		}
		handlerCtx, cancel := context.WithTimeout(ctx, b.requestTimeout)
		reply, callErr := handleRequest(handlerCtx, b.prefix, dispatch, msg.Subject, msg.Data)
		cancel()
		if b.observer != nil {
			b.observer.FinishRequest(len(reply), callErr)
		}
		if callErr != nil {
			slog.Warn("tool_request_failed", "subject", msg.Subject, "call_id", callID, "error", callErr)
		}

		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			slog.Error("tool_reply_failed", "subject", msg.Subject, "call_id", callID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("tool_bus_serving", "subject", b.prefix+".*", "queue", QueueGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// Call sends a tool request and decodes the reply result into out.
func (b *ToolBus) Call(ctx context.Context, tool string, args map[string]any, out any) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "encode tool args", err)
	}

	call := func(ctx context.Context) error {
		msg := nats.NewMsg(b.Subject(tool))
		msg.Header.Set(callIDHeader, uuid.NewString())
		msg.Data = payload

		reqCtx, cancel := context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
		reply, err := b.conn.RequestMsgWithContext(reqCtx, msg)
		if err != nil {
			return fmt.Errorf("nats request %s: %w", tool, err)
		}
		return decodeReply(reply.Data, out)
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.request", call, classifyCallError)
	} else {
		err = call(ctx)
	}
	return asTemporary(tool, err)
}
