package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

type replyEnvelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *replyError     `json:"error,omitempty"`
}

type replyError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// handleRequest decodes a request, dispatches it and always returns a
// reply envelope. The returned error is the call error for logging.
func handleRequest(ctx context.Context, prefix string, dispatch Dispatcher, subject string, data []byte) ([]byte, error) {
	tool := strings.TrimPrefix(subject, prefix+".")
	if tool == subject || tool == "" {
		err := domain.WrapError(domain.ErrInvalidInput, "route", fmt.Errorf("subject %q outside %q", subject, prefix))
		return encodeError(err), err
	}

	args := map[string]any{}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &args); err != nil {
			err = domain.WrapError(domain.ErrInvalidInput, "decode args", err)
			return encodeError(err), err
		}
	}

	result, err := dispatch(ctx, tool, args)
	if err != nil {
		return encodeError(err), err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		err = fmt.Errorf("encode result: %w", err)
		return encodeError(err), err
	}
	reply, _ := json.Marshal(replyEnvelope{OK: true, Result: payload})
	return reply, nil
}

func encodeError(err error) []byte {
	reply, _ := json.Marshal(replyEnvelope{Error: &replyError{Kind: domain.KindName(err), Message: err.Error()}})
	return reply
}

func decodeReply(data []byte, out any) error {
	var env replyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if !env.OK {
		if env.Error == nil {
			return errors.New("tool reply without result")
		}
		remote := errors.New(env.Error.Message)
		if kind := domain.KindFromName(env.Error.Kind); kind != nil {
			return domain.WrapError(kind, "tool reply", remote)
		}
		return fmt.Errorf("tool reply: %w", remote)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
