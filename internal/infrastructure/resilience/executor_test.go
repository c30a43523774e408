package resilience

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/isa-knowledge-base/internal/core/domain"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestExecuteRetriesTimedOutAttempt(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     1 * time.Millisecond,
		AttemptTimeout:      5 * time.Millisecond,
		BreakerEnabled:      false,
	})

	attempts := 0
	err := exec.Execute(context.Background(), "slow", func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("expected second attempt to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryCallerCancellation(t *testing.T) {
	exec := NewExecutor(Config{RetryMaxAttempts: 3, BreakerEnabled: false})
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := exec.Execute(ctx, "op", func(context.Context) error {
		attempts++
		cancel()
		return context.Canceled
	}, nil)
	if !errors.Is(err, context.Canceled) || attempts != 1 {
		t.Fatalf("expected single cancelled attempt, got attempts=%d err=%v", attempts, err)
	}
}

func TestCallReturnsValue(t *testing.T) {
	exec := NewExecutor(Config{BreakerEnabled: false})
	got, err := Call(context.Background(), exec, "count", func(context.Context) (int, error) {
		return 42, nil
	}, nil)
	if err != nil || got != 42 {
		t.Fatalf("expected 42, got %d err=%v", got, err)
	}

	var nilExec *Executor
	got, err = Call(context.Background(), nilExec, "count", func(context.Context) (int, error) {
		return 7, nil
	}, nil)
	if err != nil || got != 7 {
		t.Fatalf("expected nil executor to run fn directly, got %d err=%v", got, err)
	}
}

func TestClassifyTransient(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"cancelled", context.Canceled, false, false},
		{"not found", domain.WrapError(domain.ErrNotFound, "lookup", errors.New("x")), false, false},
		{"temporary", domain.WrapError(domain.ErrTemporary, "lookup", errors.New("x")), true, true},
		{"bad conn", driver.ErrBadConn, true, true},
		{"open circuit", gobreaker.ErrOpenState, true, true},
		{"other", errors.New("syntax error"), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyTransient(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("ClassifyTransient(%v) = %+v", tc.err, got)
			}
		})
	}
}

func TestWrapTemporary(t *testing.T) {
	if err := WrapTemporary("op", driver.ErrBadConn, nil); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary wrap, got %v", err)
	}
	plain := errors.New("syntax error")
	if err := WrapTemporary("op", plain, nil); err != plain {
		t.Fatalf("expected error unchanged, got %v", err)
	}
}

func TestConfigNormalizeFillsDefaults(t *testing.T) {
	cfg := Config{
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     10 * time.Millisecond,
		BreakerFailureRatio: 1.5,
		AttemptTimeout:      -time.Second,
	}.normalize()

	if cfg.RetryMaxAttempts != 2 {
		t.Fatalf("expected default attempts, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RetryMaxBackoff != time.Second {
		t.Fatalf("expected max backoff raised to initial backoff, got %s", cfg.RetryMaxBackoff)
	}
	if cfg.BreakerFailureRatio != 0.5 {
		t.Fatalf("expected default failure ratio, got %v", cfg.BreakerFailureRatio)
	}
	if cfg.AttemptTimeout != 0 {
		t.Fatalf("expected negative attempt timeout cleared, got %s", cfg.AttemptTimeout)
	}
	if got := cfg.nextBackoff(cfg.RetryInitialBackoff); got != time.Second {
		t.Fatalf("expected backoff capped at max, got %s", got)
	}
}
