package resilience

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config controls retries, the per-operation circuit breaker and the
// deadline applied to each attempt. The read path keeps retries short: a
// search that cannot reach a backend degrades instead of waiting.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	// AttemptTimeout bounds a single attempt. Zero leaves the caller's deadline alone.
	AttemptTimeout time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:        2,
		RetryInitialBackoff:     50 * time.Millisecond,
		RetryMaxBackoff:         400 * time.Millisecond,
		RetryMultiplier:         2.0,
		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// WithTimeout returns a copy of c that bounds every attempt by d.
func (c Config) WithTimeout(d time.Duration) Config {
	c.AttemptTimeout = d
	return c
}

func orDefault[T int | uint32 | float64 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	c.RetryMaxAttempts = orDefault(c.RetryMaxAttempts, def.RetryMaxAttempts)
	c.RetryInitialBackoff = orDefault(c.RetryInitialBackoff, def.RetryInitialBackoff)
	c.RetryMaxBackoff = max(orDefault(c.RetryMaxBackoff, def.RetryMaxBackoff), c.RetryInitialBackoff)
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}
	c.AttemptTimeout = max(c.AttemptTimeout, 0)

	c.BreakerMinRequests = orDefault(c.BreakerMinRequests, def.BreakerMinRequests)
	if c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = 0
	}
	c.BreakerFailureRatio = orDefault(c.BreakerFailureRatio, def.BreakerFailureRatio)
	c.BreakerOpenTimeout = orDefault(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	c.BreakerHalfOpenMaxCalls = orDefault(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return c
}

// nextBackoff grows the wait geometrically up to RetryMaxBackoff.
func (c Config) nextBackoff(current time.Duration) time.Duration {
	return min(time.Duration(float64(current)*c.RetryMultiplier), c.RetryMaxBackoff)
}

// breakerSettings trips once enough calls were seen and the failure ratio
// crosses the threshold. Only errors the classifier records count.
func (c Config) breakerSettings(operation string, classifier ErrorClassifier) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        operation,
		MaxRequests: c.BreakerHalfOpenMaxCalls,
		Timeout:     c.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < c.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= c.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}
}
