package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/siren-relay/internal/observability"
	"github.com/couchcryptid/siren-relay/internal/timeutil"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// CallOptions tunes a single call. A zero DCID means the invoker's default
// datacenter.
type CallOptions struct {
	DCID int
}

// Invoker is the raw remote-call primitive of a feed transport.
type Invoker interface {
	Invoke(ctx context.Context, method string, params any, opts CallOptions) (json.RawMessage, error)
	// SetDefaultDC changes the datacenter used by every later call that does
	// not set CallOptions.DCID.
	SetDefaultDC(dc int)
}

// Settings configures a Caller.
type Settings struct {
	// MaxRetries caps transient retries per call. Zero retries forever.
	MaxRetries int
	// RatePerSec paces outbound calls. Zero disables pacing.
	RatePerSec int
	Clock      clockwork.Clock
}

// Caller wraps an Invoker and recovers from rate-limit and datacenter-redirect
// failures. Other failures are returned unchanged.
type Caller struct {
	invoker    Invoker
	clock      clockwork.Clock
	limiter    *rate.Limiter
	maxRetries int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewCaller creates a Caller around the given invoker.
func NewCaller(invoker Invoker, s Settings, logger *slog.Logger, metrics *observability.Metrics) *Caller {
	clock := s.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	var limiter *rate.Limiter
	if s.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.RatePerSec), s.RatePerSec)
	}
	return &Caller{
		invoker:    invoker,
		clock:      clock,
		limiter:    limiter,
		maxRetries: s.MaxRetries,
		logger:     logger,
		metrics:    metrics,
	}
}

// Call invokes method and retries it while the feed reports a transient
// condition. Waits honour ctx; a cancelled context ends the call with
// ctx.Err().
func (c *Caller) Call(ctx context.Context, method string, params any, opts CallOptions) (json.RawMessage, error) {
	for retries := 0; ; retries++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		result, err := c.invoker.Invoke(ctx, method, params, opts)
		if err == nil {
			return result, nil
		}
		c.logger.Warn("rpc call failed", "method", method, "attempt", retries+1, "error", err)

		var remote *RemoteError
		if !errors.As(err, &remote) {
			return nil, err
		}

		if wait, ok := remote.FloodWait(); ok {
			if c.exhausted(retries) {
				return nil, fmt.Errorf("%s: %w: %w", method, ErrRetriesExhausted, err)
			}
			c.metrics.RPCRetries.WithLabelValues("flood_wait").Inc()
			c.logger.Info("rate limited, waiting before retry", "method", method, "wait", wait)
			if !timeutil.Sleep(ctx, c.clock, wait) {
				return nil, ctx.Err()
			}
			continue
		}

		if kind, dc, ok := remote.Migrate(); ok {
			if c.exhausted(retries) {
				return nil, fmt.Errorf("%s: %w: %w", method, ErrRetriesExhausted, err)
			}
			c.metrics.RPCRetries.WithLabelValues("migrate").Inc()
			if kind == MigratePhone {
				// Login must finish on the datacenter that issued the code.
				c.invoker.SetDefaultDC(dc)
			} else {
				opts.DCID = dc
			}
			c.logger.Info("redirected to another datacenter", "method", method, "kind", kind, "dc", dc)
			continue
		}

		return nil, err
	}
}

func (c *Caller) exhausted(retries int) bool {
	return c.maxRetries > 0 && retries >= c.maxRetries
}
