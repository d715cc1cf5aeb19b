package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"server/internal/infra"
)

// Caller is the single-attempt contract the Invoker wraps. *Client satisfies
// it; tests substitute stubs.
type Caller interface {
	Execute(ctx context.Context, action string, parameters map[string]any) (json.RawMessage, error)
}

// InvokerOptions configures the retry policy.
type InvokerOptions struct {
	MaxRetries   int
	InitialDelay time.Duration
	Logger       *infra.Logger
}

// Invoker wraps a Caller with bounded retries and exponential backoff. The
// delay doubles after every failed attempt, with no jitter. The failure
// returned after the budget is exhausted is the last attempt's, verbatim.
type Invoker struct {
	caller       Caller
	maxRetries   int
	initialDelay time.Duration
	logger       *infra.Logger
}

// NewInvoker constructs an Invoker, defaulting to 3 attempts starting from a
// 1s delay.
func NewInvoker(caller Caller, opts InvokerOptions) *Invoker {
	maxRetries := opts.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}
	initialDelay := opts.InitialDelay
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Invoker{
		caller:       caller,
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		logger:       logger,
	}
}

// Invoke runs the action until it succeeds, a non-retryable failure occurs,
// the attempt budget runs out, or ctx is canceled.
func (iv *Invoker) Invoke(ctx context.Context, action string, parameters map[string]any) (json.RawMessage, error) {
	delay := iv.initialDelay
	var lastErr error

	for attempt := 1; attempt <= iv.maxRetries; attempt++ {
		data, err := iv.caller.Execute(ctx, action, parameters)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var agentErr *Error
		if errors.As(err, &agentErr) && !agentErr.Retryable() {
			return nil, err
		}
		if attempt == iv.maxRetries {
			break
		}

		iv.logger.Info().
			Str("action", action).
			Int("attempt", attempt).
			Int("max_retries", iv.maxRetries).
			Dur("delay", delay).
			Err(err).
			Msg("agent: retrying after failure")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, lastErr
}
