package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/logging"
)

// RetryPolicy is an explicit bounded retry description. It replaces
// exception-driven retry control flow with a typed outcome: Generate either
// succeeds within the budget or returns the last classified error.
type RetryPolicy struct {
	MaxAttempts    int           // total attempts including the first (default 3)
	InitialBackoff time.Duration // backoff before the second attempt
	MaxBackoff     time.Duration // backoff cap
	Multiplier     float64       // backoff growth factor
}

// DefaultRetryPolicy mirrors the small fixed budget expected of provider
// clients: three attempts, 500ms initial backoff doubling per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
	}
}

// backoff returns the delay before the given 1-based retry attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// ClientOptions configures the generation client.
type ClientOptions struct {
	Retry RetryPolicy
	// MaxContextTokens bounds the token size of instructions + conversation.
	// When exceeded, the oldest non-system turns are dropped first (sliding
	// window) and the outcome is flagged Truncated. 0 disables truncation.
	MaxContextTokens int
	// CountTokens overrides the token counter. Defaults to a cl100k_base
	// tiktoken encoder with a bytes/4 heuristic fallback.
	CountTokens func(string) int
	// RequestsPerSecond enables a client-side rate limiter when > 0.
	RequestsPerSecond float64
	Burst             int
	// BreakerEnabled wraps provider calls in a circuit breaker so a failing
	// provider sheds load instead of accumulating doomed retries.
	BreakerEnabled bool
	Logger         logging.Logger
}

// Client wraps a Model with the operational policies every caller needs:
// bounded retry with exponential backoff, circuit breaking, client-side rate
// limiting and sliding-window context truncation. A Client holds no per-call
// state beyond these policies and is safe for concurrent use.
type Client struct {
	llm         Model
	retry       RetryPolicy
	maxTokens   int
	countTokens func(string) int
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[*Outcome]
	logger      logging.Logger
}

// NewClient creates a generation client around the given provider model.
func NewClient(llm Model, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		Retry:            DefaultRetryPolicy(),
		MaxContextTokens: 0,
		BreakerEnabled:   true,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Client{
		llm:         llm,
		retry:       opts.Retry,
		maxTokens:   opts.MaxContextTokens,
		countTokens: opts.CountTokens,
		logger:      opts.Logger,
	}
	if c.countTokens == nil {
		c.countTokens = defaultTokenCounter
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if opts.BreakerEnabled {
		c.breaker = gobreaker.NewCircuitBreaker[*Outcome](gobreaker.Settings{
			Name:    "generation." + llm.Info().Provider,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				// Only provider outages count against the breaker; malformed
				// output and caller cancellation are not provider health.
				return err == nil || !errors.Is(err, ErrServiceUnavailable)
			},
		})
	}
	return c
}

// Info exposes the wrapped provider's metadata.
func (c *Client) Info() Info { return c.llm.Info() }

// Generate performs one model turn. The returned Outcome is either a final
// answer or a set of requested tool calls; the error, when non-nil, is one of
// the package sentinels (or a context error) and the Outcome is nil.
func (c *Client) Generate(ctx context.Context, req Request) (*Outcome, error) {
	var truncated bool
	if c.maxTokens > 0 {
		req.Contents, truncated = c.fitWindow(req.Instructions, req.Contents)
		if truncated {
			c.logger.Warn("generation.context_truncated",
				"model", c.llm.Info().Name,
				"remaining_turns", len(req.Contents),
			)
		}
	}

	run := func() (*Outcome, error) { return c.generateWithRetry(ctx, req) }

	var (
		out *Outcome
		err error
	)
	if c.breaker != nil {
		out, err = c.breaker.Execute(run)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: circuit open: %v", ErrServiceUnavailable, err)
		}
	} else {
		out, err = run()
	}
	if err != nil {
		return nil, err
	}

	out.Truncated = truncated
	return out, nil
}

// generateWithRetry applies the bounded retry policy around single calls.
func (c *Client) generateWithRetry(ctx context.Context, req Request) (*Outcome, error) {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		out, err := c.once(ctx, req)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		delay := c.retry.backoff(attempt)
		c.logger.Warn("generation.retry",
			"model", c.llm.Info().Name,
			"attempt", attempt,
			"backoff_ms", delay.Milliseconds(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// once drains one provider call into a final Outcome.
func (c *Client) once(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	respCh, errCh := c.llm.Generate(ctx, req)

	var final *Response
	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				if final == nil {
					return nil, fmt.Errorf("%w: provider closed stream without a final response", ErrServiceUnavailable)
				}
				out, err := outcomeFromResponse(*final)
				if err != nil {
					return nil, err
				}
				c.logger.Debug("generation.complete",
					"model", c.llm.Info().Name,
					"finish_reason", out.FinishReason,
					"tool_calls", len(out.ToolCalls),
					"duration_ms", time.Since(start).Milliseconds(),
				)
				return out, nil
			}
			if !resp.Partial {
				r := resp
				final = &r
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, classify(err)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// classify folds provider errors into the package sentinels. Errors already
// carrying a sentinel (or a context error) pass through unchanged; everything
// else is treated as a retryable provider outage.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrInvalidResponse),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimited)
}

// fitWindow drops the oldest turns until instructions + conversation fit the
// token budget. The most recent turn is always kept so the model has
// something to answer.
func (c *Client) fitWindow(instructions string, contents []core.Content) ([]core.Content, bool) {
	budget := c.maxTokens - c.countTokens(instructions)
	total := 0
	counts := make([]int, len(contents))
	for i, content := range contents {
		counts[i] = c.countTokens(contentText(content))
		total += counts[i]
	}

	drop := 0
	for total > budget && drop < len(contents)-1 {
		total -= counts[drop]
		drop++
	}
	if drop == 0 {
		return contents, false
	}
	return contents[drop:], true
}

// contentText flattens a turn for token counting, including serialized tool
// traffic which also consumes context budget.
func contentText(c core.Content) string {
	var out string
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			out += part.Text
		case core.FunctionCallPart:
			out += part.FunctionCall.Name + part.FunctionCall.Arguments
		case core.FunctionResponsePart:
			out += part.FunctionResponse.Name + fmt.Sprintf("%v", part.FunctionResponse.Response) + part.FunctionResponse.Error
		}
	}
	return out
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// defaultTokenCounter counts tokens with the cl100k_base encoding, falling
// back to a bytes/4 heuristic when the encoding cannot be loaded (e.g. no
// network access to fetch the BPE ranks).
func defaultTokenCounter(s string) int {
	encOnce.Do(func() {
		if e, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			enc = e
		}
	})
	if enc == nil {
		return (len(s) + 3) / 4
	}
	return len(enc.Encode(s, nil, nil))
}
