package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

type retrying struct {
	inner  Provider
	policy RetryPolicy
}

// WithRetry retries rate limits and unavailability with capped
// exponential backoff. Invalid output is retried once since a second
// sample usually parses.
func WithRetry(p Provider, policy RetryPolicy) Provider {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &retrying{inner: p, policy: policy}
}

func (r *retrying) Name() string    { return r.inner.Name() }
func (r *retrying) ModelID() string { return r.inner.ModelID() }

func (r *retrying) Generate(ctx context.Context, req Request) (*Response, error) {
	var err error
	invalidSeen := false
	for attempt := range r.policy.Attempts {
		var resp *Response
		resp, err = r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}

		var invalid *InvalidOutputError
		switch {
		case !retryable(err):
			return nil, err
		case errors.As(err, &invalid):
			if invalidSeen {
				return nil, err
			}
			invalidSeen = true
		}
		if attempt == r.policy.Attempts-1 {
			break
		}

		t := time.NewTimer(r.wait(attempt, err))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rl *RateLimitError
	var un *UnavailableError
	var inv *InvalidOutputError
	return errors.As(err, &rl) || errors.As(err, &un) || errors.As(err, &inv)
}

// wait honours Retry-After, otherwise doubles from Initial up to Max with
// up to 20% jitter either way.
func (r *retrying) wait(attempt int, err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	d := r.policy.Initial << attempt
	if r.policy.Max > 0 && (d > r.policy.Max || d <= 0) {
		d = r.policy.Max
	}
	jitter := time.Duration(float64(d) * 0.2 * (2*rand.Float64() - 1))
	return max(d+jitter, 0)
}
