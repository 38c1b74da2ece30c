package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// ModelLimiter enforces a model's requests-per-minute and tokens-per-minute
// budgets. A zero budget is unlimited. It is safe for concurrent use; the
// underlying limiters are synchronized per model.
type ModelLimiter struct {
	requests *rate.Limiter
	tokens   *rate.Limiter
	policy   domain.ThrottlePolicy
}

// NewModelLimiter builds a limiter from a model's configuration. An unset
// throttle policy queues.
func NewModelLimiter(cfg domain.ModelConfig) *ModelLimiter {
	policy := cfg.OnThrottle
	if policy == "" {
		policy = domain.ThrottleQueue
	}
	return &ModelLimiter{
		requests: perMinute(cfg.RequestsPerMinute),
		tokens:   perMinute(cfg.TokensPerMinute),
		policy:   policy,
	}
}

func perMinute(n int) *rate.Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(n)/60.0), n)
}

func (l *ModelLimiter) Policy() domain.ThrottlePolicy {
	return l.policy
}

// Acquire takes one request and tokens from the budgets. Under the reject
// policy it fails fast with ErrRateLimited; under the queue policy it waits
// until both budgets allow the call or ctx is done.
func (l *ModelLimiter) Acquire(ctx context.Context, tokens int) error {
	if l == nil {
		return nil
	}
	if tokens < 1 {
		tokens = 1
	}
	if l.tokens != nil && tokens > l.tokens.Burst() {
		tokens = l.tokens.Burst()
	}

	if l.policy == domain.ThrottleReject {
		return l.reserveNow(tokens)
	}
	return l.wait(ctx, tokens)
}

func (l *ModelLimiter) reserveNow(tokens int) error {
	now := time.Now()

	var req *rate.Reservation
	if l.requests != nil {
		req = l.requests.ReserveN(now, 1)
		if !req.OK() || req.DelayFrom(now) > 0 {
			req.CancelAt(now)
			return fmt.Errorf("requests per minute: %w", ErrRateLimited)
		}
	}
	if l.tokens != nil {
		tok := l.tokens.ReserveN(now, tokens)
		if !tok.OK() || tok.DelayFrom(now) > 0 {
			tok.CancelAt(now)
			if req != nil {
				req.CancelAt(now)
			}
			return fmt.Errorf("tokens per minute: %w", ErrRateLimited)
		}
	}
	return nil
}

// wait reserves both budgets together and sleeps until the later one is
// available. Both reservations are returned when ctx ends first.
func (l *ModelLimiter) wait(ctx context.Context, tokens int) error {
	now := time.Now()

	var reservations []*rate.Reservation
	cancel := func() {
		at := time.Now()
		for _, r := range reservations {
			r.CancelAt(at)
		}
	}

	var delay time.Duration
	reserve := func(lim *rate.Limiter, n int, budget string) error {
		if lim == nil {
			return nil
		}
		r := lim.ReserveN(now, n)
		if !r.OK() {
			cancel()
			return fmt.Errorf("%s: %w", budget, ErrRateLimited)
		}
		reservations = append(reservations, r)
		delay = max(delay, r.DelayFrom(now))
		return nil
	}
	if err := reserve(l.requests, 1, "requests per minute"); err != nil {
		return err
	}
	if err := reserve(l.tokens, tokens, "tokens per minute"); err != nil {
		return err
	}
	if delay == 0 {
		return nil
	}

	if deadline, ok := ctx.Deadline(); ok && deadline.Before(now.Add(delay)) {
		cancel()
		return fmt.Errorf("wait for rate budget: %w", context.DeadlineExceeded)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("wait for rate budget: %w", ctx.Err())
	}
}

// EstimateTokens approximates the token cost of a prompt.
func EstimateTokens(text string) int {
	return len(text)/4 + 1
}
