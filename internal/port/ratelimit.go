package port

import (
	"context"
	"time"
)

// RateDecision is the outcome of one rate limit check
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	RetryAfter time.Duration
}

// RateLimiter throttles requests per key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*RateDecision, error)
}
