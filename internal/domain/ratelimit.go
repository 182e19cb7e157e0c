package domain

import (
	"context"
	"time"
)

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter admits or rejects a request charged against key. Counters are
// fixed-window: boundary-aligned bursts can briefly reach twice the nominal
// rate, which is accepted coarseness for abuse dampening.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
