package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more event for key fits in max per window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}
