package ratelimit

import (
	"context"
	"fmt"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Fixed is a fixed window limiter on top of a ulule/limiter store. With the
// in-memory store it serves single-instance deployments without Redis.
type Fixed struct {
	Store limiter.Store
}

// NewMemory returns a Fixed limiter keeping its counters in process memory.
func NewMemory(prefix string) Fixed {
	return Fixed{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: time.Minute,
	})}
}

// Allow implements Limiter.
func (f Fixed) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if f.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lim := limiter.New(f.Store, limiter.Rate{Period: window, Limit: int64(max)})
	res, err := lim.Get(ctx, rateKey(key, window, max))
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}

// rateKey separates counters of the same key under different limits.
func rateKey(key string, window time.Duration, max int) string {
	return fmt.Sprintf("%s:%d:%s", key, max, window)
}
