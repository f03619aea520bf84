package lock

import (
	"context"
	"errors"
	"time"
)

var errNoCallback = errors.New("lock: callback not provided")

// Locker serialises work on a key. The lock is released when fn returns.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}
