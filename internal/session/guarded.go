package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/backend-plano/internal/resilience"
)

// ErrUnavailable is returned while the backing store is considered down.
var ErrUnavailable = errors.New("session: store unavailable")

// Guarded puts a circuit breaker in front of a Store. Once the backend keeps
// failing, calls fail fast with ErrUnavailable until a probe succeeds again.
// ErrNotFound counts as a healthy answer and a canceled caller counts as nothing.
type Guarded struct {
	Store   Store
	Breaker *resilience.Breaker
}

// Load implements Store.
func (g Guarded) Load(ctx context.Context, key string, dst any) error {
	return g.call(ctx, func() error { return g.Store.Load(ctx, key, dst) })
}

// Save implements Store.
func (g Guarded) Save(ctx context.Context, key string, v any, ttl time.Duration) error {
	return g.call(ctx, func() error { return g.Store.Save(ctx, key, v, ttl) })
}

// Delete implements Store.
func (g Guarded) Delete(ctx context.Context, key string) error {
	return g.call(ctx, func() error { return g.Store.Delete(ctx, key) })
}

// Ping implements Store.
func (g Guarded) Ping(ctx context.Context) error {
	return g.call(ctx, func() error { return g.Store.Ping(ctx) })
}

func (g Guarded) call(ctx context.Context, fn func() error) error {
	if g.Breaker == nil {
		return fn()
	}
	if !g.Breaker.Allow(ctx) {
		return fmt.Errorf("%w: %w", ErrUnavailable, resilience.ErrOpenCircuit)
	}
	err := fn()
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		g.Breaker.Report(ctx, true)
	case errors.Is(err, context.Canceled):
	default:
		g.Breaker.Report(ctx, false)
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
