package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-plano/internal/resilience"
	"github.com/noah-isme/backend-plano/internal/session"
)

type flakyStore struct {
	session.Store
	err   error
	calls int
}

func (f *flakyStore) Load(ctx context.Context, key string, dst any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return f.Store.Load(ctx, key, dst)
}

func TestGuardedStoreBehavesLikeStore(t *testing.T) {
	exerciseStore(t, session.Guarded{Store: session.NewMemoryStore(), Breaker: resilience.NewBreaker(1, 0.5, time.Minute)})
}

func TestGuardedStoreOpensOnBackendFailures(t *testing.T) {
	ctx := context.Background()
	backend := &flakyStore{Store: session.NewMemoryStore(), err: errors.New("connection refused")}
	store := session.Guarded{Store: backend, Breaker: resilience.NewBreaker(2, 0.5, 30*time.Millisecond)}

	var out payload
	for i := 0; i < 2; i++ {
		err := store.Load(ctx, "k", &out)
		require.ErrorIs(t, err, session.ErrUnavailable)
	}
	require.Equal(t, 2, backend.calls)

	err := store.Load(ctx, "k", &out)
	require.ErrorIs(t, err, session.ErrUnavailable)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, 2, backend.calls, "open breaker must not reach the backend")

	backend.err = nil
	time.Sleep(40 * time.Millisecond)
	require.ErrorIs(t, store.Load(ctx, "k", &out), session.ErrNotFound)
	require.Equal(t, 3, backend.calls)
	require.ErrorIs(t, store.Load(ctx, "k", &out), session.ErrNotFound)
}

func TestGuardedStoreNotFoundKeepsBreakerClosed(t *testing.T) {
	ctx := context.Background()
	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	store := session.Guarded{Store: session.NewMemoryStore(), Breaker: breaker}

	var out payload
	for i := 0; i < 5; i++ {
		require.ErrorIs(t, store.Load(ctx, "missing", &out), session.ErrNotFound)
	}
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestGuardedRedisStoreFailsFastWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	store := session.Guarded{Store: session.NewRedisStore(client, "plano:"), Breaker: breaker}
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "k", payload{Step: 1}, time.Minute))

	mr.Close()
	require.ErrorIs(t, store.Ping(ctx), session.ErrUnavailable)
	require.Equal(t, resilience.Open, breaker.State())
	require.ErrorIs(t, store.Load(ctx, "k", &payload{}), resilience.ErrOpenCircuit)
}
