package lock

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Locker for single replica deployments.
type Local struct {
	mu   sync.Mutex
	keys map[string]*localKey
}

type localKey struct {
	sem  chan struct{}
	refs int
}

// NewLocal returns an empty local locker.
func NewLocal() *Local {
	return &Local{keys: map[string]*localKey{}}
}

// WithLock runs fn while no other caller holds key. ttl is ignored; the lock
// lives exactly as long as fn.
func (l *Local) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errNoCallback
	}
	k := l.acquireRef(key)
	defer l.releaseRef(key, k)

	select {
	case k.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-k.sem }()
	return fn(ctx)
}

func (l *Local) acquireRef(key string) *localKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.keys == nil {
		l.keys = map[string]*localKey{}
	}
	k, ok := l.keys[key]
	if !ok {
		k = &localKey{sem: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.refs++
	return k
}

func (l *Local) releaseRef(key string, k *localKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.keys, key)
	}
}

// Held returns the number of keys with waiters or holders.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
