package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is missing or expired.
var ErrNotFound = errors.New("session: not found")

// Store keeps JSON-encoded session state under a key with a TTL.
type Store interface {
	Load(ctx context.Context, key string, dst any) error
	Save(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
