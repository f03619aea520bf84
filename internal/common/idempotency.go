package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

// Idem provides an Idempotency-Key middleware backed by Redis. Requests pass
// through untouched when no client is configured or the header is absent.
type Idem struct {
	R      *redis.Client
	TTL    time.Duration
	Prefix string
}

// Sha256Hex returns the SHA-256 digest of the input encoded as lowercase hex.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func (i Idem) key(r *http.Request, header string) string {
	prefix := i.Prefix
	if prefix == "" {
		prefix = "idem:"
	}
	return prefix + Sha256Hex(r.Method+" "+r.URL.Path+" "+header)
}

// Middleware claims the Idempotency-Key before the handler runs. A key whose
// request ends in a 4xx/5xx (or a panic) is released so the client can retry
// with it; successful keys stay claimed for TTL.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := i.key(r, header)
		ttl := i.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		ok, err := i.R.SetNX(ctx, key, "claimed", ttl).Result()
		if err != nil {
			JSONError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "idempotency store error", nil)
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		completed := false
		defer func() {
			if completed && ww.Status() < http.StatusBadRequest {
				return
			}
			// the request context may already be canceled here
			_ = i.R.Del(context.WithoutCancel(ctx), key).Err()
		}()
		next.ServeHTTP(ww, r)
		completed = true
	})
}
