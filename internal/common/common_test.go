package common_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-plano/internal/common"
)

func TestWriteErrorUsesAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	cause := errors.New("boom")
	common.WriteError(rr, common.NewAppError("VALIDATION_FAILED", "invalid", http.StatusUnprocessableEntity, cause).
		WithDetails(map[string]string{"email": "E-mail inválido"}))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	require.Equal(t, "E-mail inválido", body.Error.Details["email"])
}

func TestWriteErrorFallsBackToInternal(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, errors.New("plain"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "INTERNAL")
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	require.Equal(t, "10.0.0.1", common.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	require.Equal(t, "192.0.2.7", common.ClientIP(req))
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	h := common.Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/checkout/abc/submit", nil)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusCreated, send("k1"))
	require.Equal(t, http.StatusConflict, send("k1"))
	require.Equal(t, http.StatusCreated, send("k2"))
	require.Equal(t, http.StatusCreated, send(""))
	require.Equal(t, 3, calls)
}

func TestIdempotencyWithoutRedisPassesThrough(t *testing.T) {
	h := common.Idem{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Idempotency-Key", "k")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	statuses := []int{http.StatusBadGateway, http.StatusUnprocessableEntity, http.StatusCreated}
	calls := 0
	h := common.Idem{R: client, Prefix: "plano:idem:"}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		common.JSON(w, statuses[calls], map[string]any{"attempt": calls})
		calls++
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/checkout/abc/submit", nil)
		req.Header.Set("Idempotency-Key", "retry-me")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusBadGateway, send())
	require.Empty(t, mr.Keys())
	require.Equal(t, http.StatusUnprocessableEntity, send())
	require.Equal(t, http.StatusCreated, send())
	require.Len(t, mr.Keys(), 1)
	require.Equal(t, http.StatusConflict, send())
	require.Equal(t, 3, calls)
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := common.Idem{R: client}.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	req := httptest.NewRequest(http.MethodPost, "/checkout/abc/submit", nil)
	req.Header.Set("Idempotency-Key", "k")
	require.Panics(t, func() { h.ServeHTTP(httptest.NewRecorder(), req) })
	require.Empty(t, mr.Keys())
}

func TestClientIPSkipsUnparsableHops(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "unknown, 2001:db8::1")
	require.Equal(t, "2001:db8::1", common.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "[2001:db8::2]:443")
	require.Equal(t, "2001:db8::2", common.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::ffff:192.0.2.8]:80"
	require.Equal(t, "192.0.2.8", common.ClientIP(req))
}

func TestDataEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	common.Data(rr, http.StatusCreated, map[string]int{"n": 1})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"data":{"n":1}}`, rr.Body.String())
}

func TestJSONEncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	common.Data(rr, http.StatusOK, map[string]any{"bad": make(chan int)})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), "ENCODE_FAILED")
}
