package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hypermarketllc/hookline/internal/config"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitRule{Enabled: true, Max: 3, Window: time.Minute})
	defer rl.Stop()

	for range 3 {
		require.True(t, rl.Allow("1.2.3.4"))
	}
	require.False(t, rl.Allow("1.2.3.4"))

	// Buckets are per key.
	require.True(t, rl.Allow("5.6.7.8"))
}

func TestRateLimiter_RefillsAfterWindow(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitRule{Enabled: true, Max: 1, Window: 20 * time.Millisecond})
	defer rl.Stop()

	require.True(t, rl.Allow("key"))
	require.False(t, rl.Allow("key"))

	time.Sleep(30 * time.Millisecond)
	require.True(t, rl.Allow("key"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitRule{Enabled: true, Max: 1, Window: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/hooks/test", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.JSONEq(t, `{"error":"Too many requests","code":"RATE_LIMITED"}`, rec.Body.String())
}

func TestRateLimiter_MiddlewareUsesForwardedFor(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitRule{Enabled: true, Max: 1, Window: time.Minute})
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRequest(http.MethodPost, "/hooks/test", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	first.Header.Set("X-Forwarded-For", "203.0.113.7")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Same proxy, different client: not throttled.
	second := httptest.NewRequest(http.MethodPost, "/hooks/test", nil)
	second.RemoteAddr = "10.0.0.1:1234"
	second.Header.Set("X-Forwarded-For", "203.0.113.8")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
