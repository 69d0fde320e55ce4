package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/hypermarketllc/hookline/internal/config"
	"github.com/hypermarketllc/hookline/internal/requestctx"
)

// RateLimiter caps requests per client over a fixed window. It guards the
// public receiver endpoint, the only surface exposed to unauthenticated
// callers.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	rule    config.RateLimitRule
	stopCh  chan struct{}
	done    sync.WaitGroup
}

type clientWindow struct {
	remaining int
	resetAt   time.Time
}

// NewRateLimiter creates a limiter enforcing the given rule and starts its
// janitor goroutine. Call Stop to release it.
func NewRateLimiter(rule config.RateLimitRule) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientWindow),
		rule:    rule,
		stopCh:  make(chan struct{}),
	}

	rl.done.Add(1)
	go rl.janitor()

	return rl
}

// Allow consumes one request slot for key, refreshing the window when it
// has lapsed. Returns false when the client is over its budget.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	cw, ok := rl.clients[key]
	if !ok || !now.Before(cw.resetAt) {
		cw = &clientWindow{
			remaining: rl.rule.Max,
			resetAt:   now.Add(rl.rule.Window),
		}
		rl.clients[key] = cw
	}

	if cw.remaining == 0 {
		return false
	}
	cw.remaining--
	return true
}

// janitor drops windows that lapsed without further traffic.
func (rl *RateLimiter) janitor() {
	defer rl.done.Done()

	ticker := time.NewTicker(rl.rule.Window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for key, cw := range rl.clients {
				if now.After(cw.resetAt) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop shuts down the janitor goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
	rl.done.Wait()
}

// Middleware rejects over-budget clients with 429, keyed by client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(requestctx.ClientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests","code":"RATE_LIMITED"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
