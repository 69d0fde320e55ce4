package requestlog

import (
	"net/http"
	"strings"
	"time"

	"github.com/hypermarketllc/hookline/internal/auth"
	"github.com/hypermarketllc/hookline/internal/requestctx"
)

// Paths excluded from capture: health probes, scrapes, and long-lived
// websocket connections would otherwise dominate the buffer.
var skipPrefixes = []string{"/health", "/metrics", "/api/realtime"}

// Middleware records completed requests into the store.
func Middleware(store *Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := requestctx.StartTime(r.Context())
			if start.IsZero() {
				start = time.Now()
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			store.Add(buildEntry(r, capture, start))
		})
	}
}

func buildEntry(r *http.Request, capture *responseCapture, start time.Time) Entry {
	duration := time.Since(start)

	entry := Entry{
		ID:         requestctx.RequestID(r.Context()),
		Timestamp:  start,
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		Status:     capture.status,
		Duration:   duration,
		DurationMS: float64(duration.Microseconds()) / 1000.0,
		BytesIn:    r.ContentLength,
		BytesOut:   capture.bytes,
		ClientIP:   requestctx.ClientIP(r),
		UserAgent:  r.UserAgent(),
	}

	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		entry.UserID = claims.UserID
	}
	return entry
}

func skipped(path string) bool {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

type responseCapture struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (c *responseCapture) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	n, err := c.ResponseWriter.Write(b)
	c.bytes += int64(n)
	return n, err
}
