// Package requestctx carries per-request metadata through context and
// provides helpers shared by the logging and rate-limit layers.
package requestctx

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type requestIDKey struct{}
type startTimeKey struct{}

// WithRequestID stores the request ID for downstream handlers and loggers.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// WithStartTime records when the server began handling the request.
func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

// RequestID returns the request ID, or "" when none was set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// StartTime returns when handling began, or the zero time when unset.
func StartTime(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey{}).(time.Time)
	return t
}

// ClientIP resolves the originating client address, trusting proxy headers
// when present. X-Forwarded-For may hold a chain; the first hop is the client.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		return host[:idx]
	}
	return host
}
