// Package dispatchlog stores the durable record of webhook dispatches.
package dispatchlog

import (
	"context"
	"time"
)

// Entry is the record of one dispatch attempt and its outcome. Entries are
// written once and never mutated; WebhookName is a snapshot taken at write
// time and is not kept in sync with later renames.
type Entry struct {
	ID          string    `json:"id"`
	WebhookID   string    `json:"webhook_id"`
	WebhookName string    `json:"webhook_name"`
	Timestamp   time.Time `json:"timestamp"`

	RequestURL     string            `json:"request_url"`
	RequestMethod  string            `json:"request_method"`
	RequestHeaders map[string]string `json:"request_headers"`
	RequestBody    string            `json:"request_body,omitempty"`

	// Response fields are zero on transport failure.
	ResponseStatus  int               `json:"response_status"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`

	// DurationMs is wall-clock time from dispatch start to completion or
	// failure, in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Success is true iff a response was received with a 2xx status.
	Success bool `json:"success"`

	// Error is set iff Success is false.
	Error string `json:"error,omitempty"`
}

// QueryOptions filters log listings. WebhookID and Search compose with AND.
type QueryOptions struct {
	// WebhookID restricts results to entries for one webhook.
	WebhookID string

	// Search is a case-insensitive substring match across webhook name,
	// request URL, stringified response status, and error text.
	Search string

	Limit  int
	Offset int
}

// Archiver receives entries pruned from the store before they are deleted.
type Archiver interface {
	Archive(ctx context.Context, entries []*Entry) error
}
