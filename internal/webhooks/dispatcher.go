package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/config"
	"github.com/hypermarketllc/hookline/internal/dispatchlog"
	"github.com/hypermarketllc/hookline/internal/metrics"
)

// Mode selects where a dispatch outcome is routed.
type Mode string

const (
	// ModeNormal appends the outcome to the execution log and updates the
	// definition's execution-status cache.
	ModeNormal Mode = "normal"

	// ModeTest routes the outcome to the sandbox result slot. Nothing is
	// logged and no definition state changes.
	ModeTest Mode = "test"
)

var (
	// ErrMissingURL is returned when a definition has no target URL.
	ErrMissingURL = errors.New("webhook has no URL")

	// ErrInvalidURL is returned when the target is not an absolute URL.
	ErrInvalidURL = errors.New("webhook URL is not a valid absolute URL")

	// ErrDisabled is returned for normal-mode dispatch of a disabled
	// definition. Test mode is permitted regardless of enabled.
	ErrDisabled = errors.New("webhook is disabled")

	// ErrTargetNotAllowed is returned when the URL matches no configured
	// allowed-target pattern.
	ErrTargetNotAllowed = errors.New("webhook target is not in the allowed list")
)

// CompletionFunc is invoked after every dispatch with the definition as it
// looked at dispatch time, the outcome entry, and the mode. Best effort;
// runs on the dispatch goroutine.
type CompletionFunc func(def *Definition, entry *dispatchlog.Entry, mode Mode)

// Dispatcher issues webhook requests and records their outcomes.
type Dispatcher struct {
	store      *Store
	logs       *dispatchlog.Store
	sandbox    *Sandbox
	client     *http.Client
	allowed    []glob.Glob
	maxBody    int64
	onComplete CompletionFunc
}

// NewDispatcher creates a dispatcher. The HTTP client carries the configured
// dispatch timeout; deadline expiry resolves as a transport failure.
func NewDispatcher(store *Store, logs *dispatchlog.Store, sandbox *Sandbox, cfg *config.WebhooksConfig) (*Dispatcher, error) {
	var allowed []glob.Glob
	for _, pattern := range cfg.AllowedTargets {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling allowed target %q: %w", pattern, err)
		}
		allowed = append(allowed, g)
	}

	return &Dispatcher{
		store:   store,
		logs:    logs,
		sandbox: sandbox,
		client: &http.Client{
			Timeout: cfg.DispatchTimeout,
		},
		allowed: allowed,
		maxBody: cfg.MaxResponseBody,
	}, nil
}

// OnComplete installs a completion callback.
func (d *Dispatcher) OnComplete(fn CompletionFunc) {
	d.onComplete = fn
}

// Dispatch issues one concrete attempt of the definition's HTTP call.
//
// Validation failures (missing or invalid URL, disallowed target, disabled
// definition in normal mode) return an error before any network activity and
// produce no log entry. Every dispatch that reaches the network produces
// exactly one outcome: a log entry in normal mode, or the sandbox result in
// test mode. Repeated dispatches are independent; there is no deduplication.
func (d *Dispatcher) Dispatch(ctx context.Context, def *Definition, mode Mode) (*dispatchlog.Entry, error) {
	if err := d.validate(def, mode); err != nil {
		metrics.RecordDispatch(string(mode), "refused", 0)
		return nil, err
	}

	built := BuildRequest(def)
	start := time.Now()

	entry := &dispatchlog.Entry{
		ID:             uuid.New().String(),
		WebhookID:      def.ID,
		WebhookName:    def.Name,
		Timestamp:      start.UTC(),
		RequestURL:     built.URL,
		RequestMethod:  built.Method,
		RequestHeaders: built.Headers,
		RequestBody:    built.Body,
	}

	resp, err := d.send(ctx, built)
	entry.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		entry.Success = false
		entry.ResponseStatus = 0
		entry.Error = err.Error()
	} else {
		d.capture(entry, resp)
	}

	log.Info().
		Str("webhook_id", def.ID).
		Str("webhook", def.Name).
		Str("mode", string(mode)).
		Str("url", built.URL).
		Int("status", entry.ResponseStatus).
		Int64("duration_ms", entry.DurationMs).
		Bool("success", entry.Success).
		Msg("Webhook dispatched")

	outcome := "failure"
	if entry.Success {
		outcome = "success"
	}
	metrics.RecordDispatch(string(mode), outcome, time.Since(start))

	if err := d.record(ctx, def, entry, mode, start); err != nil {
		return entry, err
	}

	if d.onComplete != nil {
		d.onComplete(def, entry, mode)
	}

	return entry, nil
}

func (d *Dispatcher) validate(def *Definition, mode Mode) error {
	if strings.TrimSpace(def.URL) == "" {
		return ErrMissingURL
	}

	u, err := url.Parse(def.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, def.URL)
	}

	if len(d.allowed) > 0 {
		matched := false
		for _, g := range d.allowed {
			if g.Match(def.URL) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("%w: %s", ErrTargetNotAllowed, def.URL)
		}
	}

	if mode == ModeNormal && !def.Enabled {
		return ErrDisabled
	}

	return nil
}

func (d *Dispatcher) send(ctx context.Context, built *BuiltRequest) (*http.Response, error) {
	var body io.Reader
	if built.Body != "" {
		body = bytes.NewReader([]byte(built.Body))
	}

	req, err := http.NewRequestWithContext(ctx, built.Method, built.URL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for key, value := range built.Headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Cache-Control", "no-cache")

	return d.client.Do(req)
}

// capture reads the response into the entry. Non-2xx statuses are completed
// responses, not errors; the body and headers are preserved for inspection.
func (d *Dispatcher) capture(entry *dispatchlog.Entry, resp *http.Response) {
	defer resp.Body.Close()

	entry.ResponseStatus = resp.StatusCode
	entry.ResponseHeaders = flattenHeaders(resp.Header)

	reader := io.Reader(resp.Body)
	if d.maxBody > 0 {
		reader = io.LimitReader(resp.Body, d.maxBody)
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		entry.ResponseBody = ""
	} else {
		entry.ResponseBody = prettifyJSON(string(raw))
	}

	entry.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !entry.Success {
		entry.Error = fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
}

func (d *Dispatcher) record(ctx context.Context, def *Definition, entry *dispatchlog.Entry, mode Mode, start time.Time) error {
	if mode == ModeTest {
		d.sandbox.SetResult(entry)
		return nil
	}

	if err := d.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("recording dispatch: %w", err)
	}

	status := StatusError
	if entry.Success {
		status = StatusSuccess
	}

	if err := d.store.RecordExecution(ctx, def.ID, start, status); err != nil {
		return err
	}

	startUTC := start.UTC()
	def.LastExecutedAt = &startUTC
	def.LastExecutionStatus = status

	return nil
}

// flattenHeaders reduces multi-valued headers to a plain string map,
// keeping the first value for each key.
func flattenHeaders(h http.Header) map[string]string {
	flat := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	return flat
}

// prettifyJSON re-indents text that looks like JSON for display. Parse
// failure falls back to the raw text.
func prettifyJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return text
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return text
	}
	return buf.String()
}
