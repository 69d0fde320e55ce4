package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/dispatchlog"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// LogHandlers surfaces the execution log.
type LogHandlers struct {
	logs *dispatchlog.Store
}

// NewLogHandlers creates new execution log handlers.
func NewLogHandlers(logs *dispatchlog.Store) *LogHandlers {
	return &LogHandlers{logs: logs}
}

// List handles GET /api/logs. Supports webhook_id, search, limit and offset
// query parameters; filters compose with AND.
func (h *LogHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts := dispatchlog.QueryOptions{
		WebhookID: r.URL.Query().Get("webhook_id"),
		Search:    r.URL.Query().Get("search"),
		Limit:     queryInt(r, "limit", defaultLogLimit),
		Offset:    queryInt(r, "offset", 0),
	}
	if opts.Limit > maxLogLimit {
		opts.Limit = maxLogLimit
	}

	entries, err := h.logs.Query(r.Context(), opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query execution log")
		InternalError(w, "Failed to query execution log")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// Get handles GET /api/logs/{id}.
func (h *LogHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entry, err := h.logs.Get(r.Context(), id)
	if errors.Is(err, dispatchlog.ErrNotFound) {
		NotFound(w, "Log entry not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to get log entry")
		InternalError(w, "Failed to get log entry")
		return
	}

	JSON(w, http.StatusOK, entry)
}
