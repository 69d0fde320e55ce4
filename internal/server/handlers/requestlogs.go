package handlers

import (
	"net/http"
	"time"

	"github.com/hypermarketllc/hookline/internal/server/requestlog"
)

// RequestLogHandlers surfaces the in-memory HTTP request log.
type RequestLogHandlers struct {
	store *requestlog.Store
}

// NewRequestLogHandlers creates new request log handlers.
func NewRequestLogHandlers(store *requestlog.Store) *RequestLogHandlers {
	return &RequestLogHandlers{store: store}
}

// List handles GET /api/requestlog.
func (h *RequestLogHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts := requestlog.FilterOptions{
		Method:    r.URL.Query().Get("method"),
		Path:      r.URL.Query().Get("path"),
		UserID:    r.URL.Query().Get("user_id"),
		Status:    queryInt(r, "status", 0),
		MinStatus: queryInt(r, "min_status", 0),
		MaxStatus: queryInt(r, "max_status", 0),
		Limit:     queryInt(r, "limit", 100),
		Offset:    queryInt(r, "offset", 0),
	}

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			BadRequest(w, "Invalid since timestamp, want RFC3339")
			return
		}
		opts.Since = t
	}
	if until := r.URL.Query().Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			BadRequest(w, "Invalid until timestamp, want RFC3339")
			return
		}
		opts.Until = t
	}

	JSON(w, http.StatusOK, h.store.List(opts))
}

// Stats handles GET /api/requestlog/stats.
func (h *RequestLogHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.store.Stats())
}
