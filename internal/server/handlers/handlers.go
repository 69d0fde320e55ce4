// Package handlers contains the HTTP handler layer for the hookline API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/microcosm-cc/bluemonday"
)

// HandlerFunc is the signature shared by all API handlers.
type HandlerFunc func(http.ResponseWriter, *http.Request)

// sanitizer strips all HTML from user-supplied free text. Names and
// descriptions are rendered verbatim in the dashboard.
var sanitizer = bluemonday.StrictPolicy()

func sanitize(s string) string {
	return sanitizer.Sanitize(s)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
