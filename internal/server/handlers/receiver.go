package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/metrics"
	"github.com/hypermarketllc/hookline/internal/realtime"
	"github.com/hypermarketllc/hookline/internal/webhooks"
)

// SecretHeader carries the caller's secret key for incoming webhook calls.
// The "key" query parameter is accepted as a fallback for callers that
// cannot set headers.
const SecretHeader = "X-Webhook-Secret"

// ReceiverHandler serves the public incoming webhook endpoint. It only
// records the call; it never triggers an outgoing dispatch.
type ReceiverHandler struct {
	store *webhooks.IncomingStore
	hub   *realtime.Hub
}

// NewReceiverHandler creates the receiver handler. hub may be nil.
func NewReceiverHandler(store *webhooks.IncomingStore, hub *realtime.Hub) *ReceiverHandler {
	return &ReceiverHandler{store: store, hub: hub}
}

// Receive handles POST /hooks/{path}.
func (h *ReceiverHandler) Receive(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")

	secret := r.Header.Get(SecretHeader)
	if secret == "" {
		secret = r.URL.Query().Get("key")
	}

	hook, err := h.store.Receive(r.Context(), path, secret)
	switch {
	case errors.Is(err, webhooks.ErrIncomingNotFound):
		metrics.RecordIncomingCall("not_found")
		NotFound(w, "Unknown endpoint")
		return
	case errors.Is(err, webhooks.ErrBadSecret):
		metrics.RecordIncomingCall("rejected")
		Forbidden(w, "Invalid secret key")
		return
	case errors.Is(err, webhooks.ErrIncomingDisabled):
		metrics.RecordIncomingCall("rejected")
		Error(w, http.StatusServiceUnavailable, "ENDPOINT_DISABLED", "Endpoint is disabled")
		return
	case err != nil:
		log.Error().Err(err).Str("path", path).Msg("Failed to record incoming call")
		InternalError(w, "Failed to record incoming call")
		return
	}

	metrics.RecordIncomingCall("accepted")
	log.Info().
		Str("incoming_id", hook.ID).
		Str("path", path).
		Msg("Incoming webhook received")

	if h.hub != nil {
		h.hub.Publish(&realtime.Event{
			Topic:  realtime.TopicIncoming,
			Action: "received",
			Data:   map[string]any{"id": hook.ID, "last_called_at": hook.LastCalledAt},
		})
	}

	JSON(w, http.StatusOK, map[string]any{"success": true, "id": hook.ID})
}
