package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/uistate"
	"github.com/hypermarketllc/hookline/internal/webhooks"
)

// UIStateHandlers exposes the dashboard selection and modal state. Changes
// fan out to realtime subscribers on the uistate topic.
type UIStateHandlers struct {
	state    *uistate.State
	store    *webhooks.Store
	incoming *webhooks.IncomingStore
}

// NewUIStateHandlers creates new UI state handlers.
func NewUIStateHandlers(state *uistate.State, store *webhooks.Store, incoming *webhooks.IncomingStore) *UIStateHandlers {
	return &UIStateHandlers{state: state, store: store, incoming: incoming}
}

// Get handles GET /api/ui/state.
func (h *UIStateHandlers) Get(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.state.Snapshot())
}

// UIStateRequest is the request body for PUT /api/ui/state.
type UIStateRequest struct {
	// Action is one of: open_webhook_editor, open_webhook_creator,
	// close_webhook_modal, open_incoming_editor, open_incoming_creator,
	// close_incoming_modal, select_webhook, clear_selections.
	Action string `json:"action"`

	// ID identifies the target entity for editor and selection actions.
	ID string `json:"id,omitempty"`
}

// Apply handles PUT /api/ui/state.
func (h *UIStateHandlers) Apply(w http.ResponseWriter, r *http.Request) {
	var req UIStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	switch req.Action {
	case "open_webhook_editor", "select_webhook":
		def, err := h.store.Get(r.Context(), req.ID)
		if errors.Is(err, webhooks.ErrNotFound) {
			NotFound(w, "Webhook not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("id", req.ID).Msg("Failed to load webhook for UI state")
			InternalError(w, "Failed to load webhook")
			return
		}
		if req.Action == "open_webhook_editor" {
			h.state.OpenWebhookEditor(def)
		} else {
			h.state.SelectWebhook(def)
		}

	case "open_incoming_editor":
		hook, err := h.incoming.Get(r.Context(), req.ID)
		if errors.Is(err, webhooks.ErrIncomingNotFound) {
			NotFound(w, "Incoming webhook not found")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("id", req.ID).Msg("Failed to load incoming webhook for UI state")
			InternalError(w, "Failed to load incoming webhook")
			return
		}
		h.state.OpenIncomingEditor(hook)

	case "open_webhook_creator":
		h.state.OpenWebhookCreator()
	case "close_webhook_modal":
		h.state.CloseWebhookModal()
	case "open_incoming_creator":
		h.state.OpenIncomingCreator()
	case "close_incoming_modal":
		h.state.CloseIncomingModal()
	case "clear_selections":
		h.state.ClearSelections()
	default:
		BadRequest(w, "Unknown action: "+req.Action)
		return
	}

	JSON(w, http.StatusOK, h.state.Snapshot())
}
