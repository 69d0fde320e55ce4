package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/realtime"
	"github.com/hypermarketllc/hookline/internal/webhooks"
)

// IncomingHandlers handles incoming webhook endpoint CRUD operations.
type IncomingHandlers struct {
	store *webhooks.IncomingStore
	hub   *realtime.Hub
}

// NewIncomingHandlers creates new incoming webhook handlers. hub may be nil.
func NewIncomingHandlers(store *webhooks.IncomingStore, hub *realtime.Hub) *IncomingHandlers {
	return &IncomingHandlers{store: store, hub: hub}
}

// IncomingRequest is the request body for creating or replacing an incoming
// endpoint. An empty secret key on creation is generated server-side.
type IncomingRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	EndpointPath string `json:"endpoint_path"`
	SecretKey    string `json:"secret_key"`
	Enabled      bool   `json:"enabled"`
}

func (req *IncomingRequest) validate() string {
	if strings.TrimSpace(req.Name) == "" {
		return "Name is required"
	}
	path := strings.TrimSpace(req.EndpointPath)
	if path == "" {
		return "Endpoint path is required"
	}
	if strings.ContainsAny(path, "/?#") {
		return "Endpoint path must be a single path segment"
	}
	return ""
}

func (h *IncomingHandlers) publish(action string, data any) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(&realtime.Event{Topic: realtime.TopicIncoming, Action: action, Data: data})
}

// List handles GET /api/incoming.
func (h *IncomingHandlers) List(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list incoming webhooks")
		InternalError(w, "Failed to list incoming webhooks")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"incoming_webhooks": hooks,
		"count":             len(hooks),
	})
}

// Get handles GET /api/incoming/{id}.
func (h *IncomingHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	hook, err := h.store.Get(r.Context(), id)
	if errors.Is(err, webhooks.ErrIncomingNotFound) {
		NotFound(w, "Incoming webhook not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to get incoming webhook")
		InternalError(w, "Failed to get incoming webhook")
		return
	}

	JSON(w, http.StatusOK, hook)
}

// Create handles POST /api/incoming.
func (h *IncomingHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req IncomingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	if msg := req.validate(); msg != "" {
		BadRequest(w, msg)
		return
	}

	hook := &webhooks.IncomingWebhook{
		Name:         sanitize(req.Name),
		Description:  sanitize(req.Description),
		EndpointPath: strings.TrimSpace(req.EndpointPath),
		SecretKey:    req.SecretKey,
		Enabled:      req.Enabled,
	}

	if err := h.store.Create(r.Context(), hook); err != nil {
		if isUniqueViolation(err) {
			Error(w, http.StatusConflict, "PATH_TAKEN", "Endpoint path is already in use")
			return
		}
		log.Error().Err(err).Msg("Failed to create incoming webhook")
		InternalError(w, "Failed to create incoming webhook")
		return
	}

	h.publish("created", hook)
	JSON(w, http.StatusCreated, hook)
}

// Update handles PUT /api/incoming/{id}.
func (h *IncomingHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req IncomingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	if msg := req.validate(); msg != "" {
		BadRequest(w, msg)
		return
	}

	hook := &webhooks.IncomingWebhook{
		ID:           id,
		Name:         sanitize(req.Name),
		Description:  sanitize(req.Description),
		EndpointPath: strings.TrimSpace(req.EndpointPath),
		SecretKey:    req.SecretKey,
		Enabled:      req.Enabled,
	}

	if err := h.store.Update(r.Context(), hook); err != nil {
		if errors.Is(err, webhooks.ErrIncomingNotFound) {
			NotFound(w, "Incoming webhook not found")
			return
		}
		if isUniqueViolation(err) {
			Error(w, http.StatusConflict, "PATH_TAKEN", "Endpoint path is already in use")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to update incoming webhook")
		InternalError(w, "Failed to update incoming webhook")
		return
	}

	updated, err := h.store.Get(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to reload incoming webhook after update")
		InternalError(w, "Failed to update incoming webhook")
		return
	}

	h.publish("updated", updated)
	JSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/incoming/{id}.
func (h *IncomingHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, webhooks.ErrIncomingNotFound) {
			NotFound(w, "Incoming webhook not found")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to delete incoming webhook")
		InternalError(w, "Failed to delete incoming webhook")
		return
	}

	h.publish("deleted", map[string]string{"id": id})
	JSON(w, http.StatusOK, map[string]any{"success": true})
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// failure. modernc.org/sqlite does not export a typed error for this.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
