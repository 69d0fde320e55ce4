package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/realtime"
	"github.com/hypermarketllc/hookline/internal/webhooks"
)

// WebhookHandlers handles webhook definition CRUD and dispatch operations.
type WebhookHandlers struct {
	store      *webhooks.Store
	dispatcher *webhooks.Dispatcher
	sandbox    *webhooks.Sandbox
	hub        *realtime.Hub
	changed    func()
}

// NewWebhookHandlers creates new webhook handlers. hub may be nil when the
// realtime hub is disabled; changed, when non-nil, runs after every create,
// update, or delete so dependents like the scheduler can re-sync.
func NewWebhookHandlers(store *webhooks.Store, dispatcher *webhooks.Dispatcher, sandbox *webhooks.Sandbox, hub *realtime.Hub, changed func()) *WebhookHandlers {
	return &WebhookHandlers{store: store, dispatcher: dispatcher, sandbox: sandbox, hub: hub, changed: changed}
}

func (h *WebhookHandlers) notifyChanged() {
	if h.changed != nil {
		h.changed()
	}
}

// WebhookRequest is the request body for creating or replacing a webhook
// definition. Execution status fields are not settable through the API.
type WebhookRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	URL         string              `json:"url"`
	Method      string              `json:"method"`
	Headers     []webhooks.KeyValue `json:"headers"`
	Params      []webhooks.KeyValue `json:"params"`
	Body        *webhooks.BodySpec  `json:"body,omitempty"`
	Enabled     bool                `json:"enabled"`
	Tags        []webhooks.Tag      `json:"tags"`
	Schedule    *webhooks.Schedule  `json:"schedule,omitempty"`
}

func (req *WebhookRequest) validate() string {
	if strings.TrimSpace(req.Name) == "" {
		return "Name is required"
	}
	if strings.TrimSpace(req.URL) == "" {
		return "URL is required"
	}
	if req.Method == "" {
		req.Method = webhooks.MethodPost
	}
	if !webhooks.ValidMethod(req.Method) {
		return "Method must be one of GET, POST, PUT, PATCH, DELETE"
	}
	return ""
}

func (req *WebhookRequest) toDefinition(id string) *webhooks.Definition {
	return &webhooks.Definition{
		ID:          id,
		Name:        sanitize(req.Name),
		Description: sanitize(req.Description),
		URL:         req.URL,
		Method:      req.Method,
		Headers:     req.Headers,
		Params:      req.Params,
		Body:        req.Body,
		Enabled:     req.Enabled,
		Tags:        req.Tags,
		Schedule:    req.Schedule,
	}
}

func (h *WebhookHandlers) publish(action string, data any) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(&realtime.Event{Topic: realtime.TopicWebhooks, Action: action, Data: data})
}

// List handles GET /api/webhooks.
func (h *WebhookHandlers) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.store.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list webhooks")
		InternalError(w, "Failed to list webhooks")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"webhooks": defs,
		"count":    len(defs),
	})
}

// Get handles GET /api/webhooks/{id}.
func (h *WebhookHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	def, err := h.store.Get(r.Context(), id)
	if errors.Is(err, webhooks.ErrNotFound) {
		NotFound(w, "Webhook not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to get webhook")
		InternalError(w, "Failed to get webhook")
		return
	}

	JSON(w, http.StatusOK, def)
}

// Create handles POST /api/webhooks.
func (h *WebhookHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	if msg := req.validate(); msg != "" {
		BadRequest(w, msg)
		return
	}

	def := req.toDefinition(uuid.New().String())
	if err := h.store.Create(r.Context(), def); err != nil {
		log.Error().Err(err).Msg("Failed to create webhook")
		InternalError(w, "Failed to create webhook")
		return
	}

	h.publish("created", def)
	h.notifyChanged()
	JSON(w, http.StatusCreated, def)
}

// Update handles PUT /api/webhooks/{id}. The stored definition is replaced
// wholesale; omitted optional fields are cleared.
func (h *WebhookHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	if msg := req.validate(); msg != "" {
		BadRequest(w, msg)
		return
	}

	if err := h.store.Update(r.Context(), req.toDefinition(id)); err != nil {
		if errors.Is(err, webhooks.ErrNotFound) {
			NotFound(w, "Webhook not found")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to update webhook")
		InternalError(w, "Failed to update webhook")
		return
	}

	def, err := h.store.Get(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to reload webhook after update")
		InternalError(w, "Failed to update webhook")
		return
	}

	h.publish("updated", def)
	h.notifyChanged()
	JSON(w, http.StatusOK, def)
}

// Delete handles DELETE /api/webhooks/{id}. Execution log entries for the
// webhook are removed with it.
func (h *WebhookHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, webhooks.ErrNotFound) {
			NotFound(w, "Webhook not found")
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to delete webhook")
		InternalError(w, "Failed to delete webhook")
		return
	}

	h.publish("deleted", map[string]string{"id": id})
	h.notifyChanged()
	JSON(w, http.StatusOK, map[string]any{"success": true})
}

// Dispatch handles POST /api/webhooks/{id}/dispatch.
func (h *WebhookHandlers) Dispatch(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, webhooks.ModeNormal)
}

// Test handles POST /api/webhooks/{id}/test. The outcome lands in the
// sandbox result slot instead of the execution log.
func (h *WebhookHandlers) Test(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, webhooks.ModeTest)
}

func (h *WebhookHandlers) dispatch(w http.ResponseWriter, r *http.Request, mode webhooks.Mode) {
	id := r.PathValue("id")

	def, err := h.store.Get(r.Context(), id)
	if errors.Is(err, webhooks.ErrNotFound) {
		NotFound(w, "Webhook not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to load webhook for dispatch")
		InternalError(w, "Failed to load webhook")
		return
	}

	entry, err := h.dispatcher.Dispatch(r.Context(), def, mode)
	if err != nil {
		if entry == nil {
			// Refused before any network activity.
			Error(w, http.StatusUnprocessableEntity, "DISPATCH_REFUSED", err.Error())
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to record dispatch outcome")
		InternalError(w, "Dispatch completed but recording the outcome failed")
		return
	}

	JSON(w, http.StatusOK, entry)
}

// TestModeRequest is the request body for PUT /api/webhooks/test-mode.
type TestModeRequest struct {
	Enabled bool `json:"enabled"`
}

// TestMode handles PUT /api/webhooks/test-mode, entering or leaving the
// sandbox. Entering clears any stale result from a previous session.
func (h *WebhookHandlers) TestMode(w http.ResponseWriter, r *http.Request) {
	var req TestModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid JSON body: "+err.Error())
		return
	}

	if req.Enabled {
		h.sandbox.Enter()
	} else {
		h.sandbox.Exit()
	}

	JSON(w, http.StatusOK, map[string]any{"testing": h.sandbox.Testing()})
}

// TestResult handles GET /api/webhooks/test-result.
func (h *WebhookHandlers) TestResult(w http.ResponseWriter, r *http.Request) {
	entry := h.sandbox.Result()
	if entry == nil {
		NotFound(w, "No test result available")
		return
	}
	JSON(w, http.StatusOK, entry)
}

// ClearTestResult handles DELETE /api/webhooks/test-result.
func (h *WebhookHandlers) ClearTestResult(w http.ResponseWriter, r *http.Request) {
	h.sandbox.Clear()
	JSON(w, http.StatusOK, map[string]any{"success": true})
}
