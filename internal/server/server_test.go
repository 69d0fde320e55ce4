package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hypermarketllc/hookline/internal/config"
	"github.com/hypermarketllc/hookline/internal/database"
	"github.com/hypermarketllc/hookline/internal/dispatchlog"
	"github.com/hypermarketllc/hookline/internal/webhooks"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Auth.JWT.Secret = "test-secret-key-for-server-tests"
	cfg.Realtime.Enabled = false
	cfg.Metrics.Enabled = false

	db, err := database.Open(&cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv, err := New(cfg, db)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		if srv.receiverRL != nil {
			srv.receiverRL.Stop()
		}
	})

	return srv, ts
}

// apiToken registers a user and returns a bearer token for the guarded
// API routes. Each test server has its own database, so the fixed email
// never collides.
func apiToken(t *testing.T, ts *httptest.Server) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]any{
		"email":    "ops@example.com",
		"password": "long-enough-pw",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var registered struct {
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	decodeInto(t, resp, &registered)
	require.NotEmpty(t, registered.Tokens.AccessToken)
	return registered.Tokens.AccessToken
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func createTestWebhook(t *testing.T, ts *httptest.Server, token string, body map[string]any) webhooks.Definition {
	t.Helper()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/webhooks", token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var def webhooks.Definition
	decodeInto(t, resp, &def)
	return def
}

func TestAPI_Health(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status     string         `json:"status"`
		Components map[string]any `json:"components"`
	}
	decodeInto(t, resp, &health)
	require.Equal(t, "healthy", health.Status)
	require.Contains(t, health.Components, "database")
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	_, ts := testServer(t)

	guarded := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/webhooks"},
		{http.MethodPost, "/api/webhooks"},
		{http.MethodGet, "/api/logs"},
		{http.MethodGet, "/api/incoming"},
		{http.MethodPut, "/api/ui/state"},
		{http.MethodGet, "/api/requestlog"},
		{http.MethodPut, "/api/webhooks/test-mode"},
	}

	for _, route := range guarded {
		resp := doJSON(t, route.method, ts.URL+route.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
		resp.Body.Close()
	}

	// A garbage token is rejected too.
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/webhooks", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The receiver stays public; a bad path 404s rather than 401s.
	resp = doJSON(t, http.MethodPost, ts.URL+"/hooks/nothing-here", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_WebhookCRUD(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	def := createTestWebhook(t, ts, token, map[string]any{
		"name":    "Deploy hook",
		"url":     "https://example.com/deploy",
		"method":  "POST",
		"enabled": true,
		"headers": []map[string]any{{"key": "X-Token", "value": "abc", "enabled": true}},
	})
	require.NotEmpty(t, def.ID)
	require.Equal(t, "Deploy hook", def.Name)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/webhooks/"+def.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got webhooks.Definition
	decodeInto(t, resp, &got)
	require.Equal(t, def.ID, got.ID)
	require.Len(t, got.Headers, 1)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/webhooks", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Webhooks []webhooks.Definition `json:"webhooks"`
		Count    int                   `json:"count"`
	}
	decodeInto(t, resp, &list)
	require.Equal(t, 1, list.Count)

	// PUT replaces the whole definition; the headers are dropped.
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/webhooks/"+def.ID, token, map[string]any{
		"name":    "Renamed hook",
		"url":     "https://example.com/other",
		"method":  "GET",
		"enabled": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated webhooks.Definition
	decodeInto(t, resp, &updated)
	require.Equal(t, "Renamed hook", updated.Name)
	require.Equal(t, "GET", updated.Method)
	require.Empty(t, updated.Headers)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/webhooks/"+def.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/webhooks/"+def.ID, token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_WebhookMutationsNotifyListeners(t *testing.T) {
	srv, ts := testServer(t)
	token := apiToken(t, ts)

	var calls int
	srv.OnWebhooksChanged(func() { calls++ })

	def := createTestWebhook(t, ts, token, map[string]any{
		"name": "Scheduled",
		"url":  "https://example.com",
		"schedule": map[string]any{
			"type":             "interval",
			"interval_minutes": 5,
		},
		"enabled": true,
	})

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/webhooks/"+def.ID, token, map[string]any{
		"name":    "Scheduled",
		"url":     "https://example.com",
		"enabled": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/webhooks/"+def.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Equal(t, 3, calls)
}

func TestAPI_WebhookValidation(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/webhooks", token, map[string]any{
		"url": "https://example.com",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/webhooks", token, map[string]any{
		"name":   "bad method",
		"url":    "https://example.com",
		"method": "TRACE",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_WebhookSanitizesFreeText(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	def := createTestWebhook(t, ts, token, map[string]any{
		"name":        "<b>Deploy</b> hook",
		"description": "calls <i>the</i> pipeline",
		"url":         "https://example.com",
		"enabled":     true,
	})

	require.Equal(t, "Deploy hook", def.Name)
	require.Equal(t, "calls the pipeline", def.Description)
}

func TestAPI_DispatchWritesLog(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer target.Close()

	def := createTestWebhook(t, ts, token, map[string]any{
		"name":    "Target",
		"url":     target.URL,
		"method":  "POST",
		"enabled": true,
	})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/webhooks/"+def.ID+"/dispatch", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entry dispatchlog.Entry
	decodeInto(t, resp, &entry)
	require.True(t, entry.Success)
	require.Equal(t, http.StatusOK, entry.ResponseStatus)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/logs?webhook_id="+def.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logList struct {
		Entries []dispatchlog.Entry `json:"entries"`
		Count   int                 `json:"count"`
	}
	decodeInto(t, resp, &logList)
	require.Equal(t, 1, logList.Count)
	require.Equal(t, entry.ID, logList.Entries[0].ID)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/logs/"+entry.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The definition caches the latest normal-mode outcome.
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/webhooks/"+def.ID, token, nil)
	var after webhooks.Definition
	decodeInto(t, resp, &after)
	require.Equal(t, webhooks.StatusSuccess, after.LastExecutionStatus)
	require.NotNil(t, after.LastExecutedAt)
}

func TestAPI_DispatchRefreshesSelectedWebhook(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	def := createTestWebhook(t, ts, token, map[string]any{
		"name":    "Selected target",
		"url":     target.URL,
		"enabled": true,
	})

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/ui/state", token, map[string]any{
		"action": "select_webhook",
		"id":     def.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/webhooks/"+def.ID+"/dispatch", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The selection reflects the outcome without a re-select.
	var snap struct {
		SelectedWebhook *webhooks.Definition `json:"selected_webhook"`
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/ui/state", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &snap)
	require.NotNil(t, snap.SelectedWebhook)
	require.Equal(t, webhooks.StatusSuccess, snap.SelectedWebhook.LastExecutionStatus)
	require.NotNil(t, snap.SelectedWebhook.LastExecutedAt)
}

func TestAPI_DispatchDisabledRefused(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	def := createTestWebhook(t, ts, token, map[string]any{
		"name":    "Disabled",
		"url":     "https://example.com",
		"enabled": false,
	})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/webhooks/"+def.ID+"/dispatch", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_TestModeSandbox(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer target.Close()

	// A disabled definition can still be test-dispatched.
	def := createTestWebhook(t, ts, token, map[string]any{
		"name":    "Sandboxed",
		"url":     target.URL,
		"enabled": false,
	})

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/webhooks/test-mode", token, map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/webhooks/"+def.ID+"/test", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entry dispatchlog.Entry
	decodeInto(t, resp, &entry)
	require.False(t, entry.Success)
	require.Equal(t, http.StatusTeapot, entry.ResponseStatus)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/webhooks/test-result", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result dispatchlog.Entry
	decodeInto(t, resp, &result)
	require.Equal(t, entry.ID, result.ID)

	// Nothing reached the execution log or the status cache.
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/logs", token, nil)
	var logList struct {
		Count int `json:"count"`
	}
	decodeInto(t, resp, &logList)
	require.Zero(t, logList.Count)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/webhooks/"+def.ID, token, nil)
	var after webhooks.Definition
	decodeInto(t, resp, &after)
	require.Nil(t, after.LastExecutedAt)
	require.Empty(t, after.LastExecutionStatus)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/webhooks/test-result", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/webhooks/test-result", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_IncomingReceiver(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/incoming", token, map[string]any{
		"name":          "CI notifications",
		"endpoint_path": "ci-done",
		"enabled":       true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var hook webhooks.IncomingWebhook
	decodeInto(t, resp, &hook)
	require.NotEmpty(t, hook.SecretKey)

	// Duplicate path is a conflict.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/incoming", token, map[string]any{
		"name":          "Dup",
		"endpoint_path": "ci-done",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The receiver itself needs only the endpoint secret.
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/hooks/ci-done", nil)
	require.NoError(t, err)
	req.Header.Set("X-Webhook-Secret", hook.SecretKey)
	got, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, got.StatusCode)
	got.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/incoming/"+hook.ID, token, nil)
	var after webhooks.IncomingWebhook
	decodeInto(t, resp, &after)
	require.NotNil(t, after.LastCalledAt)

	resp = doJSON(t, http.MethodPost, ts.URL+"/hooks/ci-done?key=wrong", "", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/hooks/no-such-path", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Disable the endpoint; calls now fail with 503.
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/incoming/"+hook.ID, token, map[string]any{
		"name":          after.Name,
		"endpoint_path": after.EndpointPath,
		"secret_key":    after.SecretKey,
		"enabled":       false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/hooks/ci-done?key="+hook.SecretKey, "", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_AuthFlow(t *testing.T) {
	_, ts := testServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/register", "", map[string]any{
		"email":    "admin@example.com",
		"password": "long-enough-pw",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var registered struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
		Tokens struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"tokens"`
	}
	decodeInto(t, resp, &registered)
	require.Equal(t, "admin", registered.User.Role)
	require.NotEmpty(t, registered.Tokens.AccessToken)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", registered.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/refresh", "", map[string]any{
		"refresh_token": registered.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The refresh token was rotated; replaying it fails.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/refresh", "", map[string]any{
		"refresh_token": registered.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_UIState(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	def := createTestWebhook(t, ts, token, map[string]any{
		"name":    "Selectable",
		"url":     "https://example.com",
		"enabled": true,
	})

	var snap struct {
		SelectedWebhook  *webhooks.Definition `json:"selected_webhook"`
		WebhookModalOpen bool                 `json:"webhook_modal_open"`
	}

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/ui/state", token, map[string]any{"action": "open_webhook_creator"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &snap)
	require.True(t, snap.WebhookModalOpen)
	require.Nil(t, snap.SelectedWebhook)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/ui/state", token, map[string]any{
		"action": "open_webhook_editor",
		"id":     def.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &snap)
	require.True(t, snap.WebhookModalOpen)
	require.NotNil(t, snap.SelectedWebhook)
	require.Equal(t, def.ID, snap.SelectedWebhook.ID)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/ui/state", token, map[string]any{"action": "close_webhook_modal"})
	decodeInto(t, resp, &snap)
	require.False(t, snap.WebhookModalOpen)
	require.Nil(t, snap.SelectedWebhook)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/ui/state", token, map[string]any{"action": "levitate"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_RequestLog(t *testing.T) {
	_, ts := testServer(t)
	token := apiToken(t, ts)

	for range 3 {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/webhooks", token, nil)
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/requestlog?path=/api/webhooks", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Total int `json:"total"`
	}
	decodeInto(t, resp, &result)
	require.Equal(t, 3, result.Total)
}
