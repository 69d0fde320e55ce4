package server

import (
	"net/http"

	"github.com/hypermarketllc/hookline/internal/auth"
	"github.com/hypermarketllc/hookline/internal/metrics"
	"github.com/hypermarketllc/hookline/internal/server/handlers"
	"github.com/hypermarketllc/hookline/internal/server/requestlog"
)

type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
	requireAuth Middleware
}

type Middleware func(http.Handler) http.Handler

func NewRouter(srv *Server) *Router {
	r := &Router{
		server:      srv,
		mux:         http.NewServeMux(),
		requireAuth: auth.RequireAuth(srv.Auth().JWT()),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(requestlog.Middleware(r.server.RequestLogs()))

	if r.server.cfg.Metrics.Enabled {
		r.Use(MetricsMiddleware)
	}

	if r.server.cfg.Server.CORS.Enabled {
		r.Use(CORSMiddleware(r.server.cfg.Server.CORS))
	}

	if r.server.cfg.Server.MaxBodySize > 0 {
		r.Use(MaxBodySizeMiddleware(r.server.cfg.Server.MaxBodySize))
	}
}

func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() {
	srv := r.server

	health := handlers.NewHealthHandlers(srv.DB(), srv.Hub(), srv.version)
	r.mux.HandleFunc("GET /health", health.Health)
	r.mux.HandleFunc("GET /{$}", health.Health)

	authHandlers := handlers.NewAuthHandlers(srv.Auth())
	r.mux.HandleFunc("POST /api/auth/register", authHandlers.Register)
	r.mux.HandleFunc("POST /api/auth/login", authHandlers.Login)
	r.mux.HandleFunc("POST /api/auth/refresh", authHandlers.Refresh)
	r.mux.HandleFunc("POST /api/auth/logout", authHandlers.Logout)
	r.mux.HandleFunc("GET /api/auth/me", r.guarded(authHandlers.Me))

	wh := handlers.NewWebhookHandlers(srv.Store(), srv.Dispatcher(), srv.Sandbox(), srv.Hub(), srv.notifyWebhooksChanged)
	r.mux.HandleFunc("GET /api/webhooks", r.guarded(wh.List))
	r.mux.HandleFunc("POST /api/webhooks", r.guarded(wh.Create))
	r.mux.HandleFunc("PUT /api/webhooks/test-mode", r.guarded(wh.TestMode))
	r.mux.HandleFunc("GET /api/webhooks/test-result", r.guarded(wh.TestResult))
	r.mux.HandleFunc("DELETE /api/webhooks/test-result", r.guarded(wh.ClearTestResult))
	r.mux.HandleFunc("GET /api/webhooks/{id}", r.guarded(wh.Get))
	r.mux.HandleFunc("PUT /api/webhooks/{id}", r.guarded(wh.Update))
	r.mux.HandleFunc("DELETE /api/webhooks/{id}", r.guarded(wh.Delete))
	r.mux.HandleFunc("POST /api/webhooks/{id}/dispatch", r.guarded(wh.Dispatch))
	r.mux.HandleFunc("POST /api/webhooks/{id}/test", r.guarded(wh.Test))

	logs := handlers.NewLogHandlers(srv.Logs())
	r.mux.HandleFunc("GET /api/logs", r.guarded(logs.List))
	r.mux.HandleFunc("GET /api/logs/{id}", r.guarded(logs.Get))

	incoming := handlers.NewIncomingHandlers(srv.IncomingStore(), srv.Hub())
	r.mux.HandleFunc("GET /api/incoming", r.guarded(incoming.List))
	r.mux.HandleFunc("POST /api/incoming", r.guarded(incoming.Create))
	r.mux.HandleFunc("GET /api/incoming/{id}", r.guarded(incoming.Get))
	r.mux.HandleFunc("PUT /api/incoming/{id}", r.guarded(incoming.Update))
	r.mux.HandleFunc("DELETE /api/incoming/{id}", r.guarded(incoming.Delete))

	receiver := handlers.NewReceiverHandler(srv.IncomingStore(), srv.Hub())
	receive := http.HandlerFunc(receiver.Receive)
	if srv.receiverRL != nil {
		r.mux.Handle("POST /hooks/{path}", srv.receiverRL.Middleware(receive))
	} else {
		r.mux.Handle("POST /hooks/{path}", receive)
	}

	ui := handlers.NewUIStateHandlers(srv.UIState(), srv.Store(), srv.IncomingStore())
	r.mux.HandleFunc("GET /api/ui/state", r.guarded(ui.Get))
	r.mux.HandleFunc("PUT /api/ui/state", r.guarded(ui.Apply))

	reqlogs := handlers.NewRequestLogHandlers(srv.RequestLogs())
	r.mux.HandleFunc("GET /api/requestlog", r.guarded(reqlogs.List))
	r.mux.HandleFunc("GET /api/requestlog/stats", r.guarded(reqlogs.Stats))

	if srv.Hub() != nil {
		r.mux.Handle("GET /api/realtime", srv.Hub())
	}

	if srv.cfg.Metrics.Enabled {
		r.mux.Handle("GET /metrics", metrics.Handler())
	}
}

// guarded wraps a handler with bearer-token authentication. Everything
// under /api except the auth endpoints goes through it; /hooks/{path},
// /health, /metrics, and the websocket upgrade stay public.
func (r *Router) guarded(fn handlers.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(http.HandlerFunc(fn)).ServeHTTP
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	handler.ServeHTTP(w, req)
}
