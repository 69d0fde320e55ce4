// Package server wires the hookline HTTP API together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hypermarketllc/hookline/internal/auth"
	"github.com/hypermarketllc/hookline/internal/config"
	"github.com/hypermarketllc/hookline/internal/database"
	"github.com/hypermarketllc/hookline/internal/dispatchlog"
	"github.com/hypermarketllc/hookline/internal/metrics"
	"github.com/hypermarketllc/hookline/internal/realtime"
	"github.com/hypermarketllc/hookline/internal/server/requestlog"
	"github.com/hypermarketllc/hookline/internal/uistate"
	"github.com/hypermarketllc/hookline/internal/webhooks"
)

const defaultRequestLogCapacity = 1000

type Server struct {
	cfg     *config.Config
	db      *database.DB
	version string

	store    *webhooks.Store
	incoming *webhooks.IncomingStore
	logs     *dispatchlog.Store
	sandbox  *webhooks.Sandbox

	dispatcher *webhooks.Dispatcher
	authSvc    *auth.Service
	uiState    *uistate.State
	hub        *realtime.Hub

	requestLogs *requestlog.Store
	receiverRL  *RateLimiter

	router       *Router
	httpServer   *http.Server
	stopUIRelay  func()
	stopDBSample chan struct{}

	onWebhooksChanged []func()
}

// OnWebhooksChanged registers fn to run after any webhook create, update,
// or delete, e.g. to re-sync the scheduler. Register before Start.
func (s *Server) OnWebhooksChanged(fn func()) {
	s.onWebhooksChanged = append(s.onWebhooksChanged, fn)
}

func (s *Server) notifyWebhooksChanged() {
	for _, fn := range s.onWebhooksChanged {
		fn()
	}
}

type Option func(*Server)

// WithVersion sets the version string reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

func New(cfg *config.Config, db *database.DB, opts ...Option) (*Server, error) {
	capacity := cfg.Server.RequestLogCapacity
	if capacity <= 0 {
		capacity = defaultRequestLogCapacity
	}

	srv := &Server{
		cfg:         cfg,
		db:          db,
		version:     "dev",
		store:       webhooks.NewStore(db),
		incoming:    webhooks.NewIncomingStore(db),
		logs:        dispatchlog.NewStore(db, cfg.Logs.MaxEntries),
		sandbox:     webhooks.NewSandbox(),
		authSvc:     auth.NewService(db, &cfg.Auth),
		uiState:     uistate.New(),
		requestLogs: requestlog.NewStore(capacity),
	}

	for _, opt := range opts {
		opt(srv)
	}

	dispatcher, err := webhooks.NewDispatcher(srv.store, srv.logs, srv.sandbox, &cfg.Webhooks)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	srv.dispatcher = dispatcher

	if cfg.Realtime.Enabled {
		srv.hub = realtime.NewHub(&cfg.Realtime)
	}

	srv.dispatcher.OnComplete(func(def *webhooks.Definition, entry *dispatchlog.Entry, mode webhooks.Mode) {
		if mode == webhooks.ModeNormal {
			srv.uiState.RefreshWebhook(def)
		}
		if srv.hub != nil {
			srv.hub.Publish(&realtime.Event{
				Topic:  realtime.TopicDispatches,
				Action: string(mode),
				Data:   entry,
			})
		}
	})

	if cfg.Receiver.RateLimit.Enabled {
		srv.receiverRL = NewRateLimiter(cfg.Receiver.RateLimit)
	}

	srv.router = NewRouter(srv)
	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv, nil
}

func (s *Server) Start(ctx context.Context) error {
	log.Info().
		Str("addr", s.cfg.Server.Address()).
		Msg("Starting server")

	if s.hub != nil {
		s.startUIRelay()
	}

	if s.cfg.Metrics.Enabled {
		s.startDBSampler()
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// startUIRelay forwards UI state changes to realtime subscribers.
func (s *Server) startUIRelay() {
	snapshots, unsubscribe := s.uiState.Subscribe()
	s.stopUIRelay = unsubscribe

	go func() {
		for snap := range snapshots {
			s.hub.Publish(&realtime.Event{
				Topic:  realtime.TopicUIState,
				Action: "changed",
				Data:   snap,
			})
		}
	}()
}

// startDBSampler periodically exports connection pool stats.
func (s *Server) startDBSampler() {
	s.stopDBSample = make(chan struct{})

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := s.db.Stats()
				metrics.UpdateDBStats(stats.OpenConnections, stats.InUse, stats.Idle)
			case <-s.stopDBSample:
				return
			}
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")

	if s.stopUIRelay != nil {
		s.stopUIRelay()
	}

	if s.hub != nil {
		s.hub.Shutdown()
		log.Info().Msg("Realtime hub stopped")
	}

	if s.stopDBSample != nil {
		close(s.stopDBSample)
	}

	if s.receiverRL != nil {
		s.receiverRL.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) DB() *database.DB {
	return s.db
}

func (s *Server) Config() *config.Config {
	return s.cfg
}

func (s *Server) Store() *webhooks.Store {
	return s.store
}

func (s *Server) IncomingStore() *webhooks.IncomingStore {
	return s.incoming
}

func (s *Server) Logs() *dispatchlog.Store {
	return s.logs
}

func (s *Server) Sandbox() *webhooks.Sandbox {
	return s.sandbox
}

func (s *Server) Dispatcher() *webhooks.Dispatcher {
	return s.dispatcher
}

func (s *Server) Auth() *auth.Service {
	return s.authSvc
}

func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

func (s *Server) UIState() *uistate.State {
	return s.uiState
}

func (s *Server) RequestLogs() *requestlog.Store {
	return s.requestLogs
}
