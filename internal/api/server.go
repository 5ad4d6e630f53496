// Package api serves the panel page, its form endpoints and a small JSON
// API over the device state.
package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/netpins/netpins-panel/internal/config"
	"github.com/netpins/netpins-panel/internal/discovery"
	"github.com/netpins/netpins-panel/internal/dispatch"
	"github.com/netpins/netpins-panel/internal/forms"
	"github.com/netpins/netpins-panel/internal/logging"
	"github.com/netpins/netpins-panel/internal/metrics"
	"github.com/netpins/netpins-panel/internal/notify"
	"github.com/netpins/netpins-panel/internal/state"
)

//go:embed static
var staticFiles embed.FS

// Options holds the server's collaborators. Devices, Logs and Metrics may
// be nil.
type Options struct {
	Config     *config.Config
	Forms      *forms.Registry
	Store      *state.Store
	Dispatcher *dispatch.Dispatcher
	Hub        *notify.Hub
	Devices    *discovery.Registry
	Logs       *logging.LogBuffer
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	forms      *forms.Registry
	store      *state.Store
	dispatcher *dispatch.Dispatcher
	hub        *notify.Hub
	devices    *discovery.Registry
	logs       *logging.LogBuffer
	metrics    *metrics.Metrics
	log        zerolog.Logger

	router chi.Router
	http   *http.Server
}

// NewServer creates a new HTTP server
func NewServer(opts Options) *Server {
	s := &Server{
		config:     opts.Config,
		forms:      opts.Forms,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		hub:        opts.Hub,
		devices:    opts.Devices,
		logs:       opts.Logs,
		metrics:    opts.Metrics,
		log:        opts.Logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()
	s.http = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	// Panel
	r.Get("/", s.handleIndex)
	r.Post("/forms/{command}", s.handleForm)
	r.Post("/sys-config", s.handleSysConfig)
	r.Get("/ws", s.handleWS)

	static, _ := fs.Sub(staticFiles, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Post("/system", s.handleSystem)
		r.Get("/sys-info", s.handleSysInfo)
		r.Get("/conf/{name}", s.handleConf)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/forms", s.handleForms)
		r.Get("/history", s.handleHistory)
		r.Get("/logs", s.handleLogs)
		r.Get("/devices", s.handleDevices)
	})

	if s.metrics != nil && s.config.Server.MetricsEnabled {
		r.Handle("/metrics", s.metrics.Handler())
	}

	s.router = r
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the listen address from the config
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// Start listens and serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("Panel listening")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
