/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/djblaster/internal/ads"
	"github.com/friendsincode/djblaster/internal/adserver"
	"github.com/friendsincode/djblaster/internal/api"
	"github.com/friendsincode/djblaster/internal/clock"
	"github.com/friendsincode/djblaster/internal/config"
	"github.com/friendsincode/djblaster/internal/debugtime"
	"github.com/friendsincode/djblaster/internal/events"
	"github.com/friendsincode/djblaster/internal/readit"
	"github.com/friendsincode/djblaster/internal/scheduler"
	"github.com/friendsincode/djblaster/internal/telemetry"
)

// AdServer is everything the booth needs from the ad server.
type AdServer interface {
	ads.FeedTransport
	readit.Submitter
}

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server

	bus       *events.Bus
	clock     clock.TimeSource
	scheduler *scheduler.Service
	feeds     []*ads.Coordinator
	workflow  *readit.Workflow
	debug     *debugtime.Controller
	api       *api.API
}

// Option customizes server assembly.
type Option func(*options)

type options struct {
	adServer AdServer
}

// WithAdServer replaces the HTTP ad-server client.
func WithAdServer(a AdServer) Option {
	return func(o *options) { o.adServer = a }
}

// New assembles the booth client from cfg and starts the scheduler.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("djblaster-api"))
	router.Use(telemetry.MetricsMiddleware)
	// WebSocket upgrades are long-lived and skip the request timeout.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(30 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(o); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	if err := srv.startBackgroundWorkers(); err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the event stream; the middleware timeout covers the rest.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")
		w.Header().Set("Cache-Control", "no-store")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			event := logger.Debug()
			if ww.Status() >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func (s *Server) initDependencies(o options) error {
	var sim *clock.Simulated
	if s.cfg.SimulatedTime {
		sim = clock.NewSimulated(s.cfg.SimulatedStart)
		s.clock = sim
		s.logger.Warn().Time("start", s.cfg.SimulatedStart).Msg("simulated time enabled, debug controls exposed")
	} else {
		s.clock = clock.NewLive(s.cfg.Location)
	}

	adServer := o.adServer
	if adServer == nil {
		client, err := adserver.NewClient(s.cfg.AdServerURL, s.cfg.RequestTimeout, s.logger)
		if err != nil {
			return fmt.Errorf("ad server client: %w", err)
		}
		adServer = client
	}

	s.scheduler = scheduler.New(s.clock, s.cfg.PollInterval, s.logger)

	window := ads.Window{StartHour: s.cfg.EventStartHour, EndHour: s.cfg.EventEndHour}
	readFeeds := make(map[ads.AdType]readit.Feed, len(ads.AllTypes))
	apiFeeds := make([]api.Feed, 0, len(ads.AllTypes))
	for _, adType := range ads.AllTypes {
		feed, err := ads.NewCoordinator(adType, adServer, s.clock, s.logger, ads.Options{
			Window:       &window,
			DiscardStale: s.cfg.DiscardStaleResponses,
			Bus:          s.bus,
		})
		if err != nil {
			return fmt.Errorf("%s feed: %w", adType, err)
		}
		s.feeds = append(s.feeds, feed)
		readFeeds[adType] = feed
		apiFeeds = append(apiFeeds, feed)
		s.scheduler.OnRefresh(feed.OnRefreshSignal)
	}

	workflow, err := readit.New(adServer, s.clock, readFeeds, s.bus, s.logger)
	if err != nil {
		return fmt.Errorf("read workflow: %w", err)
	}
	s.workflow = workflow

	var timeControl api.TimeControl
	if sim != nil {
		debug, err := debugtime.New(sim, s.scheduler, s.bus, s.logger)
		if err != nil {
			return fmt.Errorf("debug time: %w", err)
		}
		s.debug = debug
		timeControl = debug
	}

	s.api = api.New(apiFeeds, workflow, s.clock, timeControl, s.bus, s.logger,
		api.WithOriginPatterns(
			fmt.Sprintf("%s:%d", s.cfg.HTTPBind, s.cfg.HTTPPort),
			fmt.Sprintf("localhost:%d", s.cfg.HTTPPort),
		))
	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router exposes the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close stops the scheduler and waits for in-flight ad-server requests.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	s.workflow.Wait()
	for _, feed := range s.feeds {
		feed.Wait()
	}
	s.logger.Info().Msg("booth client stopped")
	return nil
}

func (s *Server) startBackgroundWorkers() error {
	if err := s.scheduler.Start(context.Background()); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

func (s *Server) stopBackgroundWorkers() {
	s.scheduler.Stop()
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := `{"status":"ok"`
		if s.debug != nil {
			response += `,"simulated":true`
		} else {
			response += `,"simulated":false`
		}
		response += `}`
		_, _ = w.Write([]byte(response))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
