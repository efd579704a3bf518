package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/internal/purge/api"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/internal/purge/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/dispatch"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/eligibility"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/events"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/k8s/probe/liveness"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/prometheus/metrics"
	metricscontroller "github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/prometheus/metrics/controller"
	metricsmiddleware "github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/prometheus/metrics/middleware"
	httpserver "github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/server"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/server/controller"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/server/middleware"
	"github.com/rs/zerolog/log"
)

// Error messages used for server initialization.
var (
	InitFailedErrorMessage = "[server] init. failed"
)

// Http interface exposes methods for starting and liveness probing.
type Http interface {
	Start()
	IsAlive() bool
}

// HttpServer implements Http, wraps all dependencies required for running the HTTP server.
type HttpServer struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg           *config.Config
	meter         metrics.Meter
	server        *httpserver.HTTP
	isServerAlive *atomic.Bool
}

// New creates a new HttpServer wiring the purge API controllers and the
// shared middlewares. If any step fails, returns an error and performs cleanup.
func New(
	ctx context.Context,
	cfg *config.Config,
	meter metrics.Meter,
	admin *dispatch.Admin,
	disp *dispatch.Dispatcher,
	handler *events.Handler,
	engine *eligibility.Engine,
	probe liveness.Prober,
) (*HttpServer, error) {
	var err error

	// Create cancellable context for graceful shutdown.
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		if err != nil {
			cancel()
		}
	}()

	srv := &HttpServer{
		ctx:           ctx,
		cancel:        cancel,
		cfg:           cfg,
		meter:         meter,
		isServerAlive: &atomic.Bool{},
	}

	// Initialize HTTP server with all controllers and middlewares.
	if err = srv.initServer(admin, disp, handler, engine, probe); err != nil {
		log.Err(err).Msg(InitFailedErrorMessage)
		return nil, errors.New(InitFailedErrorMessage)
	}

	return srv, nil
}

// Start runs the HTTP server in a goroutine and waits for it to finish.
func (s *HttpServer) Start() {
	defer s.stop()

	waitCh := make(chan struct{})

	go func() {
		defer close(waitCh)
		wg := &sync.WaitGroup{}
		defer wg.Wait()
		s.spawnServer(wg)
	}()

	<-waitCh
}

// stop cancels the context, signaling shutdown to all server goroutines.
func (s *HttpServer) stop() {
	s.cancel()
}

// IsAlive returns true if the server is marked as alive.
func (s *HttpServer) IsAlive() bool {
	return s.isServerAlive.Load()
}

// spawnServer starts the HTTP server in a new goroutine, sets server liveness flags, and blocks until it exits.
func (s *HttpServer) spawnServer(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer func() {
			s.isServerAlive.Store(false)
			wg.Done()
		}()
		s.isServerAlive.Store(true)
		s.server.ListenAndServe()
	}()
}

// initServer creates the HTTP server instance, sets up controllers and middlewares, and stores the result.
func (s *HttpServer) initServer(
	admin *dispatch.Admin,
	disp *dispatch.Dispatcher,
	handler *events.Handler,
	engine *eligibility.Engine,
	probe liveness.Prober,
) error {
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel

	// Compose server with controllers and middlewares.
	if server, err := httpserver.New(ctx, s.cfg, s.controllers(admin, disp, handler, engine, probe), s.middlewares()); err != nil {
		cancel()
		log.Err(err).Msg(InitFailedErrorMessage)
		return errors.New(InitFailedErrorMessage)
	} else {
		s.server = server
	}

	return nil
}

// controllers returns all HTTP controllers for the server (endpoints/handlers).
func (s *HttpServer) controllers(
	admin *dispatch.Admin,
	disp *dispatch.Dispatcher,
	handler *events.Handler,
	engine *eligibility.Engine,
	probe liveness.Prober,
) []controller.HttpController {
	controllers := []controller.HttpController{
		api.NewLivenessController(probe),                               // Liveness/healthcheck endpoint
		api.NewClearCacheController(s.ctx, admin, disp),                // Manual purge endpoint
		api.NewEventController(s.ctx, handler),                         // Mutation-event ingestion
		api.NewDecisionController(s.ctx, engine, s.meter),              // Cacheability decision for the front proxy
		api.NewStatusController(&s.cfg.Config),                         // Plan/version status
		api.NewCacheToggleController(s.ctx, &s.cfg.Config, disp),       // Enable/disable page caching
		api.NewTestCacheController(s.ctx, &s.cfg.Config),               // Edge self-test
	}
	if s.cfg.IsPrometheusMetricsEnabled() {
		controllers = append(controllers, metricscontroller.NewPrometheusMetrics(s.ctx)) // Prometheus metrics endpoint
	}
	return controllers
}

// middlewares returns the request middlewares for the server, executed in reverse order.
func (s *HttpServer) middlewares() []middleware.HttpMiddleware {
	return []middleware.HttpMiddleware{
		/** exec 1st. */ middleware.NewApplicationJsonMiddleware(), // Sets Content-Type
		/** exec 2nd. */ middleware.NewWatermarkMiddleware(s.ctx, s.cfg), // Adds server and plugin version headers
		/** exec 3rd. */ middleware.NewDuration(s.ctx, s.cfg), // Server-Timing header
		/** exec 4th. */ metricsmiddleware.NewPrometheusMetrics(s.ctx, s.meter), // Prometheus instrumentation
	}
}
