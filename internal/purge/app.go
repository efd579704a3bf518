package purge

import (
	"context"
	"errors"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/internal/purge/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/internal/purge/server"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/dispatch"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/eligibility"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/events"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/expand"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/k8s/probe/liveness"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/plan"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/prometheus/metrics"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/repository"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/shutdown"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/transport"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/ttlcache"
	"github.com/rs/zerolog/log"
)

// App defines the purge application lifecycle interface.
type App interface {
	Start(gc shutdown.Gracefuller)
}

// Purge encapsulates the whole sidecar state: transports, dispatcher,
// eligibility engine, event handler and the HTTP server exposing them.
type Purge struct {
	cfg    *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	probe  liveness.Prober
	server server.Http
	cache  ttlcache.Cache
}

// NewApp builds the purge app, wiring together the system cache, the content
// repository, both transports and the API server.
func NewApp(ctx context.Context, cfg *config.Config, probe liveness.Prober) (*Purge, error) {
	ctx, cancel := context.WithCancel(ctx)

	cache, err := ttlcache.New(ctx, cfg.SystemCacheDSN)
	if err != nil {
		cancel()
		return nil, err
	}

	meter, err := metrics.New()
	if err != nil {
		cancel()
		return nil, err
	}

	repo := repository.NewWordPress(&cfg.Config)
	exp := expand.NewExpander(&cfg.Config, repo, cache)

	direct, err := transport.NewDirect(&cfg.Config)
	if err != nil {
		// Relay-only sites may legitimately carry no credential material.
		if plan.Resolve(&cfg.Config) == plan.Standard {
			cancel()
			return nil, err
		}
		log.Warn().Err(err).Msg("[app] direct transport unavailable, relying on relay")
	}
	relay := transport.NewRelay(&cfg.Config)

	var directT transport.Transport
	if direct != nil {
		directT = direct
	}

	disp := dispatch.NewDispatcher(&cfg.Config, directT, relay, NewCompanionFlusher(&cfg.Config), meter)
	admin := dispatch.NewAdmin(&cfg.Config, repo, exp, disp)
	guard := dispatch.NewGuard(cache)
	handler := events.NewHandler(&cfg.Config, repo, exp, disp, guard)
	engine := eligibility.NewEngine(&cfg.Config, eligibility.NewHTTPManifestProber(&cfg.Config, cache))

	// Compose the HTTP server (API, metrics and so on)
	srv, err := server.New(ctx, cfg, meter, admin, disp, handler, engine, probe)
	if err != nil {
		cancel()
		return nil, err
	}

	return &Purge{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		probe:  probe,
		server: srv,
		cache:  cache,
	}, nil
}

// Start runs the purge server and liveness probe, and handles graceful shutdown.
// The Gracefuller interface is expected to call Done() when shutdown is complete.
func (p *Purge) Start(gc shutdown.Gracefuller) {
	defer func() {
		p.stop()
		gc.Done()
	}()

	log.Info().Msg("starting purge app")

	waitCh := make(chan struct{})

	go func() {
		defer close(waitCh)
		p.probe.Watch(p) // Call first due to it does not block the green-thread
		p.server.Start() // Blocks the green-thread
	}()

	log.Info().Msg("purge app has been started")

	<-waitCh // Wait until the server exits
}

// stop cancels the main application context and logs shutdown.
func (p *Purge) stop() {
	log.Info().Msg("stopping purge app")
	p.cancel()
	if err := p.cache.Close(); err != nil && !errors.Is(err, context.Canceled) {
		log.Err(err).Msg("failed to close system cache")
	}
	log.Info().Msg("purge app has been stopped")
}

// IsAlive is called by liveness probes to check app health.
// Returns false if the HTTP server is not alive.
func (p *Purge) IsAlive(_ context.Context) bool {
	if !p.server.IsAlive() {
		log.Info().Msg("http server has gone away")
		return false
	}
	return true
}
