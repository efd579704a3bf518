package main

import (
	"context"
	"runtime"
	"time"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/internal/purge"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/internal/purge/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/k8s/probe/liveness"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/shutdown"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
)

// Initializes environment variables from .env files and binds them using Viper.
// This allows overriding any value via environment variables.
func init() {
	// Load .env and .env.local files for configuration overrides.
	_ = godotenv.Overload(".env", ".env.local")

	// Bind all relevant environment variables using Viper.
	viper.AutomaticEnv()
	for _, env := range []string{
		"APP_ENV", "APP_DEBUG", "ENVIRONMENT",
		"SITE_URL", "WP_REST_URL",
		"CACHE_ENABLED", "PAGE_CACHE_DISABLED",
		"CDN_CACHE_TTL", "BROWSER_CACHE_TTL",
		"POSTS_PER_PAGE", "USING_PERMALINKS", "HOME_PAGE_SHOWS_POSTS",
		"EXCLUDED_URLS", "EXCLUDED_POST_TYPES",
		"BYPASS_AMP", "BYPASS_SITEMAP", "BYPASS_ROBOTS", "BYPASS_WP_JSON",
		"BYPASS_QUERY_VAR", "BYPASS_AJAX",
		"BYPASS_FRONT_PAGE", "BYPASS_PAGES", "BYPASS_HOME", "BYPASS_ARCHIVES",
		"BYPASS_TAGS", "BYPASS_CATEGORIES", "BYPASS_FEEDS", "BYPASS_SEARCH",
		"BYPASS_AUTHOR_PAGES", "BYPASS_SINGLE_POST", "BYPASS_REDIRECTS",
		"BYPASS_WOO_CART", "BYPASS_WOO_ACCOUNT", "BYPASS_WOO_CHECKOUT",
		"BYPASS_WOO_CHECKOUT_PAY", "BYPASS_WOO_SHOP", "BYPASS_WOO_PRODUCT",
		"BYPASS_WOO_PRODUCT_CAT", "BYPASS_WOO_PRODUCT_TAG", "BYPASS_WOO_PRODUCT_TAX",
		"BYPASS_WOO_PAGES",
		"EDD_CHECKOUT_PAGE_ID", "EDD_SUCCESS_PAGE_ID", "EDD_FAILURE_PAGE_ID",
		"EDD_PURCHASE_HISTORY_PAGE_ID", "EDD_LOGIN_REDIRECT_PAGE_ID",
		"BYPASS_EDD_CHECKOUT", "BYPASS_EDD_SUCCESS", "BYPASS_EDD_FAILURE",
		"BYPASS_EDD_PURCHASE_HISTORY", "BYPASS_EDD_LOGIN_REDIRECT",
		"AUTO_PURGE", "AUTO_PURGE_ALL", "AUTO_PURGE_ON_COMMENTS",
		"PURGE_RELATED_PAGES_ON_COMMENTS", "AUTO_PURGE_WOO_PRODUCT_PAGE",
		"AUTO_PURGE_ON_UPGRADE", "DISABLE_RELATED_URLS_PURGE",
		"DISABLE_LOCAL_CACHE_FLUSH",
		"STRIP_COOKIES", "PREFETCH_URLS",
		"CF_ZONE_ID_ENC", "CF_EMAIL_ENC", "CF_API_KEY_ENC", "CF_API_TOKEN_ENC",
		"SECRET_KEY_HEX", "SECRET_IV_HEX",
		"CF_SUPPORTS_PREFIX_PURGE", "CF_API_URL",
		"MASTER_URL", "MASTER_KEY", "SITE_ID",
		"PURGE_TIMEOUT", "PURGE_URL_SECRET_KEY",
		"SYSTEM_CACHE_DSN",
		"SERVER_NAME", "SERVER_PORT",
		"SERVER_SHUTDOWN_TIMEOUT", "SERVER_REQUEST_TIMEOUT",
		"IS_PROMETHEUS_METRICS_ENABLED",
	} {
		_ = viper.BindEnv(env)
	}
}

// setMaxProcs automatically sets the optimal GOMAXPROCS value (CPU parallelism)
// based on the available CPUs and cgroup/docker CPU quotas (uses automaxprocs).
func setMaxProcs() {
	if _, err := maxprocs.Set(); err != nil {
		log.Err(err).Msg("[main] setting up GOMAXPROCS value failed")
		panic(err)
	}
	log.Info().Msgf("[main] optimized GOMAXPROCS=%d was set up", runtime.GOMAXPROCS(0))
}

// loadCfg loads the configuration struct from environment variables
// and adjusts the log level to match.
func loadCfg() *config.Config {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		log.Err(err).Msg("[main] failed to unmarshal config from envs")
		panic(err)
	}
	if cfg.IsDebugOn() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return cfg
}

// Main entrypoint: configures and starts the purge application.
func main() {
	// Create a root context for gracefulShutdown shutdown and cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optimize GOMAXPROCS for the current environment.
	setMaxProcs()

	// Load the application configuration from env vars.
	cfg := loadCfg()

	// Setup gracefulShutdown shutdown handler (SIGTERM, SIGINT, etc).
	gracefulShutdown := shutdown.NewGraceful(ctx, cancel)
	gracefulShutdown.SetGracefulTimeout(time.Second * 10)

	// Initialize liveness probe for Kubernetes/Cloud health checks.
	probe := liveness.NewProbe(ctx)

	// Initialize and start the purge application.
	if app, err := purge.NewApp(ctx, cfg, probe); err != nil {
		log.Err(err).Msg("[main] failed to init purge app")
	} else {
		// Register app for gracefulShutdown shutdown.
		gracefulShutdown.Add(1)
		go app.Start(gracefulShutdown)
	}

	// Listen for OS signals or context cancellation and wait for gracefulShutdown shutdown.
	if err := gracefulShutdown.ListenCancelAndAwait(); err != nil {
		log.Err(err).Msg("[main] failed to gracefully shut down service")
	}
}
