package config

import (
	"strings"
	"time"
)

// Version is the plugin version reported in the User-Agent header and on the status endpoint.
const Version = "3.2.0"

// Config is the full option set of the plugin, unmarshalled from environment
// variables once at startup. Fields that used to live as loose string-keyed
// settings are typed here; the core never reads configuration by string key.
type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	AppDebug bool   `mapstructure:"APP_DEBUG"`

	// Environment is the deployment environment of the site: production,
	// staging or development. Purging is refused on staging.
	Environment string `mapstructure:"ENVIRONMENT"`

	// SiteURL is the canonical site root, e.g. https://example.com
	SiteURL string `mapstructure:"SITE_URL"`
	// WPRestURL is the base of the WordPress REST API used by the content
	// repository, e.g. https://example.com/wp-json (defaults to SiteURL + /wp-json).
	WPRestURL string `mapstructure:"WP_REST_URL"`

	CacheEnabled      bool `mapstructure:"CACHE_ENABLED"`
	PageCacheDisabled bool `mapstructure:"PAGE_CACHE_DISABLED"`

	// CDNCacheTTL and BrowserCacheTTL build the Cache-Control value:
	// s-maxage={CDNCacheTTL}, max-age={BrowserCacheTTL}.
	CDNCacheTTL     int `mapstructure:"CDN_CACHE_TTL"`
	BrowserCacheTTL int `mapstructure:"BROWSER_CACHE_TTL"`

	// PostsPerPage mirrors the WordPress posts_per_page option and sizes the
	// paginated-URL expansion. Zero disables paginated expansion.
	PostsPerPage int `mapstructure:"POSTS_PER_PAGE"`
	// UsingPermalinks is false when the site runs on plain (?p=N) permalinks;
	// paginated expansion is skipped in that case.
	UsingPermalinks bool `mapstructure:"USING_PERMALINKS"`
	// HomePageShowsPosts adds the site root to every related-URL set when the
	// home page lists the latest posts.
	HomePageShowsPosts bool `mapstructure:"HOME_PAGE_SHOWS_POSTS"`

	// ExcludedURLs is a comma separated list of wildcard patterns (glob-style *)
	// matched case-insensitively against path+query.
	ExcludedURLs string `mapstructure:"EXCLUDED_URLS"`
	// ExcludedPostTypes is a comma separated list of content types whose
	// mutations never trigger a purge.
	ExcludedPostTypes string `mapstructure:"EXCLUDED_POST_TYPES"`

	// URL bypass switches.
	BypassAMP     bool `mapstructure:"BYPASS_AMP"`
	BypassSitemap bool `mapstructure:"BYPASS_SITEMAP"`
	BypassRobots  bool `mapstructure:"BYPASS_ROBOTS"`
	BypassWPJSON  bool `mapstructure:"BYPASS_WP_JSON"`

	// Page-type bypass switches.
	BypassQueryVar       bool `mapstructure:"BYPASS_QUERY_VAR"`
	BypassAjax           bool `mapstructure:"BYPASS_AJAX"`
	BypassFrontPage      bool `mapstructure:"BYPASS_FRONT_PAGE"`
	BypassPages          bool `mapstructure:"BYPASS_PAGES"`
	BypassHome           bool `mapstructure:"BYPASS_HOME"`
	BypassArchives       bool `mapstructure:"BYPASS_ARCHIVES"`
	BypassTags           bool `mapstructure:"BYPASS_TAGS"`
	BypassCategories     bool `mapstructure:"BYPASS_CATEGORIES"`
	BypassFeeds          bool `mapstructure:"BYPASS_FEEDS"`
	BypassSearch         bool `mapstructure:"BYPASS_SEARCH"`
	BypassAuthorPages    bool `mapstructure:"BYPASS_AUTHOR_PAGES"`
	BypassSinglePost     bool `mapstructure:"BYPASS_SINGLE_POST"`
	BypassRedirects      bool `mapstructure:"BYPASS_REDIRECTS"`
	BypassWooCart        bool `mapstructure:"BYPASS_WOO_CART"`
	BypassWooAccount     bool `mapstructure:"BYPASS_WOO_ACCOUNT"`
	BypassWooCheckout    bool `mapstructure:"BYPASS_WOO_CHECKOUT"`
	BypassWooCheckoutPay bool `mapstructure:"BYPASS_WOO_CHECKOUT_PAY"`
	BypassWooShop        bool `mapstructure:"BYPASS_WOO_SHOP"`
	BypassWooProduct     bool `mapstructure:"BYPASS_WOO_PRODUCT"`
	BypassWooProductCat  bool `mapstructure:"BYPASS_WOO_PRODUCT_CAT"`
	BypassWooProductTag  bool `mapstructure:"BYPASS_WOO_PRODUCT_TAG"`
	BypassWooProductTax  bool `mapstructure:"BYPASS_WOO_PRODUCT_TAX"`
	BypassWooPages       bool `mapstructure:"BYPASS_WOO_PAGES"`

	// EDD page ids; zero means "no such page configured".
	EDDCheckoutPageID        int `mapstructure:"EDD_CHECKOUT_PAGE_ID"`
	EDDSuccessPageID         int `mapstructure:"EDD_SUCCESS_PAGE_ID"`
	EDDFailurePageID         int `mapstructure:"EDD_FAILURE_PAGE_ID"`
	EDDPurchaseHistoryPageID int `mapstructure:"EDD_PURCHASE_HISTORY_PAGE_ID"`
	EDDLoginRedirectPageID   int `mapstructure:"EDD_LOGIN_REDIRECT_PAGE_ID"`

	BypassEDDCheckout        bool `mapstructure:"BYPASS_EDD_CHECKOUT"`
	BypassEDDSuccess         bool `mapstructure:"BYPASS_EDD_SUCCESS"`
	BypassEDDFailure         bool `mapstructure:"BYPASS_EDD_FAILURE"`
	BypassEDDPurchaseHistory bool `mapstructure:"BYPASS_EDD_PURCHASE_HISTORY"`
	BypassEDDLoginRedirect   bool `mapstructure:"BYPASS_EDD_LOGIN_REDIRECT"`

	// Purge policy switches.
	AutoPurge                   bool `mapstructure:"AUTO_PURGE"`
	AutoPurgeAll                bool `mapstructure:"AUTO_PURGE_ALL"`
	AutoPurgeOnComments         bool `mapstructure:"AUTO_PURGE_ON_COMMENTS"`
	PurgeRelatedPagesOnComments bool `mapstructure:"PURGE_RELATED_PAGES_ON_COMMENTS"`
	AutoPurgeWooProductPage     bool `mapstructure:"AUTO_PURGE_WOO_PRODUCT_PAGE"`
	AutoPurgeOnUpgrade          bool `mapstructure:"AUTO_PURGE_ON_UPGRADE"`
	DisableRelatedURLsPurge     bool `mapstructure:"DISABLE_RELATED_URLS_PURGE"`
	DisableLocalCacheFlush      bool `mapstructure:"DISABLE_LOCAL_CACHE_FLUSH"`

	// Response shaping.
	StripCookies bool `mapstructure:"STRIP_COOKIES"`
	PrefetchURLs bool `mapstructure:"PREFETCH_URLS"`

	// Cloudflare credentials, AES-256-CBC encrypted and base64 wrapped.
	// Either email+key or a scoped token must be present on the Standard plan.
	CFZoneIDEnc   string `mapstructure:"CF_ZONE_ID_ENC"`
	CFEmailEnc    string `mapstructure:"CF_EMAIL_ENC"`
	CFAPIKeyEnc   string `mapstructure:"CF_API_KEY_ENC"`
	CFAPITokenEnc string `mapstructure:"CF_API_TOKEN_ENC"`
	// SecretKeyHex/SecretIVHex parameterize credential decryption.
	SecretKeyHex string `mapstructure:"SECRET_KEY_HEX"`
	SecretIVHex  string `mapstructure:"SECRET_IV_HEX"`
	// CFSupportsPrefixPurge marks Standard accounts whose zone supports
	// purge-by-prefix and purge-by-hostname.
	CFSupportsPrefixPurge bool `mapstructure:"CF_SUPPORTS_PREFIX_PURGE"`
	// CFAPIURL overrides the Cloudflare API base, for tests.
	CFAPIURL string `mapstructure:"CF_API_URL"`

	// Relay (master server) credentials for the Performance+ plan.
	MasterURL string `mapstructure:"MASTER_URL"`
	MasterKey string `mapstructure:"MASTER_KEY"`
	SiteID    string `mapstructure:"SITE_ID"`

	// PurgeTimeout bounds every outbound purge HTTP call.
	PurgeTimeout time.Duration `mapstructure:"PURGE_TIMEOUT"`
	// PurgeURLSecretKey guards the unauthenticated cron purge endpoint.
	PurgeURLSecretKey string `mapstructure:"PURGE_URL_SECRET_KEY"`

	// SystemCacheDSN selects the shared rate-limit token store: a redis://
	// URL for the cluster-backed store, empty for the in-process store.
	SystemCacheDSN string `mapstructure:"SYSTEM_CACHE_DSN"`
}

// ExcludedURLPatterns returns the wildcard exclusion patterns as a slice.
func (c *Config) ExcludedURLPatterns() []string {
	return splitCSV(c.ExcludedURLs)
}

// IgnoredPostTypes returns the content types excluded from purging.
func (c *Config) IgnoredPostTypes() []string {
	return splitCSV(c.ExcludedPostTypes)
}

// RestURL resolves the WordPress REST API base.
func (c *Config) RestURL() string {
	if c.WPRestURL != "" {
		return strings.TrimRight(c.WPRestURL, "/")
	}
	return strings.TrimRight(c.SiteURL, "/") + "/wp-json"
}

// HomeURL returns the site root with a trailing slash.
func (c *Config) HomeURL() string {
	return strings.TrimRight(c.SiteURL, "/") + "/"
}

// Hostname returns the bare host of SiteURL, scheme and trailing slash stripped.
func (c *Config) Hostname() string {
	h := strings.TrimPrefix(strings.TrimPrefix(c.SiteURL, "https://"), "http://")
	if i := strings.IndexByte(h, '/'); i >= 0 {
		h = h[:i]
	}
	return h
}

// CurlTimeout resolves the per-call purge timeout, defaulting to 10s.
func (c *Config) CurlTimeout() time.Duration {
	if c.PurgeTimeout <= 0 {
		return 10 * time.Second
	}
	return c.PurgeTimeout
}

func (c *Config) IsDebugOn() bool {
	return c.AppDebug
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
