package eligibility

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/plan"
)

// State is the cacheability verdict for one request.
type State string

const (
	// StateDisabled — page cache is switched off site-wide.
	StateDisabled State = "disabled"
	// StateBypass — this request must not be cached.
	StateBypass State = "bypass"
	// StateCache — the edge may store and serve this response.
	StateCache State = "cache"
	// StateError — the origin answered with a 5xx page.
	StateError State = "error"
)

// Header is one response header the edge should attach.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Decision is the full outcome of an eligibility evaluation.
type Decision struct {
	State State `json:"state"`
	// Reason names the first rule that forced a bypass, empty otherwise.
	Reason       string   `json:"reason,omitempty"`
	Headers      []Header `json:"headers"`
	StripCookies bool     `json:"strip_cookies"`
}

// ManifestProber reports whether the site publishes a prefetch manifest.
// Lookups are expected to be cached by the implementation.
type ManifestProber interface {
	ManifestExists(ctx context.Context) bool
}

var (
	ampRe     = regexp.MustCompile(`(/)((\?amp)|(amp/))`)
	sitemapRe = regexp.MustCompile(`[a-zA-Z0-9]-sitemap.xml$`)
)

// Engine evaluates the bypass policy and assembles the response header set.
// It holds no request state; configuration is read on every call so option
// changes apply without a restart.
type Engine struct {
	cfg      *config.Config
	manifest ManifestProber
}

func NewEngine(cfg *config.Config, manifest ManifestProber) *Engine {
	return &Engine{cfg: cfg, manifest: manifest}
}

// ShouldBypassURL applies the URL-shape rules: API namespaces, AMP, sitemaps,
// robots, wildcard exclusions, AJAX/cron markers and auth script names.
func (e *Engine) ShouldBypassURL(req *RequestContext) (bool, string) {
	uri := req.RequestURI()
	lowPath := strings.ToLower(req.Path)

	if e.isAPIRequest(lowPath) {
		return true, "rest_api"
	}
	if e.cfg.BypassAMP && ampRe.MatchString(uri) {
		return true, "amp"
	}
	if e.cfg.BypassSitemap && (strings.EqualFold(uri, "/sitemap_index.xml") || sitemapRe.MatchString(uri)) {
		return true, "sitemap"
	}
	if e.cfg.BypassRobots && strings.HasPrefix(lowPath, "/robots.txt") {
		return true, "robots"
	}
	for _, pattern := range e.cfg.ExcludedURLPatterns() {
		if wildcardMatch(pattern, uri) {
			return true, "excluded_url"
		}
	}
	if req.RequestedWith == "XMLHttpRequest" || req.Cron {
		return true, "ajax_or_cron"
	}
	if strings.HasSuffix(lowPath, "/wp-login.php") || strings.HasSuffix(lowPath, "/wp-register.php") {
		return true, "auth_page"
	}
	return false, ""
}

func (e *Engine) isAPIRequest(lowPath string) bool {
	if e.cfg.BypassWPJSON && strings.HasPrefix(lowPath, "/wp-json") {
		return true
	}
	return strings.HasPrefix(lowPath, "/wc-api/") || strings.HasPrefix(lowPath, "/edd-api/")
}

// CanBypassCache applies the page-classification rules. The first matching
// rule wins; authenticated sessions always bypass.
func (e *Engine) CanBypassCache(req *RequestContext, page *PageContext) (bool, string) {
	if page.Admin || page.LoggedIn {
		return true, "logged_in"
	}
	if page.BypassOverride {
		return true, "override"
	}
	if page.PasswordProtected {
		return true, "password_protected"
	}
	if page.EntityType == "sc_product" {
		return true, "bypassed_entity_type"
	}
	if page.BypassMeta {
		return true, "entity_meta"
	}
	if e.cfg.BypassQueryVar && req.Query != "" {
		return true, "query_var"
	}
	if e.cfg.BypassAjax && (page.Ajax || req.RequestedWith == "XMLHttpRequest") {
		return true, "ajax"
	}

	rules := []struct {
		on     bool
		is     bool
		reason string
	}{
		{e.cfg.BypassFrontPage, page.FrontPage, "front_page"},
		{e.cfg.BypassPages, page.Page, "page"},
		{e.cfg.BypassHome, page.Home, "home"},
		{e.cfg.BypassArchives, page.Archive, "archive"},
		{e.cfg.BypassTags, page.Tag, "tag"},
		{e.cfg.BypassCategories, page.Category, "category"},
		{e.cfg.BypassFeeds, page.Feed, "feed"},
		{e.cfg.BypassSearch, page.Search, "search"},
		{e.cfg.BypassAuthorPages, page.Author, "author"},
		{e.cfg.BypassSinglePost, page.Single, "single"},
		{e.cfg.BypassWooCart, page.WooCart, "woo_cart"},
		{e.cfg.BypassWooAccount, page.WooAccount, "woo_account"},
		{e.cfg.BypassWooCheckout, page.WooCheckout, "woo_checkout"},
		{e.cfg.BypassWooCheckoutPay, page.WooCheckoutPay, "woo_checkout_pay"},
		{e.cfg.BypassWooShop, page.WooShop, "woo_shop"},
		{e.cfg.BypassWooProduct, page.WooProduct, "woo_product"},
		{e.cfg.BypassWooProductCat, page.WooProductCat, "woo_product_cat"},
		{e.cfg.BypassWooProductTag, page.WooProductTag, "woo_product_tag"},
		{e.cfg.BypassWooProductTax, page.WooProductTax, "woo_product_tax"},
		{e.cfg.BypassWooPages, page.WooPage, "woo_page"},
	}
	for _, r := range rules {
		if r.on && r.is {
			return true, r.reason
		}
	}

	edd := []struct {
		on     bool
		pageID int
		reason string
	}{
		{e.cfg.BypassEDDCheckout, e.cfg.EDDCheckoutPageID, "edd_checkout"},
		{e.cfg.BypassEDDSuccess, e.cfg.EDDSuccessPageID, "edd_success"},
		{e.cfg.BypassEDDFailure, e.cfg.EDDFailurePageID, "edd_failure"},
		{e.cfg.BypassEDDPurchaseHistory, e.cfg.EDDPurchaseHistoryPageID, "edd_purchase_history"},
		{e.cfg.BypassEDDLoginRedirect, e.cfg.EDDLoginRedirectPageID, "edd_login_redirect"},
	}
	for _, r := range edd {
		if r.on && r.pageID != 0 && page.EntityID == r.pageID {
			return true, r.reason
		}
	}

	if e.cfg.BypassRedirects && isRedirect(page.StatusCode) {
		return true, "redirect"
	}
	return false, ""
}

// CacheControlValue formats the Cache-Control for cacheable pages; zero or
// negative TTLs fall back to the defaults (one year at the edge, one minute
// in the browser).
func (e *Engine) CacheControlValue() string {
	cdn, browser := e.cfg.CDNCacheTTL, e.cfg.BrowserCacheTTL
	if cdn <= 0 {
		cdn = 31536000
	}
	if browser <= 0 {
		browser = 60
	}
	return fmt.Sprintf("s-maxage=%d, max-age=%d", cdn, browser)
}

// Decide evaluates both rule sets and assembles the headers for the verdict.
func (e *Engine) Decide(ctx context.Context, req *RequestContext, page *PageContext) *Decision {
	if !e.cfg.CacheEnabled || e.cfg.PageCacheDisabled {
		return &Decision{State: StateDisabled, Headers: e.noCacheHeaders(StateDisabled)}
	}
	if page.StatusCode >= 500 {
		return &Decision{State: StateError, Reason: "error_page", Headers: e.noCacheHeaders(StateError)}
	}
	if bypass, reason := e.ShouldBypassURL(req); bypass {
		return &Decision{State: StateBypass, Reason: reason, Headers: e.noCacheHeaders(StateBypass)}
	}
	if bypass, reason := e.CanBypassCache(req, page); bypass {
		return &Decision{State: StateBypass, Reason: reason, Headers: e.noCacheHeaders(StateBypass)}
	}
	return &Decision{
		State:        StateCache,
		Headers:      e.cacheHeaders(ctx, req),
		StripCookies: e.cfg.StripCookies,
	}
}

const noCacheValue = "no-store, no-cache, must-revalidate, max-age=0"

func (e *Engine) noCacheHeaders(state State) []Header {
	mark := "no-cache"
	if state == StateDisabled {
		mark = "disabled"
	}
	headers := []Header{
		{"Cache-Control", noCacheValue},
		{"X-BigScoots-Cache", mark},
		{"X-BigScoots-Cache-Control", noCacheValue},
		{"X-BigScoots-Cache-Plan", string(plan.Resolve(e.cfg))},
	}
	if state != StateDisabled {
		headers = append(headers,
			Header{"Pragma", "no-cache"},
			Header{"Expires", time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05") + " GMT"},
		)
	}
	return headers
}

func (e *Engine) cacheHeaders(ctx context.Context, req *RequestContext) []Header {
	cc := e.CacheControlValue()
	headers := []Header{
		{"Cache-Control", cc},
		{"X-BigScoots-Cache", "cache"},
		{"X-BigScoots-Cache-Control", cc},
		{"X-BigScoots-Cache-Plan", string(plan.Resolve(e.cfg))},
	}
	if plan.SupportsPrefixPurge(e.cfg) {
		headers = append(headers, Header{"Cache-Tag", CacheTag("https://" + e.cfg.Hostname() + req.Path)})
		if e.cfg.PrefetchURLs && e.manifest != nil && e.manifest.ManifestExists(ctx) {
			headers = append(headers, Header{
				"Link",
				fmt.Sprintf("<https://%s/manifest.txt>; rel=\"prefetch\"", e.cfg.Hostname()),
			})
		}
	}
	return headers
}

func isRedirect(code int) bool {
	switch code {
	case 301, 302, 304, 307, 308:
		return true
	}
	return false
}
