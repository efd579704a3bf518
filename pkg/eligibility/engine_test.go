package eligibility

import (
	"context"
	"testing"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
)

func enabledConfig() *config.Config {
	return &config.Config{
		SiteURL:      "https://example.com",
		CacheEnabled: true,
		BypassWPJSON: true,
	}
}

func TestShouldBypassURL(t *testing.T) {
	cfg := enabledConfig()
	cfg.BypassAMP = true
	cfg.BypassSitemap = true
	cfg.BypassRobots = true
	cfg.ExcludedURLs = "/private/*,*checkout=1*"
	e := NewEngine(cfg, nil)

	cases := []struct {
		name   string
		req    RequestContext
		bypass bool
		reason string
	}{
		{"woocommerce api", RequestContext{Path: "/wc-api/v3/orders"}, true, "rest_api"},
		{"rest api", RequestContext{Path: "/wp-json/wc/v3/orders"}, true, "rest_api"},
		{"edd api", RequestContext{Path: "/edd-api/products"}, true, "rest_api"},
		{"amp suffix", RequestContext{Path: "/hello-world/amp/"}, true, "amp"},
		{"amp query", RequestContext{Path: "/hello-world/", Query: "amp"}, true, "amp"},
		{"sitemap index", RequestContext{Path: "/sitemap_index.xml"}, true, "sitemap"},
		{"split sitemap", RequestContext{Path: "/post-sitemap.xml"}, true, "sitemap"},
		{"robots", RequestContext{Path: "/robots.txt"}, true, "robots"},
		{"excluded pattern", RequestContext{Path: "/PRIVATE/area/"}, true, "excluded_url"},
		{"excluded query pattern", RequestContext{Path: "/cart/", Query: "checkout=1&x=2"}, true, "excluded_url"},
		{"ajax header", RequestContext{Path: "/posts/", RequestedWith: "XMLHttpRequest"}, true, "ajax_or_cron"},
		{"cron", RequestContext{Path: "/wp-cron.php", Cron: true}, true, "ajax_or_cron"},
		{"login", RequestContext{Path: "/wp-login.php"}, true, "auth_page"},
		{"regular page", RequestContext{Path: "/hello-world/"}, false, ""},
		{"regular with query", RequestContext{Path: "/hello-world/", Query: "utm_source=x"}, false, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			bypass, reason := e.ShouldBypassURL(&c.req)
			if bypass != c.bypass || reason != c.reason {
				t.Errorf("ShouldBypassURL(%q) = %v, %q; want %v, %q",
					c.req.RequestURI(), bypass, reason, c.bypass, c.reason)
			}
		})
	}
}

func TestWPJSONBypassIsConfigurable(t *testing.T) {
	cfg := enabledConfig()
	cfg.BypassWPJSON = false
	e := NewEngine(cfg, nil)

	if bypass, _ := e.ShouldBypassURL(&RequestContext{Path: "/wp-json/wp/v2/posts"}); bypass {
		t.Error("wp-json must not bypass when the flag is off")
	}
	// The store APIs are not configurable.
	if bypass, _ := e.ShouldBypassURL(&RequestContext{Path: "/wc-api/v3/orders"}); !bypass {
		t.Error("wc-api must always bypass")
	}
}

func TestCanBypassCacheAuthenticatedAlwaysWins(t *testing.T) {
	e := NewEngine(enabledConfig(), nil)

	for _, page := range []PageContext{
		{LoggedIn: true},
		{Admin: true},
		{LoggedIn: true, FrontPage: true, Single: true},
	} {
		bypass, reason := e.CanBypassCache(&RequestContext{Path: "/any/"}, &page)
		if !bypass || reason != "logged_in" {
			t.Errorf("authenticated session: bypass = %v, %q; want true, logged_in", bypass, reason)
		}
	}
}

func TestCanBypassCacheFlags(t *testing.T) {
	cfg := enabledConfig()
	cfg.BypassFeeds = true
	cfg.BypassWooCheckout = true
	cfg.BypassQueryVar = true
	cfg.BypassEDDCheckout = true
	cfg.EDDCheckoutPageID = 88
	e := NewEngine(cfg, nil)

	cases := []struct {
		name   string
		req    RequestContext
		page   PageContext
		bypass bool
		reason string
	}{
		{"feed flag", RequestContext{Path: "/feed/"}, PageContext{Feed: true}, true, "feed"},
		{"woo checkout flag", RequestContext{Path: "/checkout/"}, PageContext{WooCheckout: true}, true, "woo_checkout"},
		{"query var", RequestContext{Path: "/x/", Query: "s=term"}, PageContext{}, true, "query_var"},
		{"edd checkout page id", RequestContext{Path: "/buy/"}, PageContext{EntityID: 88}, true, "edd_checkout"},
		{"password protected", RequestContext{Path: "/x/"}, PageContext{PasswordProtected: true}, true, "password_protected"},
		{"studiocart product", RequestContext{Path: "/x/"}, PageContext{EntityType: "sc_product"}, true, "bypassed_entity_type"},
		{"entity meta opt-out", RequestContext{Path: "/x/"}, PageContext{BypassMeta: true}, true, "entity_meta"},
		{"unflagged archive", RequestContext{Path: "/2024/"}, PageContext{Archive: true}, false, ""},
		{"plain page", RequestContext{Path: "/about/"}, PageContext{Page: true}, false, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			bypass, reason := e.CanBypassCache(&c.req, &c.page)
			if bypass != c.bypass || reason != c.reason {
				t.Errorf("CanBypassCache = %v, %q; want %v, %q", bypass, reason, c.bypass, c.reason)
			}
		})
	}
}

func TestCacheControlValue(t *testing.T) {
	cfg := enabledConfig()
	cfg.CDNCacheTTL = 14400
	cfg.BrowserCacheTTL = 120
	e := NewEngine(cfg, nil)
	if got := e.CacheControlValue(); got != "s-maxage=14400, max-age=120" {
		t.Errorf("CacheControlValue() = %q", got)
	}

	// Conservative defaults when unset.
	e = NewEngine(enabledConfig(), nil)
	if got := e.CacheControlValue(); got != "s-maxage=31536000, max-age=60" {
		t.Errorf("default CacheControlValue() = %q", got)
	}
}

func TestDecideStates(t *testing.T) {
	ctx := context.Background()

	disabled := enabledConfig()
	disabled.CacheEnabled = false
	if d := NewEngine(disabled, nil).Decide(ctx, &RequestContext{Path: "/x/"}, &PageContext{}); d.State != StateDisabled {
		t.Errorf("disabled config: state = %q", d.State)
	}

	e := NewEngine(enabledConfig(), nil)
	if d := e.Decide(ctx, &RequestContext{Path: "/x/"}, &PageContext{StatusCode: 503}); d.State != StateError {
		t.Errorf("5xx page: state = %q", d.State)
	}
	if d := e.Decide(ctx, &RequestContext{Path: "/wp-json/a"}, &PageContext{}); d.State != StateBypass {
		t.Errorf("api url: state = %q", d.State)
	}
	d := e.Decide(ctx, &RequestContext{Path: "/hello/"}, &PageContext{StatusCode: 200})
	if d.State != StateCache {
		t.Fatalf("plain page: state = %q", d.State)
	}
	if got := headerValue(d.Headers, "X-BigScoots-Cache"); got != "cache" {
		t.Errorf("X-BigScoots-Cache = %q", got)
	}
	if got := headerValue(d.Headers, "X-BigScoots-Cache-Plan"); got != "Misconfigured" {
		t.Errorf("X-BigScoots-Cache-Plan = %q", got)
	}
}

func TestDecideAddsCacheTagForPrefixCapablePlans(t *testing.T) {
	cfg := enabledConfig()
	cfg.MasterURL, cfg.MasterKey, cfg.SiteID = "https://relay.example", "k", "42"
	e := NewEngine(cfg, nil)

	d := e.Decide(context.Background(), &RequestContext{Path: "/foo/bar/"}, &PageContext{})
	if d.State != StateCache {
		t.Fatalf("state = %q", d.State)
	}
	if got := headerValue(d.Headers, "Cache-Tag"); got != "example.com_foo_bar" {
		t.Errorf("Cache-Tag = %q", got)
	}
}

func TestCacheTag(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://example.com/", "example.com_front_page"},
		{"https://example.com", "example.com_front_page"},
		{"https://example.com/foo/bar/", "example.com_foo_bar"},
		{"https://example.com/foo/bar", "example.com_foo_bar"},
		{"https://example.com/na%c2me/", "example.com_na_c2me"},
		{"", ""},
	}
	for _, c := range cases {
		if got := CacheTag(c.url); got != c.want {
			t.Errorf("CacheTag(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestWildcardMatch(t *testing.T) {
	cases := []struct {
		pattern, subject string
		want             bool
	}{
		{"/private/*", "/private/page/", true},
		{"/private/*", "/PRIVATE/page/", true},
		{"/private/*", "/public/page/", false},
		{"*utm_source=*", "/post/?utm_source=mail", true},
		{"/exact/", "/exact/", true},
		{"/exact/", "/exact/sub/", false},
	}
	for _, c := range cases {
		if got := wildcardMatch(c.pattern, c.subject); got != c.want {
			t.Errorf("wildcardMatch(%q, %q) = %v, want %v", c.pattern, c.subject, got, c.want)
		}
	}
}

func headerValue(headers []Header, name string) string {
	for _, h := range headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}
