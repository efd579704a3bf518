package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/plan"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"resty.dev/v3"
)

// TestCachePath runs the self-test: fetch a page and read back the edge
// cache status header the current plan exposes.
const TestCachePath = "/api/v2/test-cache"

type testCacheResponse struct {
	Success bool   `json:"success"`
	Header  string `json:"header"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Explanations keyed by the edge vocabulary. HIT/MISS/EXPIRED mean caching
// works; the rest name the condition keeping the page out of cache.
var testCacheMessages = map[string]struct {
	pass    bool
	message string
}{
	"HIT":         {true, "The page was served from the edge cache."},
	"MISS":        {true, "The page was not in cache yet but is cacheable; the next request should be a HIT."},
	"EXPIRED":     {true, "The cached copy expired and was refetched; caching is working."},
	"REVALIDATED": {false, "The cached copy was revalidated with the origin; check the page cache TTL settings."},
	"UPDATING":    {false, "The cached copy is being refreshed after expiry under heavy load; retry in a moment."},
	"BYPASS":      {false, "The edge was told not to cache this page, usually by a no-cache header or a cookie."},
	"DYNAMIC":     {false, "The page is not considered cacheable by the edge; no page rule or cache setting covers it."},
}

type TestCacheController struct {
	ctx    context.Context
	cfg    *config.Config
	client *resty.Client
}

func NewTestCacheController(ctx context.Context, cfg *config.Config) *TestCacheController {
	client := resty.New().
		SetTimeout(cfg.CurlTimeout()).
		SetHeader("User-Agent", fmt.Sprintf("BigScoots-Cache/%s; %s", config.Version, cfg.SiteURL))
	return &TestCacheController{ctx: ctx, cfg: cfg, client: client}
}

func (c *TestCacheController) Test(r *fasthttp.RequestCtx) {
	rawURL := string(r.QueryArgs().Peek("url"))
	if rawURL == "" {
		rawURL = c.cfg.HomeURL()
	}
	if rawURL == "" {
		respondBadRequest(errors.New("url query parameter is required"), r)
		return
	}

	resp, err := c.client.R().SetContext(c.ctx).Get(rawURL)
	if err != nil {
		respondUnavailable(fmt.Errorf("fetch %s: %w", rawURL, err), r)
		return
	}

	header := plan.CacheStatusHeader(c.cfg)
	status := strings.ToUpper(resp.Header().Get(header))

	out := &testCacheResponse{Header: header, Status: status}
	if verdict, known := testCacheMessages[status]; known {
		out.Success = verdict.pass
		out.Message = verdict.message
	} else if status == "" {
		out.Message = fmt.Sprintf("No %s header on the response; the site does not appear to be served through the expected edge.", header)
	} else {
		out.Message = fmt.Sprintf("Unexpected cache status %q; please contact support.", status)
	}
	respondJSON(out, r)
}

func (c *TestCacheController) AddRoute(router *router.Router) {
	router.GET(TestCachePath, c.Test)
}
