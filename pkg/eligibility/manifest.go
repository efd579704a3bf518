package eligibility

import (
	"context"
	"fmt"
	"time"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/ttlcache"
	"github.com/rs/zerolog/log"
	"resty.dev/v3"
)

const (
	manifestCacheKey = "bs_cache_manifest_exists"
	manifestCacheTTL = time.Hour
)

// HTTPManifestProber checks for /manifest.txt with a HEAD request and caches
// the answer for an hour so the hot request path never waits on the origin.
type HTTPManifestProber struct {
	cfg    *config.Config
	cache  ttlcache.Cache
	client *resty.Client
}

func NewHTTPManifestProber(cfg *config.Config, cache ttlcache.Cache) *HTTPManifestProber {
	client := resty.New().
		SetTimeout(cfg.CurlTimeout()).
		SetHeader("User-Agent", fmt.Sprintf("BigScoots-Cache/%s; %s", config.Version, cfg.SiteURL))
	return &HTTPManifestProber{cfg: cfg, cache: cache, client: client}
}

func (p *HTTPManifestProber) ManifestExists(ctx context.Context) bool {
	if v, found, err := p.cache.Get(ctx, manifestCacheKey); err == nil && found {
		return v == "1"
	}

	exists := "0"
	resp, err := p.client.R().SetContext(ctx).Head(p.cfg.HomeURL() + "manifest.txt")
	if err != nil {
		log.Err(err).Msg("[manifest-prober] manifest lookup failed")
	} else if resp.IsSuccess() {
		exists = "1"
	}

	if err = p.cache.Set(ctx, manifestCacheKey, exists, manifestCacheTTL); err != nil {
		log.Err(err).Msg("[manifest-prober] failed to cache manifest state")
	}
	return exists == "1"
}

func (p *HTTPManifestProber) Close() error {
	return p.client.Close()
}
