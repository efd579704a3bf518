package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/ttlcache"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/xxh3"
)

// Token TTLs for the purge rate limiter. The short in-progress window
// collapses cascading hook chains; the longer windows suppress repeats of an
// already-finished purge.
const (
	InProgressTTL       = 5 * time.Second
	DoneShortTTL        = 30 * time.Second
	DoneTTL             = 60 * time.Second
	DoneLongTTL         = 120 * time.Second
	URLSuppressionTTL   = 30 * time.Minute
	purgingKeyPrefix    = "bs_cache_purging_"
	suppressedKeyPrefix = "bs_cache_already_purged_"
)

// Guard keeps the rate-limit tokens in the shared TTL cache. A lost race
// costs at most one duplicate purge, which is acceptable since purging is
// idempotent.
type Guard struct {
	cache ttlcache.Cache
}

func NewGuard(cache ttlcache.Cache) *Guard {
	return &Guard{cache: cache}
}

// ClaimInProgress atomically claims the in-progress token for a cause and
// reports whether this caller owns the purge. Cache errors fail open: a
// broken token store must never block purging.
func (g *Guard) ClaimInProgress(ctx context.Context, cause string) bool {
	claimed, err := g.cache.SetNX(ctx, purgingKeyPrefix+cause, "1", InProgressTTL)
	if err != nil {
		log.Err(err).Str("cause", cause).Msg("[purge-guard] failed to claim in-progress token")
		return true
	}
	return claimed
}

// Suppressed reports whether an identical purge finished within its
// suppression window.
func (g *Guard) Suppressed(ctx context.Context, cause string) bool {
	_, found, err := g.cache.Get(ctx, suppressedKeyPrefix+cause)
	if err != nil {
		log.Err(err).Str("cause", cause).Msg("[purge-guard] failed to read suppression token")
		return false
	}
	return found
}

// Suppress marks a cause as purged for the given window.
func (g *Guard) Suppress(ctx context.Context, cause string, ttl time.Duration) {
	if err := g.cache.Set(ctx, suppressedKeyPrefix+cause, "1", ttl); err != nil {
		log.Err(err).Str("cause", cause).Msg("[purge-guard] failed to set suppression token")
	}
}

// EntityCause builds a cause key scoped to one entity.
func EntityCause(kind string, entityID int) string {
	return fmt.Sprintf("%s_%d", kind, entityID)
}

// URLCause builds a cause key for URL-triggered purges from the normalized
// path, hashed so arbitrary paths stay within cache key limits.
func URLCause(kind, rawURL string) string {
	path := rawURL
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
	}
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[i:]
	} else {
		path = "/"
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(strings.TrimRight(path, "/"))
	return fmt.Sprintf("%s_%x", kind, xxh3.HashString(path))
}
