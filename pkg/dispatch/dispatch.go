package dispatch

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/classify"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/plan"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// SubmittedMessage is the optimistic user-facing outcome of purge
	// submissions; edge invalidation is eventually consistent.
	SubmittedMessage = "Your request to clear cache has been submitted! Please allow up to 30 seconds for this to take effect."

	stagingRefusal       = "This is a staging environment. Requests from staging sites are not cached, therefore cache clearing is not permitted."
	misconfiguredRefusal = "Cache clearing operation failed due to misconfigurations in BigScoots Cache. Please contact support for further assistance."
)

// LocalCacheFlusher drops caches living next to the origin (OPcode, object
// cache) after a whole-zone purge.
type LocalCacheFlusher interface {
	Flush(ctx context.Context) error
}

// Meterer counts purge outcomes.
type Meterer interface {
	IncPurge(mode string, outcome string)
}

// Dispatcher routes purge requests to the transport matching the resolved
// plan and owns the whole-zone purge guard.
type Dispatcher struct {
	cfg     *config.Config
	direct  transport.Transport
	relay   transport.Transport
	flusher LocalCacheFlusher
	meter   Meterer

	// purgeAllDone collapses repeated whole-zone triggers within this
	// process; cross-process suppression is the Guard's job.
	purgeAllDone atomic.Bool
}

func NewDispatcher(
	cfg *config.Config,
	direct transport.Transport,
	relay transport.Transport,
	flusher LocalCacheFlusher,
	meter Meterer,
) *Dispatcher {
	return &Dispatcher{cfg: cfg, direct: direct, relay: relay, flusher: flusher, meter: meter}
}

// Purge invalidates the given URLs. External-host and non-http entries are
// dropped up front. The boolean is the overall outcome; the string carries
// the error detail for logging and synchronous admin responses.
func (d *Dispatcher) Purge(ctx context.Context, urls []string) (bool, string) {
	if refused, detail := d.refuse(); refused {
		return false, detail
	}

	urls = d.ownURLs(urls)
	if len(urls) == 0 {
		return false, "no valid URLs to purge"
	}

	id := uuid.NewString()
	mode := plan.Resolve(d.cfg)
	log.Info().
		Str("invocation", id).
		Str("plan", string(mode)).
		Int("urls", len(urls)).
		Msg("[purge-dispatcher] dispatching purge")

	switch {
	case mode == plan.PerformancePlus:
		return d.outcome(id, d.sendClassified(ctx, d.relay, urls))
	case mode == plan.Standard && d.cfg.CFSupportsPrefixPurge:
		return d.outcome(id, d.sendClassified(ctx, d.direct, urls))
	default:
		// Standard account without prefix purge: exact URLs only.
		if err := d.direct.Send(ctx, urls, transport.ModeURL); err != nil {
			return d.outcome(id, err)
		}
		return d.outcome(id, nil)
	}
}

// sendClassified splits the URL set into prefix and tag buckets and issues
// one transport call per non-empty bucket, sequentially.
func (d *Dispatcher) sendClassified(ctx context.Context, t transport.Transport, urls []string) error {
	res := classify.Classify(urls)
	if res.Classification == classify.Empty {
		log.Error().Msg("[purge-dispatcher] classification produced no purgeable items")
		return nil
	}
	if len(res.PrefixURLs) > 0 {
		if err := t.Send(ctx, res.PrefixURLs, transport.ModePrefix); err != nil {
			return err
		}
	}
	if len(res.TagValues) > 0 {
		if err := t.Send(ctx, res.TagValues, transport.ModeTag); err != nil {
			return err
		}
	}
	return nil
}

// PurgeAll drops the whole zone once per process invocation; repeated
// triggers within the same process collapse into the first call. Local
// caches are flushed afterwards unless disabled.
func (d *Dispatcher) PurgeAll(ctx context.Context) (bool, string) {
	if refused, detail := d.refuse(); refused {
		return false, detail
	}
	if d.purgeAllDone.Swap(true) {
		return true, ""
	}

	id := uuid.NewString()
	mode := plan.Resolve(d.cfg)
	log.Info().Str("invocation", id).Str("plan", string(mode)).Msg("[purge-dispatcher] purging entire cache")

	t := d.direct
	if mode == plan.PerformancePlus {
		t = d.relay
	}
	if err := t.PurgeEverything(ctx); err != nil {
		d.purgeAllDone.Store(false)
		return d.outcome(id, err)
	}

	if !d.cfg.DisableLocalCacheFlush && d.flusher != nil {
		if err := d.flusher.Flush(ctx); err != nil {
			log.Err(err).Msg("[purge-dispatcher] local cache flush failed")
		}
	}
	return d.outcome(id, nil)
}

// ResetPurgeAllGuard is called at the start of each logical invocation
// (request or event batch) so the process-local guard spans one trigger
// chain, not the daemon lifetime.
func (d *Dispatcher) ResetPurgeAllGuard() {
	d.purgeAllDone.Store(false)
}

func (d *Dispatcher) refuse() (bool, string) {
	if plan.IsStaging(d.cfg) {
		log.Warn().Msg("[purge-dispatcher] " + stagingRefusal)
		return true, stagingRefusal
	}
	if plan.Resolve(d.cfg) == plan.Misconfigured {
		log.Error().Msg("[purge-dispatcher] " + misconfiguredRefusal)
		return true, misconfiguredRefusal
	}
	return false, ""
}

// ownURLs keeps deduplicated http(s) URLs on the site's own host.
func (d *Dispatcher) ownURLs(urls []string) []string {
	host := d.cfg.Hostname()
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !strings.HasPrefix(u, "http") {
			log.Warn().Str("url", u).Msg("[purge-dispatcher] dropping non-http URL")
			continue
		}
		if urlHost(u) != host {
			log.Warn().Str("url", u).Msg("[purge-dispatcher] dropping external-host URL")
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func (d *Dispatcher) outcome(id string, err error) (bool, string) {
	if err != nil {
		if d.meter != nil {
			d.meter.IncPurge("dispatch", "failure")
		}
		log.Err(err).Str("invocation", id).Msg("[purge-dispatcher] purge failed")
		return false, err.Error()
	}
	if d.meter != nil {
		d.meter.IncPurge("dispatch", "success")
	}
	return true, ""
}

func urlHost(u string) string {
	rest := u
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
