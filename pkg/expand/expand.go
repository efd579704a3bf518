package expand

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/plan"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/repository"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/ttlcache"
	"github.com/rs/zerolog/log"
)

// maxPaginatedPages bounds the size of one purge request; listings deeper
// than this are left to expire by TTL.
const maxPaginatedPages = 10

// countCacheTTL keeps expensive entity counts warm through purge storms.
const countCacheTTL = 3 * time.Hour

// Expander computes, for one mutated entity, every URL whose content may
// include it: the entity itself, its term listings, author and type archives,
// feeds and paginated variants.
type Expander struct {
	cfg   *config.Config
	repo  repository.Repository
	cache ttlcache.Cache
}

func NewExpander(cfg *config.Config, repo repository.Repository, cache ttlcache.Cache) *Expander {
	return &Expander{cfg: cfg, repo: repo, cache: cache}
}

// Expand resolves the entity and walks its listings. A missing entity
// returns repository.ErrEntityNotFound; an entity without a public URL
// returns repository.ErrNoPermalink so callers can tell "nothing to do"
// from "cannot resolve".
func (e *Expander) Expand(ctx context.Context, entityID int) ([]string, error) {
	entity, err := e.repo.EntityByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if entity.Permalink == "" {
		return nil, repository.ErrNoPermalink
	}

	set := newURLSet()

	permalink := entity.Permalink
	if entity.Status == "trash" {
		// Trashed slugs carry a __trashed suffix; the public URL to purge is
		// the one the entity had before trashing.
		permalink = strings.ReplaceAll(permalink, "__trashed", "")
		set.add(feedOf(permalink))
	}
	set.add(permalink)

	if e.cfg.DisableRelatedURLsPurge {
		return set.items, nil
	}

	e.addTermURLs(ctx, entity, set)
	e.addAuthorURLs(ctx, entity, set)
	e.addArchiveURLs(ctx, entity, set)

	home := e.cfg.HomeURL()
	if e.cfg.HomePageShowsPosts && home != permalink {
		set.add(home)
	}
	if plan.SupportsPrefixPurge(e.cfg) {
		set.add(home + "page/")
		if !e.cfg.BypassWPJSON {
			set.add(home + "wp-json/")
		}
	}
	e.addPostsPageURLs(ctx, set)

	return set.items, nil
}

func (e *Expander) addTermURLs(ctx context.Context, entity *repository.Entity, set *urlSet) {
	terms, err := e.repo.TermsFor(ctx, entity.ID)
	if err != nil {
		log.Err(err).Int("entity", entity.ID).Msg("[url-expander] term lookup failed")
		return
	}

	seenParents := make(map[int]struct{})
	for _, term := range terms {
		if !term.Public || term.Link == "" {
			continue
		}
		e.addListing(set, term.Link, term.Count)

		// Parent terms once, even when several children share one parent.
		parentID, taxonomy := term.ParentID, term.Taxonomy
		for parentID != 0 {
			if _, ok := seenParents[parentID]; ok {
				break
			}
			seenParents[parentID] = struct{}{}
			parent, err := e.repo.TermByID(ctx, taxonomy, parentID)
			if err != nil {
				log.Err(err).Int("term", parentID).Msg("[url-expander] parent term lookup failed")
				break
			}
			if parent.Public && parent.Link != "" {
				e.addListing(set, parent.Link, parent.Count)
			}
			parentID = parent.ParentID
		}
	}
}

func (e *Expander) addAuthorURLs(ctx context.Context, entity *repository.Entity, set *urlSet) {
	if entity.AuthorID == 0 {
		return
	}
	count, link, ok := e.cachedCount(ctx, fmt.Sprintf("bs_cache_author_count_%d", entity.AuthorID))
	if !ok {
		archive, err := e.repo.AuthorArchive(ctx, entity.AuthorID)
		if err != nil {
			log.Err(err).Int("author", entity.AuthorID).Msg("[url-expander] author lookup failed")
			return
		}
		count, link = archive.Count, archive.Link
		e.storeCount(ctx, fmt.Sprintf("bs_cache_author_count_%d", entity.AuthorID), count, link)
	}
	if link != "" {
		e.addListing(set, link, count)
	}
}

func (e *Expander) addArchiveURLs(ctx context.Context, entity *repository.Entity, set *urlSet) {
	key := "bs_cache_type_count_" + entity.Type
	count, link, ok := e.cachedCount(ctx, key)
	if !ok {
		archive, err := e.repo.ArchiveFor(ctx, entity.Type)
		if err != nil {
			log.Err(err).Str("type", entity.Type).Msg("[url-expander] archive lookup failed")
			return
		}
		if archive == nil {
			return
		}
		count, link = archive.Count, archive.Link
		e.storeCount(ctx, key, count, link)
	}
	// The site root is handled separately; purging it as an archive would
	// wipe the front page on every entity save.
	if link == "" || link == e.cfg.HomeURL() {
		return
	}
	e.addListing(set, link, count)
}

func (e *Expander) addPostsPageURLs(ctx context.Context, set *urlSet) {
	site, err := e.repo.SiteInfo(ctx)
	if err != nil {
		log.Err(err).Msg("[url-expander] site info lookup failed")
		return
	}
	if site.PostsPageLink == "" || site.PostsPageLink == e.cfg.HomeURL() {
		return
	}
	count, _, ok := e.cachedCount(ctx, "bs_cache_type_count_post")
	if !ok {
		if archive, err := e.repo.ArchiveFor(ctx, "post"); err == nil && archive != nil {
			count = archive.Count
			e.storeCount(ctx, "bs_cache_type_count_post", count, archive.Link)
		}
	}
	e.addListing(set, site.PostsPageLink, count)
}

// addListing adds a listing URL, its feed, and its paginated variants.
// Prefix-capable plans skip pagination: the listing's prefix purge already
// covers /page/N/.
func (e *Expander) addListing(set *urlSet, link string, count int) {
	link = strings.TrimRight(link, "/") + "/"
	set.add(link)
	set.add(feedOf(link))

	if plan.SupportsPrefixPurge(e.cfg) || !e.cfg.UsingPermalinks || e.cfg.PostsPerPage <= 0 {
		return
	}
	pages := int(math.Ceil(float64(count) / float64(e.cfg.PostsPerPage)))
	if pages > maxPaginatedPages {
		pages = maxPaginatedPages
	}
	for n := 2; n <= pages; n++ {
		set.add(fmt.Sprintf("%spage/%d/", link, n))
	}
}

func (e *Expander) cachedCount(ctx context.Context, key string) (count int, link string, ok bool) {
	v, found, err := e.cache.Get(ctx, key)
	if err != nil || !found {
		return 0, "", false
	}
	// Stored as "<count>|<link>".
	parts := strings.SplitN(v, "|", 2)
	count, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	if len(parts) == 2 {
		link = parts[1]
	}
	return count, link, true
}

func (e *Expander) storeCount(ctx context.Context, key string, count int, link string) {
	if err := e.cache.Set(ctx, key, fmt.Sprintf("%d|%s", count, link), countCacheTTL); err != nil {
		log.Err(err).Str("key", key).Msg("[url-expander] failed to cache count")
	}
}

func feedOf(link string) string {
	return strings.TrimRight(link, "/") + "/feed/"
}

// urlSet keeps insertion order while deduplicating.
type urlSet struct {
	items []string
	seen  map[string]struct{}
}

func newURLSet() *urlSet {
	return &urlSet{seen: make(map[string]struct{}, 16)}
}

func (s *urlSet) add(u string) {
	if u == "" {
		return
	}
	if _, ok := s.seen[u]; ok {
		return
	}
	s.seen[u] = struct{}{}
	s.items = append(s.items, u)
}
