package dispatch

import (
	"context"
	"errors"
	"strings"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/expand"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/repository"
	"github.com/rs/zerolog/log"
)

// Breakdown is the per-entity outcome of an admin purge-by-ids request.
// Categories mirror the admin UI vocabulary.
type Breakdown struct {
	ClearedCache                    []int `json:"cleared_cache"`
	PostDoesntExists                []int `json:"post_doesnt_exists"`
	PostPartOfIgnoredPostType       []int `json:"post_part_of_ignored_post_type"`
	PostStatusIsNotPublishOrPrivate []int `json:"post_status_is_not_publish_or_private"`
	NoPermalinkFound                []int `json:"no_permalink_found"`
}

// Admin orchestrates the administrative purge entry points: per-entity
// validation, URL expansion and a single dispatch for the whole batch.
type Admin struct {
	cfg  *config.Config
	repo repository.Repository
	exp  *expand.Expander
	disp *Dispatcher
}

func NewAdmin(cfg *config.Config, repo repository.Repository, exp *expand.Expander, disp *Dispatcher) *Admin {
	return &Admin{cfg: cfg, repo: repo, exp: exp, disp: disp}
}

// PurgeEntities validates each id, expands the valid ones and purges their
// URL union. One bad id never aborts the batch; it lands in its category.
func (a *Admin) PurgeEntities(ctx context.Context, ids []int) (*Breakdown, bool, string) {
	breakdown := &Breakdown{}
	ignored := a.cfg.IgnoredPostTypes()
	var urls []string

	for _, id := range ids {
		entity, err := a.repo.EntityByID(ctx, id)
		if err != nil {
			if !errors.Is(err, repository.ErrEntityNotFound) {
				log.Err(err).Int("entity", id).Msg("[purge-admin] entity lookup failed")
			}
			breakdown.PostDoesntExists = append(breakdown.PostDoesntExists, id)
			continue
		}
		if containsString(ignored, entity.Type) {
			breakdown.PostPartOfIgnoredPostType = append(breakdown.PostPartOfIgnoredPostType, id)
			continue
		}
		if entity.Status != "publish" && entity.Status != "private" {
			breakdown.PostStatusIsNotPublishOrPrivate = append(breakdown.PostStatusIsNotPublishOrPrivate, id)
			continue
		}

		expanded, err := a.exp.Expand(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNoPermalink) {
				breakdown.NoPermalinkFound = append(breakdown.NoPermalinkFound, id)
			} else {
				breakdown.PostDoesntExists = append(breakdown.PostDoesntExists, id)
			}
			continue
		}
		urls = append(urls, expanded...)
		breakdown.ClearedCache = append(breakdown.ClearedCache, id)
	}

	if len(urls) == 0 {
		return breakdown, false, "no purgeable entities in the request"
	}
	ok, detail := a.disp.Purge(ctx, urls)
	return breakdown, ok, detail
}

// PurgeURLs splits the input into valid own-site URLs and everything else,
// purges the valid ones and reports the invalid ones back. The call succeeds
// when at least one valid URL was dispatched.
func (a *Admin) PurgeURLs(ctx context.Context, urls []string) (invalid []string, ok bool, detail string) {
	host := a.cfg.Hostname()
	valid := make([]string, 0, len(urls))
	for _, u := range urls {
		if !strings.HasPrefix(u, "http") || urlHost(u) != host {
			invalid = append(invalid, u)
			continue
		}
		valid = append(valid, u)
	}
	if len(valid) == 0 {
		return invalid, false, "no valid URLs in the request"
	}
	ok, detail = a.disp.Purge(ctx, valid)
	return invalid, ok, detail
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
