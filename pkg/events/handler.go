package events

import (
	"context"
	"fmt"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/dispatch"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/repository"
	"github.com/rs/zerolog/log"
)

// Purger is the dispatch surface the handler needs.
type Purger interface {
	Purge(ctx context.Context, urls []string) (bool, string)
	PurgeAll(ctx context.Context) (bool, string)
}

// Expander resolves the related-URL set of an entity.
type Expander interface {
	Expand(ctx context.Context, entityID int) ([]string, error)
}

// Outcome reports what one event did.
type Outcome struct {
	Purged bool `json:"purged"`
	// Skipped names the policy that decided against purging, empty when a
	// purge ran (or failed).
	Skipped string `json:"skipped,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func skipped(reason string) Outcome { return Outcome{Skipped: reason} }

// Handler applies the purge policies to mutation events, synchronously.
// Rate-limit tokens collapse the hook cascades WordPress is famous for.
type Handler struct {
	cfg   *config.Config
	repo  repository.Repository
	exp   Expander
	disp  Purger
	guard *dispatch.Guard
}

func NewHandler(cfg *config.Config, repo repository.Repository, exp Expander, disp Purger, guard *dispatch.Guard) *Handler {
	return &Handler{cfg: cfg, repo: repo, exp: exp, disp: disp, guard: guard}
}

// Handle routes one event through its policy.
func (h *Handler) Handle(ctx context.Context, ev Event) Outcome {
	switch e := ev.(type) {
	case EntitySaved:
		return h.onEntitySaved(ctx, e)
	case EntityStatusChanged:
		return h.onEntityStatusChanged(ctx, e)
	case CommentStatusChanged:
		return h.onCommentStatusChanged(ctx, e)
	case CommentDeleted:
		return h.onCommentDeleted(ctx, e)
	case ThemeChanged:
		return h.onThemeChanged(ctx)
	case OrderStatusChanged:
		return h.onOrderStatusChanged(ctx, e)
	case UpgraderCompleted:
		return h.onUpgraderCompleted(ctx)
	case URLsRefreshed:
		return h.onURLsRefreshed(ctx, e)
	default:
		log.Warn().Str("kind", ev.Kind()).Msg("[event-handler] unknown event kind")
		return skipped("unknown_event")
	}
}

func (h *Handler) onEntitySaved(ctx context.Context, e EntitySaved) Outcome {
	if !h.cfg.AutoPurge {
		return skipped("auto_purge_disabled")
	}
	// A comment transition on this entity already purged it within the
	// current hook cascade.
	if h.guard.Suppressed(ctx, dispatch.EntityCause("comment_recent", e.ID)) {
		return skipped("comment_purge_just_ran")
	}
	entity, err := h.repo.EntityByID(ctx, e.ID)
	if err != nil {
		log.Err(err).Int("entity", e.ID).Msg("[event-handler] entity lookup failed")
		return skipped("entity_not_found")
	}
	if entity.Status != "publish" && entity.Status != "private" {
		return skipped("status_not_public")
	}
	if containsString(h.cfg.IgnoredPostTypes(), entity.Type) {
		return skipped("ignored_post_type")
	}

	cause := dispatch.EntityCause("post_saved", e.ID)
	if h.guard.Suppressed(ctx, cause) {
		return skipped("already_purged")
	}
	if !h.guard.ClaimInProgress(ctx, cause) {
		return skipped("purge_in_progress")
	}

	out := h.purgeEntity(ctx, e.ID)
	if out.Purged {
		h.guard.Suppress(ctx, cause, dispatch.DoneTTL)
	}
	return out
}

func (h *Handler) onEntityStatusChanged(ctx context.Context, e EntityStatusChanged) Outcome {
	if !h.cfg.AutoPurge {
		return skipped("auto_purge_disabled")
	}
	if !statusTransitionPurges(e.Old, e.New) {
		return skipped("transition_not_purgeable")
	}

	cause := dispatch.EntityCause("post_status", e.ID)
	if h.guard.Suppressed(ctx, cause) {
		return skipped("already_purged")
	}
	if !h.guard.ClaimInProgress(ctx, cause) {
		return skipped("purge_in_progress")
	}

	out := h.purgeEntity(ctx, e.ID)
	if out.Purged {
		h.guard.Suppress(ctx, cause, dispatch.DoneTTL)
	}
	return out
}

// statusTransitionPurges mirrors the publication lifecycle: entering and
// leaving the public states are the only transitions worth a purge.
func statusTransitionPurges(old, new string) bool {
	wasHidden := old == "future" || old == "draft" || old == "pending"
	isPublic := new == "publish" || new == "private"
	if wasHidden && isPublic {
		return true
	}
	wasPublic := old == "publish" || old == "private"
	return wasPublic && new == "draft"
}

func (h *Handler) onCommentStatusChanged(ctx context.Context, e CommentStatusChanged) Outcome {
	if !h.cfg.AutoPurgeOnComments {
		return skipped("comment_purge_disabled")
	}
	if !commentTransitionPurges(e.Old, e.New) {
		return skipped("transition_not_purgeable")
	}
	return h.purgeForComment(ctx, e.PostID)
}

// commentTransitionPurges: a comment appearing (→approved) or disappearing
// (approved→unapproved, approved→spam) changes the rendered page.
func commentTransitionPurges(old, new string) bool {
	if new == "approved" && old != "approved" {
		return true
	}
	return old == "approved" && (new == "unapproved" || new == "spam")
}

func (h *Handler) onCommentDeleted(ctx context.Context, e CommentDeleted) Outcome {
	if !h.cfg.AutoPurgeOnComments {
		return skipped("comment_purge_disabled")
	}
	if !e.WasApproved {
		return skipped("comment_was_not_visible")
	}
	return h.purgeForComment(ctx, e.PostID)
}

func (h *Handler) purgeForComment(ctx context.Context, postID int) Outcome {
	cause := dispatch.EntityCause("comment", postID)
	if h.guard.Suppressed(ctx, cause) {
		return skipped("already_purged")
	}
	if !h.guard.ClaimInProgress(ctx, cause) {
		return skipped("purge_in_progress")
	}

	var out Outcome
	if h.cfg.PurgeRelatedPagesOnComments {
		out = h.purgeEntity(ctx, postID)
	} else {
		entity, err := h.repo.EntityByID(ctx, postID)
		if err != nil || entity.Permalink == "" {
			log.Err(err).Int("entity", postID).Msg("[event-handler] comment post lookup failed")
			return skipped("entity_not_found")
		}
		ok, detail := h.disp.Purge(ctx, []string{entity.Permalink})
		out = Outcome{Purged: ok, Detail: detail}
	}

	if out.Purged {
		h.guard.Suppress(ctx, cause, dispatch.DoneShortTTL)
		// Lets the save-post hook of the same cascade skip its duplicate.
		h.guard.Suppress(ctx, dispatch.EntityCause("comment_recent", postID), dispatch.InProgressTTL)
	}
	return out
}

func (h *Handler) onThemeChanged(ctx context.Context) Outcome {
	cause := "theme_switch"
	if h.guard.Suppressed(ctx, cause) {
		return skipped("already_purged")
	}
	if !h.guard.ClaimInProgress(ctx, cause) {
		return skipped("purge_in_progress")
	}
	ok, detail := h.disp.PurgeAll(ctx)
	if ok {
		h.guard.Suppress(ctx, cause, dispatch.DoneTTL)
	}
	return Outcome{Purged: ok, Detail: detail}
}

func (h *Handler) onOrderStatusChanged(ctx context.Context, e OrderStatusChanged) Outcome {
	if !h.cfg.AutoPurgeWooProductPage {
		return skipped("woo_purge_disabled")
	}
	// Only transitions into fulfillment change stock/availability rendering;
	// processing→completed changes nothing the shop displays.
	if e.New != "processing" && e.New != "completed" {
		return skipped("transition_not_purgeable")
	}
	if e.Old == "processing" && e.New == "completed" {
		return skipped("transition_not_purgeable")
	}

	cause := dispatch.EntityCause("order", e.OrderID)
	if h.guard.Suppressed(ctx, cause) {
		return skipped("already_purged")
	}
	if !h.guard.ClaimInProgress(ctx, cause) {
		return skipped("purge_in_progress")
	}

	set := make([]string, 0, 8)
	seen := make(map[string]struct{}, 8)
	if site, err := h.repo.SiteInfo(ctx); err == nil && site.ShopPageLink != "" {
		seen[site.ShopPageLink] = struct{}{}
		set = append(set, site.ShopPageLink)
	}
	for _, productID := range e.ItemProductIDs {
		urls, err := h.exp.Expand(ctx, productID)
		if err != nil {
			log.Err(err).Int("product", productID).Msg("[event-handler] product expansion failed")
			continue
		}
		for _, u := range urls {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			set = append(set, u)
		}
	}
	if len(set) == 0 {
		return skipped("nothing_to_purge")
	}

	ok, detail := h.disp.Purge(ctx, set)
	if ok {
		h.guard.Suppress(ctx, cause, dispatch.DoneTTL)
	}
	return Outcome{Purged: ok, Detail: detail}
}

func (h *Handler) onUpgraderCompleted(ctx context.Context) Outcome {
	if !h.cfg.AutoPurgeOnUpgrade {
		return skipped("upgrade_purge_disabled")
	}
	cause := "upgrader_process_complete"
	if h.guard.Suppressed(ctx, cause) {
		return skipped("already_purged")
	}
	if !h.guard.ClaimInProgress(ctx, cause) {
		return skipped("purge_in_progress")
	}
	ok, detail := h.disp.PurgeAll(ctx)
	if ok {
		h.guard.Suppress(ctx, cause, dispatch.DoneLongTTL)
	}
	return Outcome{Purged: ok, Detail: detail}
}

func (h *Handler) onURLsRefreshed(ctx context.Context, e URLsRefreshed) Outcome {
	urls := make([]string, 0, len(e.URLs))
	causes := make([]string, 0, len(e.URLs))
	for _, u := range e.URLs {
		cause := dispatch.URLCause("rucss", u)
		if h.guard.Suppressed(ctx, cause) {
			continue
		}
		urls = append(urls, u)
		causes = append(causes, cause)
	}
	if len(urls) == 0 {
		return skipped("all_urls_suppressed")
	}

	ok, detail := h.disp.Purge(ctx, urls)
	if ok {
		for _, cause := range causes {
			h.guard.Suppress(ctx, cause, dispatch.URLSuppressionTTL)
		}
	}
	return Outcome{Purged: ok, Detail: detail}
}

// purgeEntity purges either the whole zone or the entity's related URL set,
// per configuration.
func (h *Handler) purgeEntity(ctx context.Context, entityID int) Outcome {
	if h.cfg.AutoPurgeAll {
		ok, detail := h.disp.PurgeAll(ctx)
		return Outcome{Purged: ok, Detail: detail}
	}
	urls, err := h.exp.Expand(ctx, entityID)
	if err != nil {
		log.Err(err).Int("entity", entityID).Msg("[event-handler] expansion failed")
		return Outcome{Detail: fmt.Sprintf("expansion failed: %s", err)}
	}
	ok, detail := h.disp.Purge(ctx, urls)
	return Outcome{Purged: ok, Detail: detail}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
