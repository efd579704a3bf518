package events

import (
	"context"
	"testing"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/dispatch"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/repository"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/ttlcache"
)

type fakePurger struct {
	purges   [][]string
	purgeAll int
	ok       bool
}

func (f *fakePurger) Purge(_ context.Context, urls []string) (bool, string) {
	f.purges = append(f.purges, urls)
	if !f.ok {
		return false, "transport down"
	}
	return true, ""
}

func (f *fakePurger) PurgeAll(context.Context) (bool, string) {
	f.purgeAll++
	if !f.ok {
		return false, "transport down"
	}
	return true, ""
}

type fakeExpander struct {
	sets map[int][]string
}

func (f *fakeExpander) Expand(_ context.Context, id int) ([]string, error) {
	if urls, ok := f.sets[id]; ok {
		return urls, nil
	}
	return nil, repository.ErrEntityNotFound
}

type fakeRepo struct {
	entities map[int]*repository.Entity
	site     repository.Site
}

func (f *fakeRepo) EntityByID(_ context.Context, id int) (*repository.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return nil, repository.ErrEntityNotFound
	}
	return e, nil
}

func (f *fakeRepo) TermsFor(context.Context, int) ([]repository.Term, error) { return nil, nil }

func (f *fakeRepo) TermByID(context.Context, string, int) (*repository.Term, error) {
	return nil, repository.ErrEntityNotFound
}

func (f *fakeRepo) AuthorArchive(context.Context, int) (*repository.Archive, error) {
	return nil, repository.ErrEntityNotFound
}

func (f *fakeRepo) ArchiveFor(context.Context, string) (*repository.Archive, error) {
	return nil, nil
}

func (f *fakeRepo) SiteInfo(context.Context) (*repository.Site, error) {
	return &f.site, nil
}

type fixture struct {
	cfg    *config.Config
	repo   *fakeRepo
	exp    *fakeExpander
	purger *fakePurger
	h      *Handler
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	repo := &fakeRepo{entities: map[int]*repository.Entity{
		42: {ID: 42, Type: "post", Status: "publish", Permalink: "https://example.com/post/"},
	}}
	exp := &fakeExpander{sets: map[int][]string{
		42: {"https://example.com/post/", "https://example.com/category/a/"},
	}}
	purger := &fakePurger{ok: true}
	guard := dispatch.NewGuard(ttlcache.NewMemory(context.Background()))
	return &fixture{
		cfg:    cfg,
		repo:   repo,
		exp:    exp,
		purger: purger,
		h:      NewHandler(cfg, repo, exp, purger, guard),
	}
}

func autoPurgeConfig() *config.Config {
	return &config.Config{
		SiteURL:             "https://example.com",
		AutoPurge:           true,
		AutoPurgeOnComments: true,
	}
}

func TestEntitySavedPurgesRelatedURLs(t *testing.T) {
	f := newFixture(t, autoPurgeConfig())

	out := f.h.Handle(context.Background(), EntitySaved{ID: 42})
	if !out.Purged {
		t.Fatalf("event skipped: %s", out.Skipped)
	}
	if len(f.purger.purges) != 1 || len(f.purger.purges[0]) != 2 {
		t.Errorf("purges = %v, want one batch with the expanded set", f.purger.purges)
	}
}

func TestEntitySavedGates(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(*config.Config)
		repo func(*fakeRepo)
		want string
	}{
		{
			name: "auto purge disabled",
			cfg:  func(c *config.Config) { c.AutoPurge = false },
			want: "auto_purge_disabled",
		},
		{
			name: "missing entity",
			repo: func(r *fakeRepo) { delete(r.entities, 42) },
			want: "entity_not_found",
		},
		{
			name: "draft entity",
			repo: func(r *fakeRepo) { r.entities[42].Status = "draft" },
			want: "status_not_public",
		},
		{
			name: "ignored post type",
			cfg:  func(c *config.Config) { c.ExcludedPostTypes = "post" },
			want: "ignored_post_type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := autoPurgeConfig()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			f := newFixture(t, cfg)
			if tt.repo != nil {
				tt.repo(f.repo)
			}
			out := f.h.Handle(context.Background(), EntitySaved{ID: 42})
			if out.Purged || out.Skipped != tt.want {
				t.Errorf("outcome = %+v, want skip %q", out, tt.want)
			}
			if len(f.purger.purges) != 0 || f.purger.purgeAll != 0 {
				t.Error("nothing must be dispatched")
			}
		})
	}
}

func TestEntitySavedCollapsesRepeats(t *testing.T) {
	f := newFixture(t, autoPurgeConfig())
	ctx := context.Background()

	if out := f.h.Handle(ctx, EntitySaved{ID: 42}); !out.Purged {
		t.Fatalf("first save skipped: %s", out.Skipped)
	}
	out := f.h.Handle(ctx, EntitySaved{ID: 42})
	if out.Purged || out.Skipped != "already_purged" {
		t.Errorf("repeat save = %+v, want suppression", out)
	}
	if len(f.purger.purges) != 1 {
		t.Errorf("purges = %d, want 1", len(f.purger.purges))
	}
}

func TestEntitySavedPurgesWholeZoneWhenConfigured(t *testing.T) {
	cfg := autoPurgeConfig()
	cfg.AutoPurgeAll = true
	f := newFixture(t, cfg)

	out := f.h.Handle(context.Background(), EntitySaved{ID: 42})
	if !out.Purged {
		t.Fatalf("event skipped: %s", out.Skipped)
	}
	if f.purger.purgeAll != 1 || len(f.purger.purges) != 0 {
		t.Errorf("purgeAll = %d, purges = %v", f.purger.purgeAll, f.purger.purges)
	}
}

func TestEntityStatusTransitions(t *testing.T) {
	tests := []struct {
		old, new string
		purge    bool
	}{
		{"draft", "publish", true},
		{"pending", "publish", true},
		{"future", "private", true},
		{"publish", "draft", true},
		{"private", "draft", true},
		{"draft", "pending", false},
		{"publish", "publish", false},
		{"auto-draft", "draft", false},
	}
	for _, tt := range tests {
		f := newFixture(t, autoPurgeConfig())
		out := f.h.Handle(context.Background(), EntityStatusChanged{ID: 42, Old: tt.old, New: tt.new})
		if out.Purged != tt.purge {
			t.Errorf("%s -> %s: purged = %v, want %v (%s)", tt.old, tt.new, out.Purged, tt.purge, out.Skipped)
		}
	}
}

func TestCommentTransitions(t *testing.T) {
	tests := []struct {
		old, new string
		purge    bool
	}{
		{"unapproved", "approved", true},
		{"spam", "approved", true},
		{"approved", "unapproved", true},
		{"approved", "spam", true},
		{"unapproved", "spam", false},
		{"approved", "approved", false},
	}
	for _, tt := range tests {
		f := newFixture(t, autoPurgeConfig())
		out := f.h.Handle(context.Background(), CommentStatusChanged{CommentID: 9, PostID: 42, Old: tt.old, New: tt.new})
		if out.Purged != tt.purge {
			t.Errorf("%s -> %s: purged = %v, want %v (%s)", tt.old, tt.new, out.Purged, tt.purge, out.Skipped)
		}
	}
}

func TestCommentPurgeScope(t *testing.T) {
	// Default: canonical permalink only.
	f := newFixture(t, autoPurgeConfig())
	out := f.h.Handle(context.Background(), CommentStatusChanged{CommentID: 9, PostID: 42, Old: "unapproved", New: "approved"})
	if !out.Purged {
		t.Fatalf("event skipped: %s", out.Skipped)
	}
	if len(f.purger.purges) != 1 || len(f.purger.purges[0]) != 1 {
		t.Fatalf("purges = %v, want just the permalink", f.purger.purges)
	}
	if f.purger.purges[0][0] != "https://example.com/post/" {
		t.Errorf("purged %v", f.purger.purges[0])
	}

	// Opted in: full related set.
	cfg := autoPurgeConfig()
	cfg.PurgeRelatedPagesOnComments = true
	f = newFixture(t, cfg)
	out = f.h.Handle(context.Background(), CommentStatusChanged{CommentID: 9, PostID: 42, Old: "unapproved", New: "approved"})
	if !out.Purged {
		t.Fatalf("event skipped: %s", out.Skipped)
	}
	if len(f.purger.purges) != 1 || len(f.purger.purges[0]) != 2 {
		t.Errorf("purges = %v, want the expanded set", f.purger.purges)
	}
}

func TestCommentPurgeSuppressesFollowingSave(t *testing.T) {
	f := newFixture(t, autoPurgeConfig())
	ctx := context.Background()

	if out := f.h.Handle(ctx, CommentStatusChanged{CommentID: 9, PostID: 42, Old: "unapproved", New: "approved"}); !out.Purged {
		t.Fatalf("comment event skipped: %s", out.Skipped)
	}
	out := f.h.Handle(ctx, EntitySaved{ID: 42})
	if out.Purged || out.Skipped != "comment_purge_just_ran" {
		t.Errorf("save after comment purge = %+v, want suppression", out)
	}
}

func TestCommentDeleted(t *testing.T) {
	f := newFixture(t, autoPurgeConfig())
	ctx := context.Background()

	out := f.h.Handle(ctx, CommentDeleted{CommentID: 9, PostID: 42, WasApproved: false})
	if out.Purged || out.Skipped != "comment_was_not_visible" {
		t.Errorf("invisible comment = %+v", out)
	}

	out = f.h.Handle(ctx, CommentDeleted{CommentID: 9, PostID: 42, WasApproved: true})
	if !out.Purged {
		t.Errorf("approved comment deletion skipped: %s", out.Skipped)
	}
}

func TestThemeChangedPurgesEverythingOnce(t *testing.T) {
	f := newFixture(t, autoPurgeConfig())
	ctx := context.Background()

	if out := f.h.Handle(ctx, ThemeChanged{}); !out.Purged {
		t.Fatalf("theme switch skipped: %s", out.Skipped)
	}
	if out := f.h.Handle(ctx, ThemeChanged{}); out.Purged {
		t.Error("repeat theme switch must be suppressed")
	}
	if f.purger.purgeAll != 1 {
		t.Errorf("purgeAll = %d, want 1", f.purger.purgeAll)
	}
}

func TestOrderStatusChanged(t *testing.T) {
	cfg := autoPurgeConfig()
	cfg.AutoPurgeWooProductPage = true

	tests := []struct {
		old, new string
		purge    bool
	}{
		{"pending", "processing", true},
		{"pending", "completed", true},
		{"processing", "completed", false},
		{"pending", "cancelled", false},
	}
	for _, tt := range tests {
		f := newFixture(t, cfg)
		f.repo.site = repository.Site{ShopPageLink: "https://example.com/shop/"}
		f.exp.sets[101] = []string{"https://example.com/product/widget/"}

		out := f.h.Handle(context.Background(), OrderStatusChanged{
			OrderID: 7, ItemProductIDs: []int{101}, Old: tt.old, New: tt.new,
		})
		if out.Purged != tt.purge {
			t.Errorf("%s -> %s: purged = %v, want %v (%s)", tt.old, tt.new, out.Purged, tt.purge, out.Skipped)
			continue
		}
		if !tt.purge {
			continue
		}
		urls := f.purger.purges[0]
		if len(urls) != 2 || urls[0] != "https://example.com/shop/" || urls[1] != "https://example.com/product/widget/" {
			t.Errorf("purged %v, want shop page then product set", urls)
		}
	}
}

func TestOrderStatusChangedDisabled(t *testing.T) {
	f := newFixture(t, autoPurgeConfig())
	out := f.h.Handle(context.Background(), OrderStatusChanged{OrderID: 7, Old: "pending", New: "completed"})
	if out.Purged || out.Skipped != "woo_purge_disabled" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestUpgraderCompleted(t *testing.T) {
	f := newFixture(t, autoPurgeConfig())
	out := f.h.Handle(context.Background(), UpgraderCompleted{})
	if out.Purged || out.Skipped != "upgrade_purge_disabled" {
		t.Errorf("outcome = %+v", out)
	}

	cfg := autoPurgeConfig()
	cfg.AutoPurgeOnUpgrade = true
	f = newFixture(t, cfg)
	if out := f.h.Handle(context.Background(), UpgraderCompleted{}); !out.Purged {
		t.Fatalf("upgrade purge skipped: %s", out.Skipped)
	}
	if f.purger.purgeAll != 1 {
		t.Errorf("purgeAll = %d", f.purger.purgeAll)
	}
}

func TestURLsRefreshedSuppressesRepeats(t *testing.T) {
	f := newFixture(t, autoPurgeConfig())
	ctx := context.Background()

	ev := URLsRefreshed{URLs: []string{"https://example.com/a/", "https://example.com/b/"}}
	if out := f.h.Handle(ctx, ev); !out.Purged {
		t.Fatalf("first refresh skipped: %s", out.Skipped)
	}

	// Same URLs plus one new: only the new one goes out.
	ev.URLs = append(ev.URLs, "https://example.com/c/")
	out := f.h.Handle(ctx, ev)
	if !out.Purged {
		t.Fatalf("second refresh skipped: %s", out.Skipped)
	}
	if len(f.purger.purges) != 2 {
		t.Fatalf("purges = %v", f.purger.purges)
	}
	if len(f.purger.purges[1]) != 1 || f.purger.purges[1][0] != "https://example.com/c/" {
		t.Errorf("second batch = %v, want only the unseen URL", f.purger.purges[1])
	}

	out = f.h.Handle(ctx, URLsRefreshed{URLs: []string{"https://example.com/a/"}})
	if out.Purged || out.Skipped != "all_urls_suppressed" {
		t.Errorf("fully suppressed batch = %+v", out)
	}
}

func TestFailedPurgeDoesNotSuppress(t *testing.T) {
	f := newFixture(t, autoPurgeConfig())
	f.purger.ok = false
	ctx := context.Background()

	if out := f.h.Handle(ctx, ThemeChanged{}); out.Purged {
		t.Fatal("failed purge reported as purged")
	}
	// The in-progress claim still holds for its short window, but once it
	// lapses the event must be retryable; verify no done-marker was set by
	// going through a cause that was never claimed.
	f.purger.ok = true
	out := f.h.Handle(ctx, EntitySaved{ID: 42})
	if !out.Purged {
		t.Errorf("unrelated event affected by failed purge: %s", out.Skipped)
	}
}
