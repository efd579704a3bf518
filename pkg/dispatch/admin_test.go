package dispatch

import (
	"context"
	"reflect"
	"testing"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/expand"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/repository"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/ttlcache"
)

type fakeRepo struct {
	entities map[int]*repository.Entity
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
	return &repository.Site{}, nil
}

func TestPurgeEntitiesBreakdown(t *testing.T) {
	ctx := context.Background()
	cfg := standardPlanConfig()
	cfg.ExcludedPostTypes = "attachment"

	repo := &fakeRepo{entities: map[int]*repository.Entity{
		1: {ID: 1, Type: "post", Status: "publish", Permalink: "https://example.com/one/"},
		2: {ID: 2, Type: "attachment", Status: "publish", Permalink: "https://example.com/two/"},
		3: {ID: 3, Type: "post", Status: "draft", Permalink: "https://example.com/three/"},
		4: {ID: 4, Type: "post", Status: "publish"},
	}}
	exp := expand.NewExpander(cfg, repo, ttlcache.NewMemory(ctx))
	direct := &fakeTransport{}
	admin := NewAdmin(cfg, repo, exp, NewDispatcher(cfg, direct, &fakeTransport{}, nil, nil))

	breakdown, ok, detail := admin.PurgeEntities(ctx, []int{1, 2, 3, 4, 99})
	if !ok {
		t.Fatalf("PurgeEntities failed: %s", detail)
	}
	if !reflect.DeepEqual(breakdown.ClearedCache, []int{1}) {
		t.Errorf("ClearedCache = %v", breakdown.ClearedCache)
	}
	if !reflect.DeepEqual(breakdown.PostDoesntExists, []int{99}) {
		t.Errorf("PostDoesntExists = %v", breakdown.PostDoesntExists)
	}
	if !reflect.DeepEqual(breakdown.PostPartOfIgnoredPostType, []int{2}) {
		t.Errorf("PostPartOfIgnoredPostType = %v", breakdown.PostPartOfIgnoredPostType)
	}
	if !reflect.DeepEqual(breakdown.PostStatusIsNotPublishOrPrivate, []int{3}) {
		t.Errorf("PostStatusIsNotPublishOrPrivate = %v", breakdown.PostStatusIsNotPublishOrPrivate)
	}
	if !reflect.DeepEqual(breakdown.NoPermalinkFound, []int{4}) {
		t.Errorf("NoPermalinkFound = %v", breakdown.NoPermalinkFound)
	}
	if len(direct.sends) != 1 {
		t.Errorf("dispatches = %d, want 1 batch for the whole request", len(direct.sends))
	}
}

func TestPurgeEntitiesAllInvalid(t *testing.T) {
	ctx := context.Background()
	cfg := standardPlanConfig()
	repo := &fakeRepo{entities: map[int]*repository.Entity{}}
	exp := expand.NewExpander(cfg, repo, ttlcache.NewMemory(ctx))
	admin := NewAdmin(cfg, repo, exp, NewDispatcher(cfg, &fakeTransport{}, &fakeTransport{}, nil, nil))

	breakdown, ok, _ := admin.PurgeEntities(ctx, []int{7, 8})
	if ok {
		t.Error("batch of invalid ids must not report success")
	}
	if !reflect.DeepEqual(breakdown.PostDoesntExists, []int{7, 8}) {
		t.Errorf("PostDoesntExists = %v", breakdown.PostDoesntExists)
	}
}

func TestPurgeURLsMixedBatch(t *testing.T) {
	ctx := context.Background()
	cfg := standardPlanConfig()
	repo := &fakeRepo{}
	exp := expand.NewExpander(cfg, repo, ttlcache.NewMemory(ctx))
	direct := &fakeTransport{}
	admin := NewAdmin(cfg, repo, exp, NewDispatcher(cfg, direct, &fakeTransport{}, nil, nil))

	invalid, ok, detail := admin.PurgeURLs(ctx, []string{
		"https://example.com/valid/",
		"https://foreign.example/x/",
		"gopher://example.com/y",
	})
	if !ok {
		t.Fatalf("PurgeURLs failed: %s", detail)
	}
	if !reflect.DeepEqual(invalid, []string{"https://foreign.example/x/", "gopher://example.com/y"}) {
		t.Errorf("invalid = %v", invalid)
	}
	if len(direct.sends) != 1 || len(direct.sends[0].items) != 1 {
		t.Errorf("sends = %v", direct.sends)
	}
}
