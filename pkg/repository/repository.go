package repository

import (
	"context"
	"errors"
)

var (
	// ErrEntityNotFound means the id resolves to nothing on the WordPress side.
	ErrEntityNotFound = errors.New("repository: entity not found")
	// ErrNoPermalink means the entity exists but has no resolvable public URL.
	ErrNoPermalink = errors.New("repository: entity has no permalink")
)

// Entity is a published content object (post, page, product, ...).
type Entity struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Permalink string `json:"link"`
	AuthorID  int    `json:"author"`
	// PasswordProtected entities are never cacheable.
	PasswordProtected bool `json:"password_protected"`
	// BypassCache is the per-entity metadata opt-out set from the edit screen.
	BypassCache bool `json:"bypass_cache"`
}

// Term is a taxonomy term an entity is assigned to.
type Term struct {
	ID       int    `json:"id"`
	Taxonomy string `json:"taxonomy"`
	Public   bool   `json:"public"`
	Link     string `json:"link"`
	Count    int    `json:"count"`
	ParentID int    `json:"parent"`
}

// Archive describes a post-type archive: its URL and how many published
// entities it lists.
type Archive struct {
	Link  string `json:"link"`
	Count int    `json:"count"`
}

// Site carries the site-level links the expander needs.
type Site struct {
	PostsPageLink string `json:"posts_page_link"`
	ShopPageLink  string `json:"shop_page_link"`
}

// Repository is the read-only view of WordPress content the purge pipeline
// consumes. All lookups go over the REST API of the companion plugin.
type Repository interface {
	EntityByID(ctx context.Context, id int) (*Entity, error)
	// TermsFor returns the terms of every taxonomy the entity is assigned to,
	// public and private alike; callers filter on Term.Public.
	TermsFor(ctx context.Context, entityID int) ([]Term, error)
	// TermByID resolves a single term, used to walk parent chains.
	TermByID(ctx context.Context, taxonomy string, id int) (*Term, error)
	// AuthorArchive returns the author archive URL and the author's published
	// entity count.
	AuthorArchive(ctx context.Context, authorID int) (*Archive, error)
	// ArchiveFor returns the post-type archive for the entity type, or nil
	// when the type has no archive.
	ArchiveFor(ctx context.Context, entityType string) (*Archive, error)
	SiteInfo(ctx context.Context) (*Site, error)
}
