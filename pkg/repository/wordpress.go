package repository

import (
	"context"
	"fmt"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"resty.dev/v3"
)

const restNamespace = "/bigscoots-cache/v2"

// WordPress reads content metadata from the companion plugin's REST routes.
type WordPress struct {
	client *resty.Client
	base   string
}

// NewWordPress builds the REST client. The per-call timeout follows the
// configured purge timeout so a slow origin cannot stall event handling.
func NewWordPress(cfg *config.Config) *WordPress {
	client := resty.New().
		SetTimeout(cfg.CurlTimeout()).
		SetHeader("User-Agent", fmt.Sprintf("BigScoots-Cache/%s; %s", config.Version, cfg.SiteURL))
	return &WordPress{client: client, base: cfg.RestURL() + restNamespace}
}

func (w *WordPress) EntityByID(ctx context.Context, id int) (*Entity, error) {
	var out Entity
	resp, err := w.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("%s/entity/%d", w.base, id))
	if err != nil {
		return nil, fmt.Errorf("fetch entity %d: %w", id, err)
	}
	if resp.StatusCode() == 404 {
		return nil, ErrEntityNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch entity %d: unexpected status %d", id, resp.StatusCode())
	}
	return &out, nil
}

func (w *WordPress) TermsFor(ctx context.Context, entityID int) ([]Term, error) {
	var out []Term
	resp, err := w.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("%s/entity/%d/terms", w.base, entityID))
	if err != nil {
		return nil, fmt.Errorf("fetch terms of entity %d: %w", entityID, err)
	}
	if resp.StatusCode() == 404 {
		return nil, ErrEntityNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch terms of entity %d: unexpected status %d", entityID, resp.StatusCode())
	}
	return out, nil
}

func (w *WordPress) TermByID(ctx context.Context, taxonomy string, id int) (*Term, error) {
	var out Term
	resp, err := w.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("%s/term/%s/%d", w.base, taxonomy, id))
	if err != nil {
		return nil, fmt.Errorf("fetch term %s/%d: %w", taxonomy, id, err)
	}
	if resp.StatusCode() == 404 {
		return nil, ErrEntityNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch term %s/%d: unexpected status %d", taxonomy, id, resp.StatusCode())
	}
	return &out, nil
}

func (w *WordPress) AuthorArchive(ctx context.Context, authorID int) (*Archive, error) {
	var out Archive
	resp, err := w.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("%s/author/%d", w.base, authorID))
	if err != nil {
		return nil, fmt.Errorf("fetch author %d: %w", authorID, err)
	}
	if resp.StatusCode() == 404 {
		return nil, ErrEntityNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch author %d: unexpected status %d", authorID, resp.StatusCode())
	}
	return &out, nil
}

func (w *WordPress) ArchiveFor(ctx context.Context, entityType string) (*Archive, error) {
	var out Archive
	resp, err := w.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("%s/archive/%s", w.base, entityType))
	if err != nil {
		return nil, fmt.Errorf("fetch archive of %q: %w", entityType, err)
	}
	// No archive registered for this type.
	if resp.StatusCode() == 404 {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch archive of %q: unexpected status %d", entityType, resp.StatusCode())
	}
	return &out, nil
}

func (w *WordPress) SiteInfo(ctx context.Context) (*Site, error) {
	var out Site
	resp, err := w.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(w.base + "/site")
	if err != nil {
		return nil, fmt.Errorf("fetch site info: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch site info: unexpected status %d", resp.StatusCode())
	}
	return &out, nil
}

func (w *WordPress) Close() error {
	return w.client.Close()
}
