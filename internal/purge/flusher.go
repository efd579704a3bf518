package purge

import (
	"context"
	"fmt"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/rs/zerolog/log"
	"resty.dev/v3"
)

// CompanionFlusher asks the companion WordPress plugin to drop the caches
// living next to the origin (OPcode and object cache). Those cannot be
// reached from here directly.
type CompanionFlusher struct {
	cfg    *config.Config
	client *resty.Client
}

func NewCompanionFlusher(cfg *config.Config) *CompanionFlusher {
	client := resty.New().
		SetBaseURL(cfg.RestURL() + "/bigscoots-cache/v2").
		SetTimeout(cfg.CurlTimeout()).
		SetHeader("User-Agent", fmt.Sprintf("BigScoots-Cache/%s; %s", config.Version, cfg.SiteURL))
	return &CompanionFlusher{cfg: cfg, client: client}
}

func (f *CompanionFlusher) Flush(ctx context.Context) error {
	resp, err := f.client.R().SetContext(ctx).Post("/flush-local")
	if err != nil {
		return fmt.Errorf("flush local caches: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("flush local caches: origin answered %d", resp.StatusCode())
	}
	log.Info().Msg("[local-flusher] origin-side caches flushed")
	return nil
}

func (f *CompanionFlusher) Close() error {
	return f.client.Close()
}
