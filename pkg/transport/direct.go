package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/rate"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/secret"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

const cloudflareAPIURL = "https://api.cloudflare.com/client/v4"

// Cloudflare throttles the purge endpoint aggressively; chunk fan-out is
// paced below the documented account limit.
const purgeCallsPerSecond = 4

// ErrNoCredentials means neither the email+key pair nor a token is configured.
var ErrNoCredentials = errors.New("transport: no cloudflare credentials configured")

type cfAPIError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type cfAPIResponse struct {
	Success bool         `json:"success"`
	Errors  []cfAPIError `json:"errors"`
}

// Direct talks to the Cloudflare API with the site's own credentials.
// Credentials are stored encrypted and decrypted per call, so key rotation
// between deploys needs no restart.
type Direct struct {
	cfg     *config.Config
	dec     *secret.Decrypter
	client  *resty.Client
	apiURL  string
	limiter rate.Limiter
	cancel  context.CancelFunc
}

func NewDirect(cfg *config.Config) (*Direct, error) {
	dec, err := secret.NewDecrypter(cfg.SecretKeyHex, cfg.SecretIVHex)
	if err != nil {
		return nil, fmt.Errorf("build credential decrypter: %w", err)
	}
	apiURL := cloudflareAPIURL
	if cfg.CFAPIURL != "" {
		apiURL = strings.TrimRight(cfg.CFAPIURL, "/")
	}
	client := resty.New().
		SetTimeout(cfg.CurlTimeout()).
		SetHeader("User-Agent", fmt.Sprintf("BigScoots-Cache/%s; %s", config.Version, cfg.SiteURL)).
		SetHeader("Cache-Control", "no-cache").
		SetHeader("Content-Type", "application/json")
	ctx, cancel := context.WithCancel(context.Background())
	limiter := rate.NewLimiter(ctx, purgeCallsPerSecond, purgeCallsPerSecond)
	return &Direct{cfg: cfg, dec: dec, client: client, apiURL: apiURL, limiter: limiter, cancel: cancel}, nil
}

// authHeaders decrypts and resolves the credential scheme: email+global key
// wins when both are present, otherwise a scoped token.
func (d *Direct) authHeaders() (map[string]string, error) {
	if d.cfg.CFEmailEnc != "" && d.cfg.CFAPIKeyEnc != "" {
		email, err := d.dec.Decrypt(d.cfg.CFEmailEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt cf email: %w", err)
		}
		key, err := d.dec.Decrypt(d.cfg.CFAPIKeyEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt cf api key: %w", err)
		}
		return map[string]string{"X-Auth-Email": email, "X-Auth-Key": key}, nil
	}
	if d.cfg.CFAPITokenEnc != "" {
		token, err := d.dec.Decrypt(d.cfg.CFAPITokenEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypt cf api token: %w", err)
		}
		return map[string]string{"Authorization": "Bearer " + token}, nil
	}
	return nil, ErrNoCredentials
}

func (d *Direct) purgeURL() (string, error) {
	zone, err := d.dec.Decrypt(d.cfg.CFZoneIDEnc)
	if err != nil {
		return "", fmt.Errorf("decrypt cf zone id: %w", err)
	}
	if zone == "" {
		return "", ErrNoCredentials
	}
	return fmt.Sprintf("%s/zones/%s/purge_cache", d.apiURL, zone), nil
}

// Send purges the items in chunks of 30, all chunks concurrently. A chunk
// that reaches the API but fails there is logged and not retried; only
// pre-dispatch failures (credentials, network) fail the call.
func (d *Direct) Send(ctx context.Context, items []string, mode Mode) error {
	if len(items) == 0 {
		return nil
	}
	url, err := d.purgeURL()
	if err != nil {
		return err
	}
	headers, err := d.authHeaders()
	if err != nil {
		return err
	}

	var bodyKey string
	switch mode {
	case ModeURL:
		bodyKey = "files"
	case ModeTag:
		bodyKey = "tags"
	case ModePrefix:
		bodyKey = "prefixes"
	default:
		return fmt.Errorf("transport: unknown purge mode %q", mode)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks(items) {
		i, chunk := i, chunk
		g.Go(func() error {
			if _, ok := d.limiter.Take(ctx); !ok {
				return ctx.Err()
			}
			resp, err := d.client.R().
				SetContext(ctx).
				SetHeaders(headers).
				SetBody(map[string][]string{bodyKey: chunk}).
				Post(url)
			if err != nil {
				return fmt.Errorf("purge chunk %d: %w", i+1, err)
			}
			if resp.IsError() {
				log.Error().
					Int("chunk", i+1).
					Int("status", resp.StatusCode()).
					Str("mode", string(mode)).
					Msg("[cf-transport] purge chunk rejected by cloudflare api")
			}
			return nil
		})
	}
	return g.Wait()
}

// PurgeEverything drops the whole zone: by hostname when the account supports
// prefix purge, `purge_everything` otherwise. Unlike chunked sends this call
// is synchronous and folds the API error payload into the returned error.
func (d *Direct) PurgeEverything(ctx context.Context) error {
	url, err := d.purgeURL()
	if err != nil {
		return err
	}
	headers, err := d.authHeaders()
	if err != nil {
		return err
	}

	if _, ok := d.limiter.Take(ctx); !ok {
		return ctx.Err()
	}

	var body any
	if d.cfg.CFSupportsPrefixPurge {
		body = map[string][]string{"hosts": {d.cfg.Hostname()}}
	} else {
		body = map[string]bool{"purge_everything": true}
	}

	var out cfAPIResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(url)
	if err != nil {
		return fmt.Errorf("purge everything: %w", err)
	}
	if resp.IsError() || (resp.IsSuccess() && !out.Success) {
		if len(out.Errors) > 0 {
			parts := make([]string, 0, len(out.Errors))
			for _, e := range out.Errors {
				parts = append(parts, fmt.Sprintf("%s (err code: %d)", e.Message, e.Code))
			}
			return errors.New(strings.Join(parts, " - "))
		}
		return fmt.Errorf("purge everything: unexpected status %d", resp.StatusCode())
	}
	return nil
}

func (d *Direct) Close() error {
	d.cancel()
	return d.client.Close()
}
