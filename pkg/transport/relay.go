package transport

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/rs/zerolog/log"
	"resty.dev/v3"
)

type relayMessage struct {
	RequestType  string   `json:"request_type"`
	ItemsToPurge []string `json:"items_to_purge,omitempty"`
	SiteHostname string   `json:"site_hostname,omitempty"`
}

type relayEnvelope struct {
	Message   string `json:"message"`
	Checksum  string `json:"checksum"`
	WebsiteID string `json:"website_id"`
}

type relayResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Relay sends signed purge requests to the master server, which holds the
// Cloudflare credentials for Performance+ sites.
type Relay struct {
	cfg    *config.Config
	client *resty.Client
}

func NewRelay(cfg *config.Config) *Relay {
	client := resty.New().
		SetTimeout(cfg.CurlTimeout()).
		SetHeader("User-Agent", fmt.Sprintf("BigScoots-Cache/%s; %s", config.Version, cfg.SiteURL)).
		SetHeader("Cache-Control", "no-cache").
		SetHeader("Content-Type", "application/json")
	return &Relay{cfg: cfg, client: client}
}

func (r *Relay) Send(ctx context.Context, items []string, mode Mode) error {
	if len(items) == 0 {
		return nil
	}
	var requestType string
	switch mode {
	case ModeURL:
		requestType = "purge_urls"
	case ModeTag:
		requestType = "purge_tags"
	case ModePrefix:
		requestType = "purge_prefix"
	default:
		return fmt.Errorf("transport: unknown purge mode %q", mode)
	}
	return r.post(ctx, relayMessage{RequestType: requestType, ItemsToPurge: items})
}

func (r *Relay) PurgeEverything(ctx context.Context) error {
	return r.post(ctx, relayMessage{RequestType: "purge_all", SiteHostname: r.cfg.Hostname()})
}

// post serializes the message, signs it with the shared master key and sends
// the envelope. A non-2xx answer or a `status: error` body is a hard failure
// carrying the relay's own message text.
func (r *Relay) post(ctx context.Context, msg relayMessage) error {
	message, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("serialize relay message: %w", err)
	}

	var out relayResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(relayEnvelope{
			Message:   string(message),
			Checksum:  Checksum(message, r.cfg.MasterKey),
			WebsiteID: r.cfg.SiteID,
		}).
		SetResult(&out).
		SetError(&out).
		Post(r.cfg.MasterURL)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	if resp.IsError() || out.Status == "error" {
		detail := out.Message
		if out.Error != "" {
			detail += " : " + out.Error
		}
		if detail == "" {
			detail = fmt.Sprintf("unexpected status %d", resp.StatusCode())
		}
		log.Error().Str("detail", detail).Msg("[relay-transport] master server rejected purge request")
		return fmt.Errorf("relay: %s", detail)
	}
	return nil
}

// Checksum is the hex HMAC-SHA1 of the serialized message under the shared
// master key.
func Checksum(message []byte, masterKey string) string {
	mac := hmac.New(sha1.New, []byte(masterKey))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func (r *Relay) Close() error {
	return r.client.Close()
}
