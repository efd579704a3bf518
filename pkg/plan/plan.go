package plan

import (
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
)

// Mode is the service plan the site runs on. It is derived from which
// credential sets are present, never stored.
type Mode string

const (
	// PerformancePlus routes purges through the managed relay server.
	PerformancePlus Mode = "Performance+"
	// Standard talks to the Cloudflare API directly with site-local credentials.
	Standard Mode = "Standard"
	// Misconfigured means neither credential set is complete; every purge
	// attempt fails loudly instead of silently doing nothing.
	Misconfigured Mode = "Misconfigured"
)

// Resolve derives the plan from the configured credentials. Relay credentials
// win when both sets are present.
func Resolve(cfg *config.Config) Mode {
	if cfg.MasterKey != "" && cfg.SiteID != "" && cfg.MasterURL != "" {
		return PerformancePlus
	}
	if cfg.CFZoneIDEnc != "" &&
		((cfg.CFEmailEnc != "" && cfg.CFAPIKeyEnc != "") || cfg.CFAPITokenEnc != "") {
		return Standard
	}
	return Misconfigured
}

// SupportsPrefixPurge reports whether the resolved plan may issue
// purge-by-prefix and purge-by-hostname calls.
func SupportsPrefixPurge(cfg *config.Config) bool {
	switch Resolve(cfg) {
	case PerformancePlus:
		return true
	case Standard:
		return cfg.CFSupportsPrefixPurge
	default:
		return false
	}
}

// CacheStatusHeader names the response header carrying the edge cache verdict
// for the resolved plan.
func CacheStatusHeader(cfg *config.Config) string {
	if Resolve(cfg) == PerformancePlus {
		return "x-bigscoots-cache-status"
	}
	return "cf-cache-status"
}

// IsStaging reports whether the site runs in a staging environment, where
// remote purges are refused.
func IsStaging(cfg *config.Config) bool {
	return cfg.Environment == "staging"
}
