package transport

import "context"

// Mode selects how the CDN matches the items of a purge request.
type Mode string

const (
	// ModeURL purges exact URLs.
	ModeURL Mode = "url"
	// ModePrefix purges everything under scheme-stripped host+path prefixes.
	ModePrefix Mode = "prefix"
	// ModeTag purges everything labeled with the given cache tags.
	ModeTag Mode = "tag"
)

// chunkSize is the CDN API per-call item limit.
const chunkSize = 30

// Transport dispatches purge requests to the CDN, either directly or through
// the relay server. Items within one Send call share a single mode.
type Transport interface {
	Send(ctx context.Context, items []string, mode Mode) error
	PurgeEverything(ctx context.Context) error
}

func chunks(items []string) [][]string {
	out := make([][]string, 0, (len(items)+chunkSize-1)/chunkSize)
	for len(items) > chunkSize {
		out = append(out, items[:chunkSize])
		items = items[chunkSize:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
