package eligibility

import (
	"strings"
)

// CacheTag derives the cache tag of a URL: the bare hostname plus
// `_front_page` for the site root, otherwise the hostname joined with the
// path, trailing slash stripped first, every `/` and `%` turned into `_`.
// Percent-encoded octets stay encoded; the tag is byte-stable for them.
func CacheTag(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	host, path := rest, ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		host, path = rest[:i], rest[i:]
	}
	if host == "" {
		return ""
	}
	if path == "" || path == "/" {
		return host + "_front_page"
	}
	path = strings.TrimRight(path, "/")
	path = strings.ReplaceAll(path, "/", "_")
	path = strings.ReplaceAll(path, "%", "_")
	return host + path
}
