package classify

import (
	"regexp"
	"strings"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/eligibility"
)

// Classification summarizes which buckets a URL set landed in.
type Classification string

const (
	// Empty is abnormal: no URL produced either a prefix or a tag.
	Empty      Classification = "empty"
	PrefixOnly Classification = "prefix_only"
	TagOnly    Classification = "tag_only"
	Partial    Classification = "partial"
)

// Result is the classified form of a raw URL set. Prefix entries are
// scheme-stripped host+path strings ending in `/`; tag entries are cache-tag
// values.
type Result struct {
	PrefixURLs     []string
	TagValues      []string
	Classification Classification
}

var (
	// hostnameRe matches URLs that are a bare hostname, optional trailing slash.
	hostnameRe = regexp.MustCompile(`^(https?://)?([^/]+)/?$`)
	// encodedRe matches percent-encoded octets; prefix purge cannot reliably
	// match those, so such URLs are purged by tag.
	encodedRe = regexp.MustCompile(`%[0-9a-fA-F]{2}`)
)

// Classify splits a raw URL set into prefix-purge and tag-purge buckets.
// Query strings are stripped first; each URL lands in exactly one bucket.
func Classify(urls []string) Result {
	var res Result
	seenPrefix := make(map[string]struct{}, len(urls))
	seenTag := make(map[string]struct{})

	for _, raw := range urls {
		u := raw
		if i := strings.IndexByte(u, '?'); i >= 0 {
			u = u[:i]
		}
		if u == "" {
			continue
		}

		switch {
		case hostnameRe.MatchString(u):
			addUnique(&res.TagValues, seenTag, eligibility.CacheTag(u))
		case encodedRe.MatchString(u):
			addUnique(&res.TagValues, seenTag, eligibility.CacheTag(u))
		case strings.HasSuffix(u, "/"):
			addUnique(&res.PrefixURLs, seenPrefix, stripScheme(u))
		default:
			// Prefix purge also matches the slash-less variant, so the
			// trailing slash is safe to add.
			addUnique(&res.PrefixURLs, seenPrefix, stripScheme(u+"/"))
		}
	}

	switch {
	case len(res.PrefixURLs) == 0 && len(res.TagValues) == 0:
		res.Classification = Empty
	case len(res.PrefixURLs) == 0:
		res.Classification = TagOnly
	case len(res.TagValues) == 0:
		res.Classification = PrefixOnly
	default:
		res.Classification = Partial
	}
	return res
}

func addUnique(bucket *[]string, seen map[string]struct{}, v string) {
	if v == "" {
		return
	}
	if _, ok := seen[v]; ok {
		return
	}
	seen[v] = struct{}{}
	*bucket = append(*bucket, v)
}

func stripScheme(u string) string {
	u = strings.TrimPrefix(u, "https://")
	return strings.TrimPrefix(u, "http://")
}
