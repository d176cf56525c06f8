package enrichcache

import (
	"net/url"
	"strings"
)

// NormalizeWebsite canonicalizes a website URL into a cache key:
// scheme and query dropped, host lowercased with a leading "www."
// removed, trailing slash trimmed. "https://WWW.Example.com/" and
// "example.com" map to the same key. The function is idempotent.
func NormalizeWebsite(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	withScheme := s
	if !strings.Contains(withScheme, "://") {
		withScheme = "https://" + withScheme
	}

	u, err := url.Parse(withScheme)
	if err != nil || u.Host == "" {
		// Not parseable as a URL. Strip what we can and lowercase.
		s = strings.TrimPrefix(s, "http://")
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "www.")
		s = strings.TrimSuffix(s, "/")
		return strings.ToLower(s)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimSuffix(u.Path, "/")
	return host + strings.ToLower(path)
}
