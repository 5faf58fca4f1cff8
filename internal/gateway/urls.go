package gateway

import (
	"net/url"
	"path/filepath"
	"strings"
)

// backendURL builds the absolute provider URL for relURL, which doubles as
// the cache key. Credentials are appended as query parameters so distinct
// users and locales never share a cache entry.
func (g *Gateway) backendURL(relURL string, creds *Credentials) string {
	u := joinURL(g.baseURL, relURL)
	if creds == nil {
		return u
	}

	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep +
		"user=" + url.QueryEscape(creds.User) +
		"&locale=" + url.QueryEscape(creds.Locale)
}

// localPath maps relURL onto the local mirror directory. The query string
// never takes part in the file path.
func (g *Gateway) localPath(relURL string) string {
	p := relURL
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return filepath.Join(g.localBase, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

// joinURL concatenates a base URL and a relative URL with exactly one slash
// at the seam.
func joinURL(base, rel string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(rel, "/") {
		return base + strings.TrimPrefix(rel, "/")
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(rel, "/") && rel != "" {
		return base + "/" + rel
	}
	return base + rel
}
