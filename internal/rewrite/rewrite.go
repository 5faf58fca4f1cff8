// Package rewrite fixes resource URLs in aggregated HTML so they stay
// correct when the gateway serves provider content from a different public
// path than the provider's own.
//
// Markup is treated as text: a regex scan finds src/href/action/background
// attributes and each value is re-expressed through standard URI reference
// resolution. There is no HTML parser; rewritten attributes come back with
// normalized double quotes.
package rewrite

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jonesrussell/goassemble/internal/logger"
)

// Mode selects how rewritten URLs are rendered.
type Mode int

const (
	// Absolute renders full URLs including scheme and host.
	Absolute Mode = iota
	// Relative strips scheme and host, keeping a root-relative path.
	Relative
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "absolute":
		return Absolute, nil
	case "relative":
		return Relative, nil
	default:
		return Relative, fmt.Errorf("unknown rewrite mode %q", s)
	}
}

// urlPattern matches tags carrying one of the rewritable attributes with a
// quoted value. Tags opening with '!' (declarations, comments) never match
// because '!' is excluded from the leading character class.
var urlPattern = regexp.MustCompile(
	`(?i)<([^!:>]+)(src|href|action|background)\s*=\s*('[^<']*'|"[^<"]*")([^>]*)>`)

// Rewriter re-expresses provider URL space in the gateway's visible URL
// space. Instances are immutable and safe for concurrent use.
type Rewriter struct {
	mode        Mode
	visibleBase *url.URL
	log         logger.Logger
}

// New creates a Rewriter. visibleBaseURL is the public URL prefix the
// gateway is reachable at; empty means the per-call base URL is used.
func New(mode Mode, visibleBaseURL string, log logger.Logger) (*Rewriter, error) {
	r := &Rewriter{mode: mode, log: log}
	if visibleBaseURL != "" {
		if !strings.HasSuffix(visibleBaseURL, "/") {
			visibleBaseURL += "/"
		}
		u, err := url.Parse(visibleBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse visible base url: %w", err)
		}
		r.visibleBase = u
	}
	return r, nil
}

// RewriteURL fixes a single URL found in a page fetched from baseURL at
// requestURL. URLs that cannot be expressed relative to the provider base
// pass through unchanged, as do empty and unparseable values.
func (r *Rewriter) RewriteURL(rawURL, requestURL, baseURL string) string {
	if rawURL == "" {
		return rawURL
	}

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		r.log.Warn("unparseable base url",
			logger.String("base_url", baseURL),
			logger.Error(err),
		)
		return rawURL
	}

	visible := r.visibleBase
	if visible == nil {
		visible = base
	}

	// Absolute provider-space URL of the page being rendered.
	requestURI := concatPath(base, requestURL)

	ref, err := url.Parse(rawURL)
	if err != nil {
		r.log.Debug("url kept unchanged",
			logger.String("url", rawURL),
		)
		return rawURL
	}

	// Standard reference resolution; dot segments are removed as part of it.
	resolved := requestURI.ResolveReference(ref)

	rel, ok := relativize(base, resolved)
	if !ok {
		r.log.Debug("url kept unchanged",
			logger.String("url", rawURL),
		)
		return rawURL
	}

	result := visible.ResolveReference(rel)
	if r.mode == Relative {
		result = removeServer(result)
	}

	r.log.Debug("url fixed",
		logger.String("from", rawURL),
		logger.String("to", result.String()),
	)
	return result.String()
}

// RewriteHTML rewrites every rewritable attribute value in input. The scan
// is single pass and non-overlapping; unmatched text passes through
// unchanged. The replacement is built by slice concatenation, so a literal
// '$' in a URL needs no escaping.
func (r *Rewriter) RewriteHTML(input, requestURL, baseURL string) string {
	matches := urlPattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	for _, m := range matches {
		// m holds pair offsets: 0-1 whole tag, then groups 1..4.
		b.WriteString(input[last:m[0]])

		quoted := input[m[6]:m[7]]
		value := quoted[1 : len(quoted)-1]

		b.WriteByte('<')
		b.WriteString(input[m[2]:m[3]]) // tag name and leading attributes
		b.WriteString(input[m[4]:m[5]]) // attribute name, original casing
		b.WriteString(`="`)
		b.WriteString(r.RewriteURL(value, requestURL, baseURL))
		b.WriteByte('"')
		b.WriteString(input[m[8]:m[9]]) // trailing attributes
		b.WriteByte('>')

		last = m[1]
	}
	b.WriteString(input[last:])
	return b.String()
}

// concatPath joins the base URL and a request path into one absolute URL,
// collapsing the duplicate slash at the seam.
func concatPath(base *url.URL, requestURL string) *url.URL {
	joined := strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(requestURL, "/")
	u := *base
	u.Path = joined
	u.RawQuery = ""
	u.Fragment = ""
	return &u
}

// relativize expresses target relative to base. It succeeds only when both
// share scheme and host and the base path is a prefix of the target path;
// otherwise ok is false and the caller keeps the original URL.
func relativize(base, target *url.URL) (rel *url.URL, ok bool) {
	if !strings.EqualFold(base.Scheme, target.Scheme) ||
		!strings.EqualFold(base.Host, target.Host) {
		return nil, false
	}
	if !strings.HasPrefix(target.Path, base.Path) {
		return nil, false
	}
	return &url.URL{
		Path:     strings.TrimPrefix(target.Path, base.Path),
		RawQuery: target.RawQuery,
		Fragment: target.Fragment,
	}, true
}

// removeServer strips scheme, host and port, keeping a root-relative URL.
func removeServer(u *url.URL) *url.URL {
	path := u.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &url.URL{
		Path:     path,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}
}
