// Package paginate decides whether a pagination chain continues and
// where it goes next.
//
// The decision is pure: given a parsed page, the rule, and the run's
// visit history, it either stops or yields the next absolute URL. Cycle
// and duplicate guards make termination independent of how long the
// next-page selector keeps matching.
package paginate

import (
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/webharvest/webharvest/internal/extract"
	"github.com/webharvest/webharvest/internal/model"
)

// Action is the paginator's verdict: continue to URL, or stop.
type Action struct {
	// Continue is true when another page should be fetched.
	Continue bool

	// URL is the absolute next-page URL; empty when Continue is false.
	URL string

	// Reason explains a stop decision, for the pagination-event log.
	Reason string
}

// Next evaluates the pagination rule against a parsed page.
//
// It stops when the rule is disabled, the page budget is spent, the
// next-page selector matches nothing or yields an empty link, or the
// resolved URL equals the current page (cycle guard) or any URL already
// visited in this run (duplicate guard). Relative links are resolved
// against currentURL. visited keys are normalized URLs (see Normalize).
func Next(root *html.Node, rule model.PaginationRule, pagesVisited int, currentURL string, visited map[string]bool) Action {
	if !rule.Enabled {
		return Action{Reason: "pagination disabled"}
	}
	if pagesVisited >= rule.MaxPages {
		return Action{Reason: "max pages reached"}
	}

	sel := rule.NextSelector
	if sel.Attr == "" {
		sel.Attr = "href"
	}

	href, ok, err := extract.First(root, sel)
	if err != nil {
		slog.Warn("next-page selector failed", "selector", sel.Expr, "error", err)
		return Action{Reason: "next selector error"}
	}
	if !ok || href == "" {
		return Action{Reason: "no next link"}
	}

	next := resolve(currentURL, href)
	if next == "" {
		return Action{Reason: "unresolvable next link"}
	}

	normalized := Normalize(next)
	if normalized == Normalize(currentURL) {
		return Action{Reason: "next link points at current page"}
	}
	if visited[normalized] {
		return Action{Reason: "next link already visited"}
	}

	return Action{Continue: true, URL: next}
}

// resolve turns href into an absolute URL relative to base. Returns ""
// for links that cannot lead to another page.
func resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") {
		return ""
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// Normalize canonicalizes a URL for visit-set membership: fragment
// removed, scheme and host lowercased, empty path treated as "/".
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
