package crawler

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"screenscrapehub/internal/config"
	"screenscrapehub/pkg/types"
)

// Rejection reasons reported by LinkExtractor.Inspect.
const (
	RejectIgnoredPrefix     = "ignored_prefix"
	RejectUnresolvable      = "unresolvable"
	RejectScheme            = "unsupported_scheme"
	RejectExtension         = "ignored_extension"
	RejectOtherHost         = "other_host"
	RejectOutsideParentPath = "outside_parent_path"
	RejectTooShallow        = "too_few_segments"
	RejectIgnoredSegment    = "ignored_segment"
	RejectNotIncluded       = "not_included"
	RejectExcluded          = "excluded"
	RejectSelf              = "self"
	RejectDuplicate         = "duplicate"
	RejectMaxLinks          = "max_links"
)

var ignoredPrefixes = []string{"#", "mailto:", "tel:", "javascript:", "data:"}

// LinkExtractor discovers article candidates on a seed page with a purely
// mechanical filter policy. It is immutable and safe for concurrent use.
type LinkExtractor struct {
	cfg             config.DiscoveryConfig
	ignoreSegments  map[string]struct{}
	includePatterns []*regexp.Regexp
	excludePatterns []*regexp.Regexp
}

// NewLinkExtractor compiles the discovery policy.
func NewLinkExtractor(cfg config.DiscoveryConfig) (*LinkExtractor, error) {
	include, err := compilePatterns(cfg.IncludePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exclude, err := compilePatterns(cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	segments := make(map[string]struct{}, len(cfg.IgnorePathSegments))
	for _, s := range cfg.IgnorePathSegments {
		segments[strings.ToLower(s)] = struct{}{}
	}
	return &LinkExtractor{
		cfg:             cfg,
		ignoreSegments:  segments,
		includePatterns: include,
		excludePatterns: exclude,
	}, nil
}

// Extract returns deduplicated candidates in first-seen order. Markup that
// cannot be parsed yields no links.
func (l *LinkExtractor) Extract(base *url.URL, rawHTML string) []types.LinkCandidate {
	return l.scan(base, rawHTML, nil)
}

// Inspect runs the same discovery as Extract and also reports every rejected
// anchor with its reason.
func (l *LinkExtractor) Inspect(base *url.URL, rawHTML string) types.LinkReport {
	report := types.LinkReport{Rejected: []types.RejectedLink{}}
	if base != nil {
		report.FinalURL = base.String()
	}
	report.HTMLLength = len(rawHTML)
	report.Links = l.scan(base, rawHTML, func(r types.RejectedLink) {
		report.Rejected = append(report.Rejected, r)
	})
	return report
}

func (l *LinkExtractor) scan(base *url.URL, rawHTML string, reject func(types.RejectedLink)) []types.LinkCandidate {
	links := []types.LinkCandidate{}
	if base == nil || strings.TrimSpace(rawHTML) == "" {
		return links
	}
	if reject == nil {
		reject = func(types.RejectedLink) {}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return links
	}
	resolveBase := documentBase(doc, base)
	self := NormalizeURL(base)
	parentPath := parentDirectory(base.Path)
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("href")
		href := strings.TrimSpace(raw)
		if href == "" || hasIgnoredPrefix(href) {
			reject(types.RejectedLink{Href: raw, Reason: RejectIgnoredPrefix})
			return
		}

		target, err := resolveBase.Parse(href)
		if err != nil {
			reject(types.RejectedLink{Href: raw, Reason: RejectUnresolvable})
			return
		}
		normalized := NormalizeURL(target)
		if reason := l.filter(base, target, normalized, self, parentPath); reason != "" {
			reject(types.RejectedLink{Href: raw, URL: normalized, Reason: reason})
			return
		}
		if _, dup := seen[normalized]; dup {
			reject(types.RejectedLink{Href: raw, URL: normalized, Reason: RejectDuplicate})
			return
		}
		if l.cfg.MaxLinks > 0 && len(links) >= l.cfg.MaxLinks {
			reject(types.RejectedLink{Href: raw, URL: normalized, Reason: RejectMaxLinks})
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, types.LinkCandidate{AbsoluteURL: normalized})
	})
	return links
}

// filter returns the first rejection reason for target, or "" to accept it.
func (l *LinkExtractor) filter(base, target *url.URL, normalized, self, parentPath string) string {
	scheme := strings.ToLower(target.Scheme)
	if scheme != "http" && scheme != "https" {
		return RejectScheme
	}
	if target.Host == "" {
		return RejectUnresolvable
	}

	lowerPath := strings.ToLower(target.Path)
	for _, ext := range l.cfg.IgnoreExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return RejectExtension
		}
	}

	if l.cfg.SameHost && normalizedHost(target) != normalizedHost(base) {
		return RejectOtherHost
	}

	if l.cfg.RestrictToParentPath {
		dir := strings.TrimRight(target.Path, "/") + "/"
		if !strings.HasPrefix(dir, parentPath) || dir == parentPath {
			return RejectOutsideParentPath
		}
	}

	segments := pathSegments(target.Path)
	if len(segments) < l.cfg.MinPathSegments {
		return RejectTooShallow
	}
	for _, seg := range segments {
		if _, ignored := l.ignoreSegments[strings.ToLower(seg)]; ignored {
			return RejectIgnoredSegment
		}
	}

	if len(l.includePatterns) > 0 {
		matched := false
		for _, pat := range l.includePatterns {
			if pat.MatchString(normalized) {
				matched = true
				break
			}
		}
		if !matched {
			return RejectNotIncluded
		}
	}
	for _, pat := range l.excludePatterns {
		if pat.MatchString(normalized) {
			return RejectExcluded
		}
	}

	if l.cfg.SkipSelf && normalized == self {
		return RejectSelf
	}
	return ""
}

// NormalizeURL renders u as scheme://host/path?query with a lower-case
// scheme and host, no default port, no fragment and "/" for an empty path.
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	n := *u
	n.Scheme = strings.ToLower(u.Scheme)
	n.Host = normalizedHost(u)
	n.User = nil
	n.Fragment = ""
	n.RawFragment = ""
	if n.Path == "" {
		n.Path = "/"
		n.RawPath = ""
	}
	return n.String()
}

func normalizedHost(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	scheme := strings.ToLower(u.Scheme)
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// documentBase honours <base href> when it resolves to an http(s) URL.
func documentBase(doc *goquery.Document, pageURL *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return pageURL
	}
	resolved, err := pageURL.Parse(strings.TrimSpace(href))
	if err != nil {
		return pageURL
	}
	switch strings.ToLower(resolved.Scheme) {
	case "http", "https":
		return resolved
	}
	return pageURL
}

// parentDirectory returns the directory above the seed path, so sibling
// sections of the seed are in scope: /news/releases/ -> /news/.
func parentDirectory(p string) string {
	parts := pathSegments(p)
	switch len(parts) {
	case 0:
		return "/"
	case 1:
		return "/" + parts[0] + "/"
	default:
		return "/" + strings.Join(parts[:len(parts)-1], "/") + "/"
	}
}

func pathSegments(p string) []string {
	raw := strings.Split(p, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func hasIgnoredPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range ignoredPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, raw := range patterns {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		pat, err := regexp.Compile(raw)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, pat)
	}
	return compiled, nil
}
