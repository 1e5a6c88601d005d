package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenscrapehub/internal/config"
	"screenscrapehub/pkg/types"
)

func newLinkExtractor(t *testing.T, mutate func(*config.DiscoveryConfig)) *LinkExtractor {
	t.Helper()
	cfg := config.Default().Discovery
	if mutate != nil {
		mutate(&cfg)
	}
	l, err := NewLinkExtractor(cfg)
	require.NoError(t, err)
	return l
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func candidateURLs(links []types.LinkCandidate) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.AbsoluteURL)
	}
	return out
}

func TestExtractResolvesNormalisesAndDedupes(t *testing.T) {
	base := mustParse(t, "https://News.Example.com/world/index.html")
	page := `<html><body>
<a href="/world/a">A</a>
<a href="b">B</a>
<a href="https://NEWS.example.com:443/world/a#comments">A again</a>
<a href="../sport/c?id=1">C</a>
<a href="https://news.example.com">root</a>
<a href="/world/b">B again</a>
</body></html>`

	got := candidateURLs(newLinkExtractor(t, nil).Extract(base, page))
	assert.Equal(t, []string{
		"https://news.example.com/world/a",
		"https://news.example.com/world/b",
		"https://news.example.com/sport/c?id=1",
		"https://news.example.com/",
	}, got)
}

func TestExtractRootRelativeLinkOnce(t *testing.T) {
	base := mustParse(t, "https://example.com/blog")
	page := `<a href="/post/1">first</a><p>teaser</p><a href="/post/1">read more</a>`

	links := newLinkExtractor(t, nil).Extract(base, page)
	assert.Equal(t, []types.LinkCandidate{{AbsoluteURL: "https://example.com/post/1"}}, links)
}

func TestExtractSkipsMechanicalNonLinks(t *testing.T) {
	base := mustParse(t, "https://example.com/news/")
	page := `<a href="">empty</a>
<a href="#top">anchor</a>
<a href="mailto:desk@example.com">mail</a>
<a href="tel:+100">call</a>
<a href="JavaScript:void(0)">js</a>
<a href="data:text/html,hi">data</a>
<a href="ftp://example.com/file">ftp</a>
<a href="/img/photo.JPG">photo</a>
<a href="/feed.xml">feed</a>
<a href="https://elsewhere.org/story">external</a>
<a href="/news/">self</a>
<a href="/news/story-1">story</a>`

	report := newLinkExtractor(t, nil).Inspect(base, page)
	assert.Equal(t, []string{"https://example.com/news/story-1"}, candidateURLs(report.Links))

	reasons := make([]string, 0, len(report.Rejected))
	for _, r := range report.Rejected {
		reasons = append(reasons, r.Reason)
	}
	assert.Equal(t, []string{
		RejectIgnoredPrefix, RejectIgnoredPrefix, RejectIgnoredPrefix, RejectIgnoredPrefix,
		RejectIgnoredPrefix, RejectIgnoredPrefix,
		RejectScheme,
		RejectExtension, RejectExtension,
		RejectOtherHost,
		RejectSelf,
	}, reasons)
	assert.Equal(t, "https://example.com/news/", report.FinalURL)
	assert.Equal(t, len(page), report.HTMLLength)
}

func TestExtractHonoursBaseHref(t *testing.T) {
	base := mustParse(t, "https://example.com/a/b/page")
	page := `<html><head><base href="https://example.com/archive/"></head>
<body><a href="2024/story">story</a></body></html>`

	got := candidateURLs(newLinkExtractor(t, nil).Extract(base, page))
	assert.Equal(t, []string{"https://example.com/archive/2024/story"}, got)
}

func TestExtractParentPathAndSegmentRules(t *testing.T) {
	base := mustParse(t, "https://example.com/media-centre/news-releases/")
	page := `<a href="/media-centre/news-releases/2024/launch">launch</a>
<a href="/media-centre/speeches/2024/keynote">keynote</a>
<a href="/media-centre/">parent itself</a>
<a href="/careers/2024/jobs">careers</a>
<a href="/media-centre/tag/energy">tag</a>
<a href="/media-centre/x">shallow</a>`

	l := newLinkExtractor(t, func(c *config.DiscoveryConfig) {
		c.RestrictToParentPath = true
		c.MinPathSegments = 3
		c.IgnorePathSegments = []string{"tag", "category"}
	})
	report := l.Inspect(base, page)
	assert.Equal(t, []string{
		"https://example.com/media-centre/news-releases/2024/launch",
		"https://example.com/media-centre/speeches/2024/keynote",
	}, candidateURLs(report.Links))

	reasons := map[string]string{}
	for _, r := range report.Rejected {
		reasons[r.URL] = r.Reason
	}
	assert.Equal(t, RejectOutsideParentPath, reasons["https://example.com/media-centre/"])
	assert.Equal(t, RejectOutsideParentPath, reasons["https://example.com/careers/2024/jobs"])
	assert.Equal(t, RejectIgnoredSegment, reasons["https://example.com/media-centre/tag/energy"])
	assert.Equal(t, RejectTooShallow, reasons["https://example.com/media-centre/x"])
}

func TestExtractPatternsAndCap(t *testing.T) {
	base := mustParse(t, "https://example.com/")
	page := `<a href="/2024/one">1</a><a href="/2024/two">2</a><a href="/about">about</a>
<a href="/2024/three?amp=1">3</a><a href="/2024/four">4</a>`

	l := newLinkExtractor(t, func(c *config.DiscoveryConfig) {
		c.IncludePatterns = []string{`/20\d\d/`}
		c.ExcludePatterns = []string{`amp=1`}
		c.MaxLinks = 2
	})
	report := l.Inspect(base, page)
	assert.Equal(t, []string{"https://example.com/2024/one", "https://example.com/2024/two"}, candidateURLs(report.Links))

	reasons := map[string]string{}
	for _, r := range report.Rejected {
		reasons[r.URL] = r.Reason
	}
	assert.Equal(t, RejectNotIncluded, reasons["https://example.com/about"])
	assert.Equal(t, RejectExcluded, reasons["https://example.com/2024/three?amp=1"])
	assert.Equal(t, RejectMaxLinks, reasons["https://example.com/2024/four"])
}

func TestExtractAllowsOtherHostsWhenConfigured(t *testing.T) {
	base := mustParse(t, "https://example.com/")
	l := newLinkExtractor(t, func(c *config.DiscoveryConfig) { c.SameHost = false })
	got := candidateURLs(l.Extract(base, `<a href="http://Other.org:80">x</a>`))
	assert.Equal(t, []string{"http://other.org/"}, got)
}

func TestExtractIsTotal(t *testing.T) {
	l := newLinkExtractor(t, nil)
	base := mustParse(t, "https://example.com/")

	assert.Empty(t, l.Extract(base, ""))
	assert.Empty(t, l.Extract(base, "<<<not html at all"))
	assert.Empty(t, l.Extract(nil, `<a href="/x">x</a>`))
	assert.NotNil(t, l.Extract(base, ""), "empty results are an empty slice")
	assert.Equal(t, []string{"https://example.com/ok"},
		candidateURLs(l.Extract(base, `<div><a href="/ok">unterminated <p><a href="http://[::1">bad</a>`)))
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"HTTPS://Example.COM":               "https://example.com/",
		"http://example.com:80/a?b=1#frag":  "http://example.com/a?b=1",
		"https://example.com:8443/a":        "https://example.com:8443/a",
		"https://user:pw@example.com/secret": "https://example.com/secret",
		"http://[::1]:8080/x":               "http://[::1]:8080/x",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeURL(mustParse(t, in)), in)
	}
}

func TestParentDirectory(t *testing.T) {
	assert.Equal(t, "/", parentDirectory(""))
	assert.Equal(t, "/news/", parentDirectory("/news"))
	assert.Equal(t, "/media-centre/", parentDirectory("/media-centre/news-releases/"))
	assert.Equal(t, "/a/b/", parentDirectory("/a/b/c.html"))
}
