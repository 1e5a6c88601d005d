package fetcher

import (
	"fmt"
	"sort"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/bogdanfinn/tls-client/profiles"
)

// Profile pairs a client fingerprint (TLS ClientHello plus HTTP/2 settings)
// with the request headers the same browser sends on a top-level navigation,
// in the order it sends them.
type Profile struct {
	Name        string
	Client      profiles.ClientProfile
	Headers     [][2]string
	PseudoOrder []string
	// RandomExtensionOrder shuffles TLS extensions per connection, as
	// Chromium does since version 110.
	RandomExtensionOrder bool
}

var browserProfiles = map[string]Profile{
	"chrome": {
		Name:   "chrome",
		Client: profiles.Chrome_120,
		Headers: [][2]string{
			{"sec-ch-ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`},
			{"sec-ch-ua-mobile", "?0"},
			{"sec-ch-ua-platform", `"Windows"`},
			{"Upgrade-Insecure-Requests", "1"},
			{"User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
			{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"},
			{"Sec-Fetch-Site", "none"},
			{"Sec-Fetch-Mode", "navigate"},
			{"Sec-Fetch-User", "?1"},
			{"Sec-Fetch-Dest", "document"},
			{"Accept-Encoding", "gzip, deflate, br"},
			{"Accept-Language", "en-US,en;q=0.9"},
		},
		PseudoOrder:          []string{":method", ":authority", ":scheme", ":path"},
		RandomExtensionOrder: true,
	},
	"firefox": {
		Name:   "firefox",
		Client: profiles.Firefox_117,
		Headers: [][2]string{
			{"User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:117.0) Gecko/20100101 Firefox/117.0"},
			{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
			{"Accept-Language", "en-US,en;q=0.5"},
			{"Accept-Encoding", "gzip, deflate, br"},
			{"Upgrade-Insecure-Requests", "1"},
			{"Sec-Fetch-Dest", "document"},
			{"Sec-Fetch-Mode", "navigate"},
			{"Sec-Fetch-Site", "none"},
			{"Sec-Fetch-User", "?1"},
		},
		PseudoOrder: []string{":method", ":path", ":authority", ":scheme"},
	},
	"safari": {
		Name:   "safari",
		Client: profiles.Safari_16_0,
		Headers: [][2]string{
			{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
			{"Sec-Fetch-Site", "none"},
			{"Accept-Encoding", "gzip, deflate, br"},
			{"Sec-Fetch-Mode", "navigate"},
			{"User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Safari/605.1.15"},
			{"Accept-Language", "en-US,en;q=0.9"},
			{"Sec-Fetch-Dest", "document"},
		},
		PseudoOrder: []string{":method", ":scheme", ":path", ":authority"},
	},
}

// LookupProfile returns the named browser profile.
func LookupProfile(name string) (Profile, error) {
	p, ok := browserProfiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown browser profile %q (known: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists the supported browser profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(browserProfiles))
	for name := range browserProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Header builds the request header set in browser order. Keys keep the
// browser's spelling; overrides replace a profile value in place or are
// appended after the profile headers.
func (p Profile) Header(overrides map[string]string) http.Header {
	h := make(http.Header, len(p.Headers)+len(overrides)+2)
	order := make([]string, 0, len(p.Headers)+len(overrides)+1)
	spelled := make(map[string]string, len(p.Headers)+len(overrides))

	for _, kv := range p.Headers {
		lower := strings.ToLower(kv[0])
		h[kv[0]] = []string{kv[1]}
		order = append(order, lower)
		spelled[lower] = kv[0]
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lower := strings.ToLower(k)
		if existing, ok := spelled[lower]; ok {
			h[existing] = []string{overrides[k]}
			continue
		}
		h[k] = []string{overrides[k]}
		order = append(order, lower)
		spelled[lower] = k
	}

	h[http.HeaderOrderKey] = order
	if len(p.PseudoOrder) > 0 {
		h[http.PHeaderOrderKey] = append([]string(nil), p.PseudoOrder...)
	}
	return h
}
