package fetcher

import (
	"strings"
	"testing"

	http "github.com/bogdanfinn/fhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profileOrder(p Profile) []string {
	order := make([]string, 0, len(p.Headers))
	for _, kv := range p.Headers {
		order = append(order, strings.ToLower(kv[0]))
	}
	return order
}

func TestProfileHeaderKeepsBrowserOrderAndSpelling(t *testing.T) {
	for _, name := range ProfileNames() {
		t.Run(name, func(t *testing.T) {
			p, err := LookupProfile(name)
			require.NoError(t, err)

			h := p.Header(nil)
			assert.Equal(t, profileOrder(p), h[http.HeaderOrderKey])
			assert.Equal(t, p.PseudoOrder, h[http.PHeaderOrderKey])
			for _, kv := range p.Headers {
				assert.Equal(t, []string{kv[1]}, h[kv[0]], kv[0])
			}
		})
	}
}

func TestProfileHeaderOverrides(t *testing.T) {
	p, err := LookupProfile("chrome")
	require.NoError(t, err)

	h := p.Header(map[string]string{
		"accept-language": "de-DE",
		"X-Trace":         "1",
	})

	assert.Equal(t, []string{"de-DE"}, h["Accept-Language"], "override keeps the browser's spelling")
	assert.NotContains(t, h, "accept-language")
	order := h[http.HeaderOrderKey]
	assert.Equal(t, profileOrder(p), order[:len(p.Headers)])
	assert.Equal(t, "x-trace", order[len(order)-1])
	assert.Equal(t, []string{"1"}, h["X-Trace"])
}

func TestLookupProfileIsCaseInsensitive(t *testing.T) {
	p, err := LookupProfile(" Firefox ")
	require.NoError(t, err)
	assert.Equal(t, "firefox", p.Name)
}
