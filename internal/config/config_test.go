package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "chrome", cfg.Fetch.Browser)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout.Duration)
	assert.Equal(t, 16, cfg.Worker.Concurrency)
	assert.True(t, cfg.Discovery.SameHost)
	assert.Equal(t, ExtractModeText, cfg.Extract.Mode)
}

func TestLoadFromReaderMergesOverDefaults(t *testing.T) {
	raw := `
server:
  addr: "127.0.0.1:9000"
fetch:
  browser: " Firefox "
  timeout: 12
  host_rate:
    requests: 2
    window: 1s
discovery:
  restrict_to_parent_path: true
  min_path_segments: 3
  ignore_path_segments: [Tag, tag, " feed "]
  ignore_extensions: [png, ".PDF"]
extract:
  mode: Readability
  max_chars: 2000
`
	cfg, err := LoadFromReader(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "firefox", cfg.Fetch.Browser)
	assert.Equal(t, 12*time.Second, cfg.Fetch.Timeout.Duration)
	assert.True(t, cfg.Fetch.HostRate.Enabled())
	assert.Equal(t, []string{"tag", "feed"}, cfg.Discovery.IgnorePathSegments)
	assert.Equal(t, []string{".png", ".pdf"}, cfg.Discovery.IgnoreExtensions)
	assert.Equal(t, 3, cfg.Discovery.MinPathSegments)
	assert.Equal(t, ExtractModeReadability, cfg.Extract.Mode)
	assert.Equal(t, 2000, cfg.Extract.MaxChars)
	assert.Equal(t, 16, cfg.Worker.Concurrency, "untouched sections keep defaults")
}

func TestLoadFromReaderEmptyDocument(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoadFromReaderRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":       "fetch:\n  bogus: 1\n",
		"bad duration":        "fetch:\n  timeout: soon\n",
		"zero workers":        "worker:\n  concurrency: 0\n",
		"batch beyond writes": "scrape:\n  batch_timeout: 10m\nserver:\n  write_timeout: 5m\n",
		"socks proxy":         "fetch:\n  proxy_url: socks5://127.0.0.1:1080\n",
		"bad pattern":         "discovery:\n  include_patterns: ['([']\n",
		"bad mode":            "extract:\n  mode: markdown\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(raw))
			require.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                "8080",
		"SCRAPEHUB_WORKERS":   "4",
		"SCRAPEHUB_BROWSER":   "Safari",
		"SCRAPEHUB_LOG_LEVEL": "DEBUG",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, "safari", cfg.Fetch.Browser)
	assert.Equal(t, "debug", cfg.Logging.Level)

	env["SCRAPEHUB_ADDR"] = "0.0.0.0:9999"
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr, "explicit addr wins over PORT")

	env["SCRAPEHUB_WORKERS"] = "-1"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestDurationUnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalJSON([]byte(`2.5`)))
	assert.Equal(t, 2500*time.Millisecond, d.Duration)

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load("../../configs/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 4*time.Minute, cfg.Scrape.BatchTimeout.Duration)
	assert.Equal(t, "en-US,en;q=0.9", cfg.Fetch.Headers["Accept-Language"])
	assert.False(t, cfg.Fetch.HostRate.Enabled())
	assert.Equal(t, ExtractModeText, cfg.Extract.Mode)
}
