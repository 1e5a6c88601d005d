package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures everything required to run the scrape service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Extract   ExtractConfig   `yaml:"extract"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	WriteTimeout      Duration `yaml:"write_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
}

// FetchConfig controls the browser-impersonating HTTP client.
type FetchConfig struct {
	Browser             string            `yaml:"browser"`
	Timeout             Duration          `yaml:"timeout"`
	DialTimeout         Duration          `yaml:"dial_timeout"`
	MaxBodyBytes        int64             `yaml:"max_body_bytes"`
	MaxRedirects        int               `yaml:"max_redirects"`
	MaxIdleConnsPerHost int               `yaml:"max_idle_conns_per_host"`
	ProxyURL            string            `yaml:"proxy_url"`
	Headers             map[string]string `yaml:"headers"`
	HostRate            RateLimitConfig   `yaml:"host_rate"`
}

// RateLimitConfig applies a token bucket per host.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// WorkerConfig bounds outbound fan-out across all in-flight scrapes.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
}

// ScrapeConfig holds per-batch limits.
type ScrapeConfig struct {
	BatchTimeout Duration `yaml:"batch_timeout"`
}

// DiscoveryConfig tunes which anchors on the seed page count as article links.
type DiscoveryConfig struct {
	SameHost             bool     `yaml:"same_host"`
	RestrictToParentPath bool     `yaml:"restrict_to_parent_path"`
	MinPathSegments      int      `yaml:"min_path_segments"`
	IgnorePathSegments   []string `yaml:"ignore_path_segments"`
	IgnoreExtensions     []string `yaml:"ignore_extensions"`
	IncludePatterns      []string `yaml:"include_patterns"`
	ExcludePatterns      []string `yaml:"exclude_patterns"`
	SkipSelf             bool     `yaml:"skip_self"`
	MaxLinks             int      `yaml:"max_links"`
}

// ExtractConfig controls HTML to text conversion.
type ExtractConfig struct {
	Mode     string   `yaml:"mode"`
	DropTags []string `yaml:"drop_tags"`
	MaxChars int      `yaml:"max_chars"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

const (
	ExtractModeText        = "text"
	ExtractModeReadability = "readability"
)

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: DurationFrom(10 * time.Second),
			WriteTimeout:      DurationFrom(5 * time.Minute),
			ShutdownTimeout:   DurationFrom(15 * time.Second),
		},
		Fetch: FetchConfig{
			Browser:             "chrome",
			Timeout:             DurationFrom(30 * time.Second),
			DialTimeout:         DurationFrom(10 * time.Second),
			MaxBodyBytes:        8 * 1024 * 1024,
			MaxRedirects:        10,
			MaxIdleConnsPerHost: 8,
			Headers:             map[string]string{},
		},
		Worker: WorkerConfig{
			Concurrency: 16,
			QueueSize:   1024,
		},
		Scrape: ScrapeConfig{
			BatchTimeout: DurationFrom(4 * time.Minute),
		},
		Discovery: DiscoveryConfig{
			SameHost: true,
			IgnoreExtensions: []string{
				".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
				".css", ".js", ".woff", ".woff2", ".ttf", ".eot",
				".pdf", ".zip", ".xml", ".mp3", ".mp4",
			},
			SkipSelf: true,
			MaxLinks: 200,
		},
		Extract: ExtractConfig{
			Mode: ExtractModeText,
			DropTags: []string{
				"script", "style", "noscript", "head", "template",
				"iframe", "svg", "canvas", "object", "embed",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := Default()
		cfg.normalise()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate enforces required invariants.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if c.Server.WriteTimeout.Duration > 0 && c.Scrape.BatchTimeout.Duration >= c.Server.WriteTimeout.Duration {
		return fmt.Errorf("scrape.batch_timeout (%s) must be shorter than server.write_timeout (%s)",
			c.Scrape.BatchTimeout, c.Server.WriteTimeout)
	}
	if c.Fetch.Timeout.Duration <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0 (got %s)", c.Fetch.Timeout)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if c.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must be >= 0 (got %d)", c.Fetch.MaxRedirects)
	}
	if c.Fetch.Browser == "" {
		return errors.New("fetch.browser must be set")
	}
	if c.Fetch.ProxyURL != "" {
		u, err := url.Parse(c.Fetch.ProxyURL)
		if err != nil {
			return fmt.Errorf("fetch.proxy_url: %w", err)
		}
		if u.Scheme != "http" || u.Host == "" {
			return fmt.Errorf("fetch.proxy_url must be an http:// proxy (got %q)", c.Fetch.ProxyURL)
		}
	}
	if rl := c.Fetch.HostRate; rl.Requests < 0 {
		return fmt.Errorf("fetch.host_rate.requests must be >= 0 (got %d)", rl.Requests)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0 (got %d)", c.Worker.Concurrency)
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be > 0 (got %d)", c.Worker.QueueSize)
	}
	if c.Scrape.BatchTimeout.Duration <= 0 {
		return fmt.Errorf("scrape.batch_timeout must be > 0 (got %s)", c.Scrape.BatchTimeout)
	}
	if c.Discovery.MinPathSegments < 0 {
		return fmt.Errorf("discovery.min_path_segments must be >= 0 (got %d)", c.Discovery.MinPathSegments)
	}
	if c.Discovery.MaxLinks < 0 {
		return fmt.Errorf("discovery.max_links must be >= 0 (got %d)", c.Discovery.MaxLinks)
	}
	for _, raw := range append(append([]string{}, c.Discovery.IncludePatterns...), c.Discovery.ExcludePatterns...) {
		if _, err := regexp.Compile(raw); err != nil {
			return fmt.Errorf("discovery pattern %q: %w", raw, err)
		}
	}
	switch c.Extract.Mode {
	case ExtractModeText, ExtractModeReadability:
	default:
		return fmt.Errorf("unsupported extract.mode %q", c.Extract.Mode)
	}
	if c.Extract.MaxChars < 0 {
		return fmt.Errorf("extract.max_chars must be >= 0 (got %d)", c.Extract.MaxChars)
	}
	return nil
}

func (c *Config) normalise() {
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	c.Fetch.Browser = strings.ToLower(strings.TrimSpace(c.Fetch.Browser))
	c.Fetch.ProxyURL = strings.TrimSpace(c.Fetch.ProxyURL)
	if c.Fetch.Headers == nil {
		c.Fetch.Headers = make(map[string]string)
	}
	c.Extract.Mode = strings.ToLower(strings.TrimSpace(c.Extract.Mode))
	if c.Extract.Mode == "" {
		c.Extract.Mode = ExtractModeText
	}
	c.Extract.DropTags = dedupeLower(c.Extract.DropTags)
	c.Discovery.IgnorePathSegments = dedupeLower(c.Discovery.IgnorePathSegments)

	exts := make([]string, 0, len(c.Discovery.IgnoreExtensions))
	for _, ext := range c.Discovery.IgnoreExtensions {
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.Discovery.IgnoreExtensions = dedupeLower(exts)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	return cleaned
}

// Enabled reports whether per-host pacing is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}
