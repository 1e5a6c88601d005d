package fetcher

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	http "github.com/bogdanfinn/fhttp"
	tlsclient "github.com/bogdanfinn/tls-client"
	"golang.org/x/net/html/charset"

	"screenscrapehub/pkg/types"
)

// Fetcher retrieves a single page. Implementations never panic and report
// every failure as *types.FetchFailure.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) types.PageFetchResult
}

// Sessions hands out fetchers that share one connection pool but keep their
// own cookies, so cookies set by a seed page reach that scrape's article fetches.
type Sessions interface {
	NewSession() Fetcher
}

// Options controls HTTP fetching behaviour.
type Options struct {
	Browser             string
	Headers             map[string]string
	Timeout             time.Duration
	DialTimeout         time.Duration
	MaxBodyBytes        int64
	MaxRedirects        int
	MaxIdleConnsPerHost int
	ProxyURL            string
	RootCAs             *x509.CertPool
	Logger              *slog.Logger
}

// HTTPFetcher implements Fetcher over a browser-fingerprinted client. TLS
// ClientHello, HTTP/2 settings and header order all follow the profile.
type HTTPFetcher struct {
	client       tlsclient.HttpClient
	profile      Profile
	extraHeaders map[string]string
	timeout      time.Duration
	maxBodyBytes int64
	maxRedirects int
	// jar is nil on the process-wide fetcher and set per session.
	jar    http.CookieJar
	logger *slog.Logger
}

var gzipMagic = []byte{0x1f, 0x8b}

// NewHTTPFetcher constructs the process-wide fetcher.
func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 8 * 1024 * 1024
	}
	if opts.MaxRedirects < 0 {
		opts.MaxRedirects = 0
	}
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 8
	}
	if opts.Browser == "" {
		opts.Browser = "chrome"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	profile, err := LookupProfile(opts.Browser)
	if err != nil {
		return nil, err
	}

	idleTimeout := 90 * time.Second
	clientOpts := []tlsclient.HttpClientOption{
		tlsclient.WithClientProfile(profile.Client),
		tlsclient.WithTimeoutMilliseconds(int(opts.Timeout / time.Millisecond)),
		tlsclient.WithNotFollowRedirects(),
		tlsclient.WithCatchPanics(),
		tlsclient.WithDialer(net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}),
		tlsclient.WithTransportOptions(&tlsclient.TransportOptions{
			IdleConnTimeout:     &idleTimeout,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
			RootCAs:             opts.RootCAs,
		}),
	}
	if profile.RandomExtensionOrder {
		clientOpts = append(clientOpts, tlsclient.WithRandomTLSExtensionOrder())
	}
	if proxy := strings.TrimSpace(opts.ProxyURL); proxy != "" {
		if _, err := url.Parse(proxy); err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		clientOpts = append(clientOpts, tlsclient.WithProxyUrl(proxy))
	}

	client, err := tlsclient.NewHttpClient(tlsclient.NewNoopLogger(), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("build %s client: %w", profile.Name, err)
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &HTTPFetcher{
		client:       client,
		profile:      profile,
		extraHeaders: headers,
		timeout:      opts.Timeout,
		maxBodyBytes: opts.MaxBodyBytes,
		maxRedirects: opts.MaxRedirects,
		logger:       logger.With("component", "fetcher", "browser", profile.Name),
	}, nil
}

// NewSession returns a fetcher with a fresh cookie jar over the shared client.
func (f *HTTPFetcher) NewSession() Fetcher {
	session := *f
	session.jar = tlsclient.NewCookieJar()
	return &session
}

// Fetch downloads a single URL, following redirects. Only 2xx responses
// count as success.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) types.PageFetchResult {
	target, err := url.Parse(rawURL)
	if err != nil {
		return newFailure(rawURL, fmt.Errorf("parse url: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	resp, finalURL, err := f.follow(ctx, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		failure := newFailure(rawURL, err)
		f.logger.Debug("fetch failed", "url", rawURL, "reason", failure.Reason(), "error", err)
		return failure
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		f.logger.Debug("fetch rejected", "url", rawURL, "status", resp.StatusCode)
		return statusFailure(rawURL, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := f.readBody(resp)
	if err != nil {
		return newFailure(rawURL, err)
	}

	page := &types.Page{
		URL:             target,
		FinalURL:        finalURL,
		HTML:            body,
		ContentType:     resp.Header.Get("Content-Type"),
		StatusCode:      resp.StatusCode,
		Protocol:        resp.Proto,
		Headers:         nethttp.Header(resp.Header.Clone()),
		FetchedAt:       time.Now(),
		ResponseLatency: time.Since(start),
	}
	f.logger.Debug("fetched", "url", rawURL, "final_url", finalURL.String(), "status", resp.StatusCode,
		"proto", resp.Proto, "bytes", len(body), "latency", page.ResponseLatency)
	return page
}

// Close tears down pooled connections at process shutdown.
func (f *HTTPFetcher) Close() {
	f.client.CloseIdleConnections()
}

// follow issues the request and walks redirects itself so that every hop
// carries the profile headers and the session's cookies.
func (f *HTTPFetcher) follow(ctx context.Context, target *url.URL) (*http.Response, *url.URL, error) {
	current := target
	for hops := 0; ; hops++ {
		resp, err := f.roundTrip(ctx, current)
		if err != nil {
			return nil, current, err
		}
		location := resp.Header.Get("Location")
		if !isRedirect(resp.StatusCode) || location == "" {
			return resp, current, nil
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()

		if hops >= f.maxRedirects {
			return nil, current, fmt.Errorf("stopped after %d redirects", f.maxRedirects)
		}
		next, err := current.Parse(location)
		if err != nil {
			return nil, current, fmt.Errorf("redirect location %q: %w", location, err)
		}
		current = next
	}
}

func (f *HTTPFetcher) roundTrip(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header = f.profile.Header(f.extraHeaders)
	if f.jar != nil {
		if cookie := cookieHeader(f.jar.Cookies(u)); cookie != "" {
			req.Header["Cookie"] = []string{cookie}
			req.Header[http.HeaderOrderKey] = append(req.Header[http.HeaderOrderKey], "cookie")
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if f.jar != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			f.jar.SetCookies(u, cookies)
		}
	}
	return resp, nil
}

func cookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// readBody enforces the size cap, undoes the content encoding and converts
// the declared or sniffed charset to UTF-8.
func (f *HTTPFetcher) readBody(resp *http.Response) (string, error) {
	raw, err := readCapped(resp.Body, f.maxBodyBytes)
	if err != nil {
		return "", err
	}
	raw, err = decodeContent(raw, resp.Header.Get("Content-Encoding"), f.maxBodyBytes)
	if err != nil {
		return "", err
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		// Unknown charset label: hand back the bytes untouched.
		return string(raw), nil
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	return string(decoded), nil
}

func readCapped(r io.Reader, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit)
	}
	return raw, nil
}

// decodeContent undoes the declared content encoding. The client may already
// have decompressed the body, and servers mislabel encodings, so a body that
// does not decode is returned as received.
func decodeContent(raw []byte, encoding string, limit int64) ([]byte, error) {
	var reader io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		if !bytes.HasPrefix(raw, gzipMagic) {
			return raw, nil
		}
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return raw, nil
		}
		defer zr.Close()
		reader = zr
	case "br":
		reader = brotli.NewReader(bytes.NewReader(raw))
	default:
		return raw, nil
	}

	decoded, err := readCapped(reader, limit)
	switch {
	case err == nil:
		return decoded, nil
	case errors.Is(err, ErrBodyTooLarge):
		return nil, err
	case bytes.HasPrefix(raw, gzipMagic):
		return nil, err
	default:
		return raw, nil
	}
}

var _ Sessions = (*HTTPFetcher)(nil)
