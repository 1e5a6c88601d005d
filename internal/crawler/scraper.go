package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"screenscrapehub/internal/config"
	"screenscrapehub/internal/fetcher"
	"screenscrapehub/internal/metrics"
	"screenscrapehub/internal/processor"
	"screenscrapehub/pkg/types"
)

// ErrInvalidSeed marks a seed URL that is missing, unparsable or not http(s).
var ErrInvalidSeed = errors.New("invalid seed url")

var errBatchDeadline = errors.New("batch deadline exceeded before the link completed")

// SeedError reports a seed page that could not be fetched. No partial result
// exists for such a request.
type SeedError struct {
	URL     string
	Failure *types.FetchFailure
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("seed %s: %v", e.URL, e.Failure)
}

func (e *SeedError) Unwrap() error {
	if e.Failure == nil {
		return nil
	}
	return e.Failure
}

// ValidateSeed parses raw and requires an absolute http or https URL.
func ValidateSeed(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidSeed)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: scheme must be http or https (got %q)", ErrInvalidSeed, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidSeed, raw)
	}
	return u, nil
}

// Scraper runs scrape batches: seed fetch, link discovery, then bounded
// concurrent per-link fetch and extraction.
type Scraper struct {
	sessions     fetcher.Sessions
	links        *LinkExtractor
	extractor    processor.Extractor
	pool         *WorkerPool
	limiter      *HostLimiter
	batchTimeout time.Duration
	metrics      *metrics.PrometheusMetrics
	logger       *slog.Logger
}

// NewScraper wires a scraper and its shared worker pool from configuration.
// Close must be called to stop the pool.
func NewScraper(cfg config.Config, sessions fetcher.Sessions, m *metrics.PrometheusMetrics, logger *slog.Logger) (*Scraper, error) {
	if sessions == nil {
		return nil, errors.New("scraper requires a fetcher")
	}
	if logger == nil {
		logger = slog.Default()
	}

	links, err := NewLinkExtractor(cfg.Discovery)
	if err != nil {
		return nil, err
	}
	pool, err := NewWorkerPool(context.Background(), cfg.Worker.Concurrency, cfg.Worker.QueueSize)
	if err != nil {
		return nil, err
	}

	batchTimeout := cfg.Scrape.BatchTimeout.Duration
	if batchTimeout <= 0 {
		batchTimeout = 4 * time.Minute
	}

	var limiter *HostLimiter
	if rl := cfg.Fetch.HostRate; rl.Enabled() {
		limiter = NewHostLimiter(RateLimiterSettings{Requests: rl.Requests, Window: rl.Window.Duration})
	}

	return &Scraper{
		sessions:     sessions,
		links:        links,
		extractor:    processor.NewTextExtractor(cfg.Extract, logger),
		pool:         pool,
		limiter:      limiter,
		batchTimeout: batchTimeout,
		metrics:      m,
		logger:       logger.With("component", "scraper"),
	}, nil
}

// Pending reports the shared worker queue depth.
func (s *Scraper) Pending() int {
	return s.pool.Pending()
}

// Close stops the worker pool. In-flight batches see their remaining links
// reported as timeouts.
func (s *Scraper) Close() {
	s.pool.Close()
}

// Scrape fetches the seed, discovers its article links and returns one result
// per link in discovery order.
func (s *Scraper) Scrape(ctx context.Context, seed string) (types.ScrapeResponse, error) {
	start := time.Now()
	seedURL, err := ValidateSeed(seed)
	if err != nil {
		s.metrics.ObserveScrape(metrics.OutcomeInvalidSeed)
		return nil, err
	}

	session := s.sessions.NewSession()
	page, err := s.fetchSeed(ctx, session, seedURL)
	if err != nil {
		s.metrics.ObserveScrape(metrics.OutcomeSeedFailed)
		return nil, err
	}

	links := s.links.Extract(page.BaseURL(), page.HTML)
	s.metrics.ObserveLinks(len(links))
	logger := s.logger.With("seed", seedURL.String())
	logger.Info("links discovered", "final_url", page.BaseURL().String(), "links", len(links))

	results := s.collect(ctx, session, links)
	s.metrics.ObserveScrape(metrics.OutcomeOK)
	s.metrics.ObserveBatch(time.Since(start))

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	logger.Info("scrape finished", "links", len(results), "failed", failed, "duration", time.Since(start))
	return results, nil
}

// Discover fetches the seed and reports accepted and rejected links without
// fetching any article.
func (s *Scraper) Discover(ctx context.Context, seed string) (types.LinkReport, error) {
	seedURL, err := ValidateSeed(seed)
	if err != nil {
		return types.LinkReport{}, err
	}
	page, err := s.fetchSeed(ctx, s.sessions.NewSession(), seedURL)
	if err != nil {
		return types.LinkReport{}, err
	}
	report := s.links.Inspect(page.BaseURL(), page.HTML)
	report.URL = seedURL.String()
	return report, nil
}

func (s *Scraper) fetchSeed(ctx context.Context, session fetcher.Fetcher, seedURL *url.URL) (*types.Page, error) {
	start := time.Now()
	res := session.Fetch(ctx, seedURL.String())
	s.metrics.ObserveFetch(metrics.TargetSeed, time.Since(start))

	switch r := res.(type) {
	case *types.Page:
		if r.URL == nil {
			r.URL = seedURL
		}
		return r, nil
	case *types.FetchFailure:
		s.logger.Warn("seed fetch failed", "seed", seedURL.String(), "reason", r.Reason(), "error", r.Err)
		return nil, &SeedError{URL: seedURL.String(), Failure: r}
	default:
		return nil, &SeedError{URL: seedURL.String(), Failure: &types.FetchFailure{
			URL:  seedURL.String(),
			Kind: types.ErrorKindConnection,
			Err:  fmt.Errorf("unexpected fetch result %T", res),
		}}
	}
}

// collect fans the links out over the shared pool and waits until every link
// has a result or the batch deadline passes.
func (s *Scraper) collect(ctx context.Context, session fetcher.Fetcher, links []types.LinkCandidate) types.ScrapeResponse {
	if len(links) == 0 {
		return types.ScrapeResponse{}
	}

	batchCtx, cancel := context.WithTimeout(ctx, s.batchTimeout)
	defer cancel()

	set := newResultSet(links)
	var wg sync.WaitGroup
	for i, link := range links {
		wg.Add(1)
		err := s.pool.Submit(batchCtx, func(workerCtx context.Context) {
			defer wg.Done()
			jobCtx, stop := joinContexts(batchCtx, workerCtx)
			defer stop()
			set.set(i, s.scrapeArticle(jobCtx, session, link.AbsoluteURL))
		})
		if err != nil {
			wg.Done()
			set.set(i, s.timeoutResult(link.AbsoluteURL, err))
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-batchCtx.Done():
	}

	results, missing := set.seal()
	if missing > 0 {
		s.logger.Warn("batch deadline reached", "unfinished", missing, "links", len(links))
	}
	return results
}

func (s *Scraper) scrapeArticle(ctx context.Context, session fetcher.Fetcher, rawURL string) types.ArticleResult {
	if err := ctx.Err(); err != nil {
		return s.timeoutResult(rawURL, err)
	}
	if target, err := url.Parse(rawURL); err == nil {
		if err := s.limiter.Wait(ctx, target.Hostname()); err != nil {
			return s.timeoutResult(rawURL, err)
		}
	}

	start := time.Now()
	res := session.Fetch(ctx, rawURL)
	s.metrics.ObserveFetch(metrics.TargetArticle, time.Since(start))

	switch r := res.(type) {
	case *types.Page:
		text := s.extract(r)
		s.metrics.ObserveArticle(metrics.ResultContent)
		return types.ContentResult(rawURL, text)
	case *types.FetchFailure:
		if ctx.Err() != nil && r.Kind != types.ErrorKindTimeout {
			r.Kind = types.ErrorKindTimeout
		}
		s.metrics.ObserveArticle(string(r.Kind))
		s.logger.Debug("article fetch failed", "url", rawURL, "reason", r.Reason())
		return types.ErrorResult(rawURL, r)
	default:
		s.metrics.ObserveArticle(string(types.ErrorKindConnection))
		return types.ErrorResult(rawURL, fmt.Errorf("unexpected fetch result %T", res))
	}
}

func (s *Scraper) extract(page *types.Page) (text string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("extractor panicked", "url", page.BaseURL(), "panic", r)
			text = ""
		}
	}()
	return s.extractor.Extract(page.BaseURL(), page.HTML)
}

func (s *Scraper) timeoutResult(rawURL string, err error) types.ArticleResult {
	s.metrics.ObserveArticle(string(types.ErrorKindTimeout))
	return types.ErrorResult(rawURL, &types.FetchFailure{URL: rawURL, Kind: types.ErrorKindTimeout, Err: err})
}

// joinContexts returns a context cancelled when either parent is done.
func joinContexts(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
