package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"screenscrapehub/internal/crawler"
	"screenscrapehub/internal/fetcher"
	"screenscrapehub/internal/metrics"
)

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape the articles linked from a seed page and print JSON",
		Example: heredoc.Doc(`
			$ screenscrapehub scrape https://example.com/news/
			$ screenscrapehub scrape --browser firefox https://example.com/news/ > articles.json
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withScraper(c, opts, func(ctx context.Context, s *crawler.Scraper) (any, error) {
				return s.Scrape(ctx, args[0])
			})
		},
	}
}

func newLinksCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "links <url>",
		Short: "Show which anchors on a seed page are accepted as article links",
		Example: heredoc.Doc(`
			$ screenscrapehub links https://example.com/news/
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withScraper(c, opts, func(ctx context.Context, s *crawler.Scraper) (any, error) {
				return s.Discover(ctx, args[0])
			})
		},
	}
}

// withScraper builds a one-shot scraper, runs fn and prints its result.
func withScraper(c *cobra.Command, opts *rootOptions, fn func(context.Context, *crawler.Scraper) (any, error)) error {
	cfg, err := loadConfig(c, opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(fetcherOptions(cfg, logger))
	if err != nil {
		return fmt.Errorf("http fetcher: %w", err)
	}
	defer httpFetcher.Close()

	scraper, err := crawler.NewScraper(*cfg, httpFetcher, metrics.NewMetrics(), logger)
	if err != nil {
		return fmt.Errorf("scraper: %w", err)
	}
	defer scraper.Close()

	result, err := fn(c.Context(), scraper)
	if err != nil {
		return err
	}
	return printJSON(c.OutOrStdout(), result)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
