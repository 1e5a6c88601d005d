package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"screenscrapehub/internal/config"
	"screenscrapehub/internal/fetcher"
	"screenscrapehub/internal/logging"
)

type rootOptions struct {
	configPath string
	addr       string
	workers    int
	browser    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "screenscrapehub [flags]",
		Short: "Article scraping service",
		Long: heredoc.Doc(`
			Discovers the article links on a seed page, fetches every article with a
			browser TLS fingerprint and returns their plain text as JSON.

			Without a subcommand the HTTP server is started.
		`),
		Example: heredoc.Doc(`
			$ screenscrapehub --config configs/config.yaml
			$ screenscrapehub serve --addr :9000 --workers 32
			$ screenscrapehub scrape https://example.com/news/
			$ screenscrapehub links https://example.com/news/
		`),
		SilenceUsage: true,
		RunE: func(c *cobra.Command, args []string) error {
			return runServe(c, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to YAML configuration (defaults apply when empty)")
	flags.StringVar(&opts.addr, "addr", "", "HTTP listen address, overrides server.addr")
	flags.IntVar(&opts.workers, "workers", 0, "Shared fetch worker count, overrides worker.concurrency")
	flags.StringVar(&opts.browser, "browser", "", fmt.Sprintf("Browser fingerprint (%s)", strings.Join(fetcher.ProfileNames(), ", ")))
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(opts), newScrapeCmd(opts), newLinksCmd(opts))
	return cmd
}

// loadConfig layers the YAML file, the environment and explicit flags.
func loadConfig(c *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	flags := c.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = opts.addr
	}
	if flags.Changed("workers") {
		cfg.Worker.Concurrency = opts.workers
	}
	if flags.Changed("browser") {
		cfg.Fetch.Browser = strings.ToLower(opts.browser)
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = strings.ToLower(opts.logLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(cfg.Logging, w)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return logger, nil
}

func fetcherOptions(cfg *config.Config, logger *slog.Logger) fetcher.Options {
	return fetcher.Options{
		Browser:             cfg.Fetch.Browser,
		Headers:             cfg.Fetch.Headers,
		Timeout:             cfg.Fetch.Timeout.Duration,
		DialTimeout:         cfg.Fetch.DialTimeout.Duration,
		MaxBodyBytes:        cfg.Fetch.MaxBodyBytes,
		MaxRedirects:        cfg.Fetch.MaxRedirects,
		MaxIdleConnsPerHost: cfg.Fetch.MaxIdleConnsPerHost,
		ProxyURL:            cfg.Fetch.ProxyURL,
		Logger:              logger,
	}
}
