package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"screenscrapehub/internal/api"
	"screenscrapehub/internal/crawler"
	"screenscrapehub/internal/fetcher"
	"screenscrapehub/internal/metrics"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [flags]",
		Short: "Run the HTTP API",
		Example: heredoc.Doc(`
			$ screenscrapehub serve
			$ PORT=8080 screenscrapehub serve --log-level debug
		`),
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runServe(c, opts)
		},
	}
}

func runServe(c *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(c, opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	httpFetcher, err := fetcher.NewHTTPFetcher(fetcherOptions(cfg, logger))
	if err != nil {
		return fmt.Errorf("http fetcher: %w", err)
	}
	defer httpFetcher.Close()

	scraper, err := crawler.NewScraper(*cfg, httpFetcher, m, logger)
	if err != nil {
		return fmt.Errorf("scraper: %w", err)
	}
	m.RegisterQueueDepth(scraper.Pending)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(scraper, m, logger),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration,
		WriteTimeout:      cfg.Server.WriteTimeout.Duration,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.Duration)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
		scraper.Close()
	}()

	logger.Info("api server listening",
		"addr", cfg.Server.Addr,
		"browser", cfg.Fetch.Browser,
		"workers", cfg.Worker.Concurrency,
		"batch_timeout", cfg.Scrape.BatchTimeout.Duration,
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		<-shutdownDone
		return fmt.Errorf("server error: %w", err)
	}
	<-shutdownDone
	logger.Info("api server stopped")
	return nil
}
