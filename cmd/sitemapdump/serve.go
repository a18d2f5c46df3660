package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/romangod6/sitemapdump/internal/api"
	"github.com/romangod6/sitemapdump/internal/app"
	"github.com/romangod6/sitemapdump/internal/crawler"
	"github.com/romangod6/sitemapdump/internal/utils"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve collect and index runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context())
		},
	}

	cmd.Flags().Int("port", 8080, "Port to listen on")
	c.bind(cmd, "server.port", "port")

	return cmd
}

func (c *cli) runServe(ctx context.Context) error {
	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer logger.Close()

	store, err := openStore(cfg.Storage.DSN)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	} else {
		logger.LogWarn("No --store given, runs will not be recorded")
	}

	fetcher := crawler.NewCollyFetcher(&crawler.FetcherConfig{
		UserAgent:   cfg.Collector.UserAgent,
		Timeout:     cfg.Collector.Timeout,
		MaxBodySize: cfg.Collector.MaxBodySize,
	})
	a := &app.App{
		Store:  store,
		Logger: logger,
		NewCollector: func() *crawler.Collector {
			// Nobody can answer a prompt here, so retries are always bounded.
			retry := crawler.NewBoundedRetry(cfg.Collector.MaxRetries, cfg.Collector.RetryBackoff, cfg.Collector.MaxBackoff)
			return crawler.NewCollector(fetcher, retry, logger, &crawler.CollectorConfig{
				Lenient: !cfg.Collector.Strict,
			})
		},
	}

	server := api.NewServer(cfg.Server.Port, a)

	errCh := make(chan error, 1)
	go func() {
		logger.LogInfo("Starting API server on port %d", cfg.Server.Port)
		errCh <- server.Start()
	}()

	return waitForShutdown(ctx, server, errCh, logger)
}

func waitForShutdown(ctx context.Context, server *api.Server, errCh <-chan error, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logger.LogInfo("Shutting down...")

	// Graceful server shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError("Error shutting down server: %v", err)
		return err
	}
	logger.LogInfo("Server shut down gracefully")
	return nil
}
