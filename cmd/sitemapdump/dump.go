package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/romangod6/sitemapdump/config"
	"github.com/romangod6/sitemapdump/internal/app"
	"github.com/romangod6/sitemapdump/internal/crawler"
	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/models"
	"github.com/romangod6/sitemapdump/internal/pattern"
	"github.com/spf13/cobra"
)

func newDumpCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <domain>",
		Short: "Print every URL listed in a site's sitemaps",
		Long: `Download the sitemap index of <domain>, then every sitemap it lists, and
print the URLs found there one per line, sorted. With --url-pattern only URLs
matching the pattern from their first character are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDump(cmd.Context(), args[0])
		},
	}

	f := cmd.Flags()
	f.StringP("protocol", "p", "http", "Protocol used to reach the site")
	f.StringP("sitemap-path", "m", "/sitemap.xml", "Path of the sitemap index")
	f.StringP("url-pattern", "u", "", "Keep only URLs matching this regular expression")
	f.Int("retries", 3, "Retries per failed sitemap before skipping it")
	f.Duration("retry-backoff", time.Second, "Initial wait between retries, doubled after each one")
	f.Duration("timeout", 30*time.Second, "Per-request timeout")
	f.Duration("deadline", 0, "Abort the whole run after this long (0 for none)")
	f.String("user-agent", "", "User-Agent header sent with every request")
	f.Bool("interactive", false, "Ask before retrying a failed sitemap")
	f.Bool("strict", false, "Reject sitemaps that are not well-formed XML")

	c.bind(cmd, "collector.protocol", "protocol")
	c.bind(cmd, "collector.sitemappath", "sitemap-path")
	c.bind(cmd, "collector.urlpattern", "url-pattern")
	c.bind(cmd, "collector.maxretries", "retries")
	c.bind(cmd, "collector.retrybackoff", "retry-backoff")
	c.bind(cmd, "collector.timeout", "timeout")
	c.bind(cmd, "collector.deadline", "deadline")
	c.bind(cmd, "collector.useragent", "user-agent")
	c.bind(cmd, "collector.interactive", "interactive")
	c.bind(cmd, "collector.strict", "strict")

	return cmd
}

func (c *cli) runDump(ctx context.Context, domain string) error {
	cfg, logger, err := c.load()
	if err != nil {
		return err
	}
	defer logger.Close()

	var pat *pattern.Pattern
	if cfg.Collector.URLPattern != "" {
		if pat, err = pattern.Compile(cfg.Collector.URLPattern); err != nil {
			return err
		}
	}
	site := models.NewWebsite(domain, cfg.Collector.Protocol, cfg.Collector.SitemapPath, pat)

	store, err := openStore(cfg.Storage.DSN)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
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
			return crawler.NewCollector(fetcher, c.retryPolicy(cfg), logger, &crawler.CollectorConfig{
				Lenient: !cfg.Collector.Strict,
			})
		},
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Collector.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Collector.Deadline)
		defer cancel()
	}

	_, res, err := a.Collect(ctx, site)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(c.out)
	for _, url := range res.URLs.Sorted() {
		fmt.Fprintln(w, url)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: write urls: %w", errs.ErrIO, err)
	}

	if len(res.Skipped) > 0 {
		logger.LogWarn("%d sitemaps were skipped", len(res.Skipped))
	}
	logger.LogInfo("Done!")
	return nil
}

func (c *cli) retryPolicy(cfg *config.Config) crawler.RetryPolicy {
	if cfg.Collector.Interactive {
		return crawler.NewPromptRetry(c.in, c.errOut)
	}
	return crawler.NewBoundedRetry(cfg.Collector.MaxRetries, cfg.Collector.RetryBackoff, cfg.Collector.MaxBackoff)
}
