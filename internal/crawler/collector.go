package crawler

import (
	"context"
	"fmt"

	"github.com/romangod6/sitemapdump/internal/models"
	"github.com/romangod6/sitemapdump/internal/utils"
)

// Collector walks a two-level sitemap hierarchy: one sitemap index, then
// every sitemap it lists.
type Collector struct {
	fetcher Fetcher
	retry   RetryPolicy
	logger  *utils.Logger
	config  *CollectorConfig
}

type CollectorConfig struct {
	// Lenient falls back to a tolerant parse for documents that are not well-formed XML.
	Lenient bool
}

func NewCollector(fetcher Fetcher, retry RetryPolicy, logger *utils.Logger, config *CollectorConfig) *Collector {
	if retry == nil {
		retry = NoRetry
	}
	if config == nil {
		config = &CollectorConfig{Lenient: true}
	}
	return &Collector{
		fetcher: fetcher,
		retry:   retry,
		logger:  logger,
		config:  config,
	}
}

// Collect returns every URL listed in the site's child sitemaps that the
// site's URL pattern accepts. A failure on the sitemap index is returned;
// failures on child sitemaps go through the retry policy and at worst drop
// that one sitemap.
func (c *Collector) Collect(ctx context.Context, site *models.Website) (*models.CollectResult, error) {
	indexURL := site.IndexURL()
	c.logger.LogInfo("Downloading sitemap for %s", indexURL)

	body, err := c.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return nil, err
	}

	children, err := ParseSitemapIndex(body, c.config.Lenient)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", indexURL, err)
	}
	c.logger.LogDebug("Sitemap index %s lists %d sitemaps", indexURL, len(children))

	result := &models.CollectResult{URLs: models.NewURLSet()}

	for idx, child := range children {
		if child == "" {
			c.logger.LogWarn("Sitemap entry %d of %s has no <loc>, skipping", idx+1, indexURL)
			continue
		}

		locs, ok, err := c.collectChild(ctx, child)
		if err != nil {
			return nil, err
		}
		if !ok {
			c.logger.LogError("Giving up on %s", child)
			result.Skipped = append(result.Skipped, child)
			continue
		}

		added := 0
		for _, loc := range locs {
			if loc == "" || !site.Accepts(loc) {
				continue
			}
			if result.URLs.Add(loc) {
				added++
			}
		}
		c.logger.LogDebug("%s: %d entries, %d new matching URLs", child, len(locs), added)
		result.Fetched = append(result.Fetched, child)
	}

	return result, nil
}

// collectChild downloads one child sitemap, consulting the retry policy after
// each failure. The bool is false when the policy gave up. The error is only
// set when ctx is done.
func (c *Collector) collectChild(ctx context.Context, sitemapURL string) ([]string, bool, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		c.logger.LogInfo("Downloading part %s", sitemapURL)
		locs, err := c.fetchChild(ctx, sitemapURL)
		if err == nil {
			return locs, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}

		c.logger.LogError("Download failed (attempt %d): %v", attempt, err)
		if !c.retry.ShouldRetry(ctx, sitemapURL, attempt, err) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, false, ctxErr
			}
			return nil, false, nil
		}
	}
}

func (c *Collector) fetchChild(ctx context.Context, sitemapURL string) ([]string, error) {
	body, err := c.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	locs, err := ParseURLSet(body, c.config.Lenient)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sitemapURL, err)
	}
	return locs, nil
}
