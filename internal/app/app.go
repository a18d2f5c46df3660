// Package app runs the collector and the indexer as recorded runs, shared by
// the CLI and the HTTP API.
package app

import (
	"context"
	"fmt"

	"github.com/romangod6/sitemapdump/internal/crawler"
	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/indexer"
	"github.com/romangod6/sitemapdump/internal/models"
	"github.com/romangod6/sitemapdump/internal/storage"
	"github.com/romangod6/sitemapdump/internal/utils"
)

type App struct {
	// Store is optional; without it runs are only logged.
	Store  storage.Store
	Logger *utils.Logger
	// NewCollector builds a collector per run, since retry policies keep per-run state.
	NewCollector func() *crawler.Collector
}

// Collect collects site and records the run and its URL set.
func (a *App) Collect(ctx context.Context, site *models.Website) (*models.Run, *models.CollectResult, error) {
	pattern := ""
	if site.URLPattern != nil {
		pattern = site.URLPattern.String()
	}

	run := models.NewRun(models.RunKindCollect, site.IndexURL(), pattern)
	if err := a.startRun(ctx, run); err != nil {
		return nil, nil, err
	}

	res, err := a.NewCollector().Collect(ctx, site)
	if err != nil {
		a.finishRun(run, 0, 0, err)
		return run, nil, err
	}

	if a.Store != nil {
		if err := a.Store.SaveURLs(ctx, run.ID, res.URLs.Sorted()); err != nil {
			a.Logger.LogError("Failed to save URLs of run %s: %v", run.ID, err)
			a.finishRun(run, res.URLs.Len(), len(res.Skipped), err)
			return run, res, err
		}
	}

	a.finishRun(run, res.URLs.Len(), len(res.Skipped), nil)
	return run, res, nil
}

// Index builds the index of urls, writes it to sinks and, with a store, records
// the rows under the run.
func (a *App) Index(ctx context.Context, b *indexer.Builder, source string, urls []string, sinks ...indexer.Sink) (*models.Run, *indexer.Result, error) {
	run := models.NewRun(models.RunKindIndex, source, b.Pattern())
	if err := a.startRun(ctx, run); err != nil {
		return nil, nil, err
	}

	if a.Store != nil {
		sinks = append(sinks, storage.NewIndexSink(a.Store, run.ID))
	}

	res, err := indexer.Run(ctx, b, urls, sinks...)
	if err != nil {
		a.finishRun(run, 0, 0, err)
		return run, nil, err
	}

	a.finishRun(run, len(res.Rows), len(res.Unmatched), nil)
	return run, res, nil
}

func (a *App) startRun(ctx context.Context, run *models.Run) error {
	a.Logger.LogDebug("Starting %s run %s for %s", run.Kind, run.ID, run.Source)
	if a.Store == nil {
		return nil
	}
	if err := a.Store.CreateRun(ctx, run); err != nil {
		return fmt.Errorf("%w: record run: %w", errs.ErrIO, err)
	}
	return nil
}

// finishRun records the outcome with a fresh context so a cancelled run is
// still marked failed.
func (a *App) finishRun(run *models.Run, items, warnings int, err error) {
	run.Finish(items, warnings, err)
	if a.Store == nil {
		return
	}
	if err := a.Store.FinishRun(context.Background(), run); err != nil {
		a.Logger.LogError("Failed to record run %s: %v", run.ID, err)
	}
}
