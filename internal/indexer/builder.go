// Package indexer turns a list of URLs into (key, url) rows sorted by a key
// captured from each URL.
package indexer

import (
	"fmt"
	"sort"

	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/models"
	"github.com/romangod6/sitemapdump/internal/pattern"
	"github.com/romangod6/sitemapdump/internal/utils"
)

type Builder struct {
	pattern *pattern.Pattern
	logger  *utils.Logger
}

// NewBuilder compiles the index pattern. The pattern must have at least one
// capture group; the first one written becomes the key.
func NewBuilder(expr string, logger *utils.Logger) (*Builder, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: index pattern is required", errs.ErrConfig)
	}

	p, err := pattern.Compile(expr)
	if err != nil {
		return nil, err
	}
	if p.NumGroups() < 1 {
		return nil, fmt.Errorf("%w: index pattern %q has no capture group", errs.ErrConfig, expr)
	}

	return &Builder{pattern: p, logger: logger}, nil
}

// Pattern returns the index pattern as given.
func (b *Builder) Pattern() string {
	return b.pattern.String()
}

// Key extracts the percent-decoded key of url.
func (b *Builder) Key(url string) (string, bool) {
	raw, ok := b.pattern.FirstGroup(url)
	if !ok {
		return "", false
	}
	return Unquote(raw), true
}

// Build returns one row per matching URL, stably sorted by key, and the URLs
// that did not match. Duplicate URLs produce duplicate rows.
func (b *Builder) Build(urls []string) ([]models.IndexRow, []string) {
	rows := make([]models.IndexRow, 0, len(urls))
	var unmatched []string

	for _, url := range urls {
		key, ok := b.Key(url)
		if !ok {
			b.logger.LogWarn("%s doesn't match index pattern", url)
			unmatched = append(unmatched, url)
			continue
		}
		rows = append(rows, models.IndexRow{Key: key, URL: url})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Key < rows[j].Key
	})

	return rows, unmatched
}
