package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/romangod6/sitemapdump/internal/pattern"
)

// Website is a site whose sitemap index is collected. It is not modified after NewWebsite.
type Website struct {
	Domain      string
	Protocol    string
	SitemapPath string
	URLPattern  *pattern.Pattern
}

// NewWebsite fills in the default protocol and sitemap path. pat may be nil to accept every URL.
func NewWebsite(domain, protocol, sitemapPath string, pat *pattern.Pattern) *Website {
	if protocol == "" {
		protocol = "http"
	}
	if sitemapPath == "" {
		sitemapPath = "/sitemap.xml"
	}
	return &Website{
		Domain:      domain,
		Protocol:    protocol,
		SitemapPath: sitemapPath,
		URLPattern:  pat,
	}
}

// IndexURL returns the location of the top-level sitemap index.
func (w *Website) IndexURL() string {
	return fmt.Sprintf("%s://%s%s", w.Protocol, w.Domain, w.SitemapPath)
}

// Accepts reports whether url passes the website's URL pattern.
func (w *Website) Accepts(url string) bool {
	return w.URLPattern == nil || w.URLPattern.MatchString(url)
}

// URLSet is a grow-only set of URLs compared by exact string equality.
type URLSet struct {
	urls map[string]struct{}
}

func NewURLSet() *URLSet {
	return &URLSet{urls: make(map[string]struct{})}
}

// Add inserts url and reports whether it was new.
func (s *URLSet) Add(url string) bool {
	if _, exists := s.urls[url]; exists {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

func (s *URLSet) Contains(url string) bool {
	_, exists := s.urls[url]
	return exists
}

func (s *URLSet) Len() int {
	return len(s.urls)
}

// Sorted returns the members in ascending order.
func (s *URLSet) Sorted() []string {
	out := make([]string, 0, len(s.urls))
	for url := range s.urls {
		out = append(out, url)
	}
	sort.Strings(out)
	return out
}

// CollectResult is the outcome of one sitemap collection.
type CollectResult struct {
	URLs    *URLSet
	Fetched []string // child sitemaps that contributed
	Skipped []string // child sitemaps abandoned after failures
}

// IndexRow is one line of the index: a key derived from URL.
type IndexRow struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

const (
	RunKindCollect = "collect"
	RunKindIndex   = "index"

	RunStatusRunning   = "Running"
	RunStatusCompleted = "Completed"
	RunStatusFailed    = "Failed"
)

// Run records one invocation of either flow in the store.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Kind       string     `json:"kind"`
	Source     string     `json:"source"`
	Pattern    string     `json:"pattern,omitempty"`
	Status     string     `json:"status"`
	ItemCount  int        `json:"itemCount"`
	Warnings   int        `json:"warnings"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// NewRun creates a running run with a generated UUID.
func NewRun(kind, source, pattern string) *Run {
	return &Run{
		ID:        uuid.New(),
		Kind:      kind,
		Source:    source,
		Pattern:   pattern,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Finish marks the run completed, or failed when err is non-nil.
func (r *Run) Finish(items, warnings int, err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.ItemCount = items
	r.Warnings = warnings
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusCompleted
}
