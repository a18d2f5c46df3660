package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/romangod6/sitemapdump/internal/errs"
)

// Fetcher downloads a document body with HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type FetcherConfig struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
}

// CollyFetcher fetches sitemaps through a colly collector.
type CollyFetcher struct {
	collector *colly.Collector
}

func NewCollyFetcher(config *FetcherConfig) *CollyFetcher {
	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.MaxBodySize(config.MaxBodySize),
		// Retries revisit the same sitemap URL.
		colly.AllowURLRevisit(),
		// Status codes are checked in Fetch, since colly fails everything above 202.
		colly.ParseHTTPErrorResponse(),
	)

	if config.Timeout > 0 {
		c.SetRequestTimeout(config.Timeout)
	}

	return &CollyFetcher{collector: c}
}

// Fetch returns the body of a 2xx response. Any other status and any
// transport failure is an errs.ErrFetch.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A clone shares the HTTP backend but not the callbacks, so bodies of
	// different fetches never mix.
	c := f.collector.Clone()

	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		if transcoded(r.Headers.Get("Content-Type")) {
			body = relabelUTF8(body)
		}
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", errs.ErrFetch, url, err)
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("%w: GET %s: %d %s", errs.ErrFetch, url, status, http.StatusText(status))
	}

	return body, nil
}

// transcoded reports whether colly converted a body served with contentType
// to UTF-8 before handing it over.
func transcoded(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, kind := range []string{"image/", "video/", "audio/", "font/"} {
		if strings.Contains(ct, kind) {
			return false
		}
	}
	return strings.Contains(ct, "charset") &&
		!strings.Contains(ct, "utf-8") && !strings.Contains(ct, "utf8")
}

// relabelUTF8 rewrites the encoding named in the XML declaration of an
// already converted body to UTF-8, so the parser does not decode it twice.
func relabelUTF8(body []byte) []byte {
	start := bytes.Index(body, []byte("<?xml"))
	if start < 0 || len(bytes.TrimSpace(bytes.TrimPrefix(body[:start], utf8BOM))) > 0 {
		return body
	}
	end := bytes.Index(body[start:], []byte("?>"))
	if end < 0 {
		return body
	}
	decl := body[start : start+end]

	attr := bytes.Index(decl, []byte("encoding"))
	if attr < 0 {
		return body
	}
	i := attr + len("encoding")
	for i < len(decl) && (decl[i] == ' ' || decl[i] == '=' || decl[i] == '\t') {
		i++
	}
	if i >= len(decl) || (decl[i] != '"' && decl[i] != '\'') {
		return body
	}
	quote := decl[i]
	closing := bytes.IndexByte(decl[i+1:], quote)
	if closing < 0 {
		return body
	}

	valueStart := start + i + 1
	valueEnd := valueStart + closing
	out := make([]byte, 0, len(body))
	out = append(out, body[:valueStart]...)
	out = append(out, "UTF-8"...)
	return append(out, body[valueEnd:]...)
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}
