package crawler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy decides what happens after a child sitemap failed to download
// or parse. attempt counts the attempts made so far, starting at 1. Returning
// false abandons that sitemap; the collection continues with the next one.
type RetryPolicy interface {
	ShouldRetry(ctx context.Context, sitemapURL string, attempt int, err error) bool
}

// RetryFunc adapts a caller-supplied decision callback to RetryPolicy.
type RetryFunc func(ctx context.Context, sitemapURL string, attempt int, err error) bool

func (f RetryFunc) ShouldRetry(ctx context.Context, sitemapURL string, attempt int, err error) bool {
	return f(ctx, sitemapURL, attempt, err)
}

// NoRetry abandons a sitemap on its first failure.
var NoRetry = RetryFunc(func(context.Context, string, int, error) bool { return false })

// BoundedRetry retries a failed sitemap up to MaxRetries times, waiting an
// exponentially growing delay before each new attempt.
type BoundedRetry struct {
	MaxRetries int
	backoff    *backoff.ExponentialBackOff
}

func NewBoundedRetry(maxRetries int, initial, maxInterval time.Duration) *BoundedRetry {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	if maxInterval > 0 {
		b.MaxInterval = maxInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	return &BoundedRetry{MaxRetries: maxRetries, backoff: b}
}

func (r *BoundedRetry) ShouldRetry(ctx context.Context, _ string, attempt int, _ error) bool {
	if attempt > r.MaxRetries {
		return false
	}
	if attempt == 1 {
		r.backoff.Reset()
	}

	delay := r.backoff.NextBackOff()
	if delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// PromptRetry asks an operator whether to retry. Only an explicit yes or no
// is accepted; anything else asks again. End of input counts as no.
type PromptRetry struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPromptRetry(in io.Reader, out io.Writer) *PromptRetry {
	return &PromptRetry{in: bufio.NewReader(in), out: out}
}

func (p *PromptRetry) ShouldRetry(ctx context.Context, _ string, _ int, _ error) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		fmt.Fprint(p.out, "Download failed. Retry? (y/n): ")
		line, err := p.in.ReadString('\n')

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}

		if err != nil {
			fmt.Fprintln(p.out)
			return false
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}
