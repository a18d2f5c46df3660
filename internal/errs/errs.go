// Package errs holds the error kinds shared by the collector and the indexer.
// Call sites wrap one of these together with the underlying cause:
//
//	fmt.Errorf("%w: GET %s: %w", errs.ErrFetch, url, err)
//
// so callers can branch with errors.Is and still unwrap to the cause.
package errs

import "errors"

var (
	// ErrFetch is a network failure or a non-2xx HTTP response.
	ErrFetch = errors.New("fetch error")
	// ErrParse is a malformed document or one missing the expected sitemap structure.
	ErrParse = errors.New("parse error")
	// ErrConfig is an invalid pattern or an otherwise unusable setting.
	ErrConfig = errors.New("config error")
	// ErrIO is a failure opening, reading or writing a file or store.
	ErrIO = errors.New("io error")
)
