package repository

import (
	"context"
	"errors"
)

var (
	// ErrFetchFailed covers any transport-level failure: DNS, TLS, timeout,
	// or a non-2xx response. Callers treat it as "skip this target".
	ErrFetchFailed = errors.New("fetch failed")
)

// FetcherRepository performs a single plain HTTP fetch of a page.
type FetcherRepository interface {
	// Fetch retrieves the page body at url. It never blocks longer than the
	// configured fetch timeout.
	Fetch(ctx context.Context, url string) (string, error)
}
