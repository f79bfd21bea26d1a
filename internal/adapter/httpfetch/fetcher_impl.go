package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/review-harvester/internal/repository"
)

const maxBodyBytes = 4 << 20 // 4 MiB is plenty for any review page

// FetcherImpl performs plain HTTP fetches with a browser-like header set.
// The underlying client (and its connection pool) is shared across all
// concurrent jobs.
type FetcherImpl struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given per-request timeout.
// Redirects are followed with the default policy (10 hops).
func NewFetcher(timeout time.Duration) *FetcherImpl {
	return &FetcherImpl{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ repository.FetcherRepository = (*FetcherImpl)(nil)

// Fetch retrieves the page body. Any transport error or non-2xx status is
// reported as ErrFetchFailed; callers treat that as "skip this target".
func (f *FetcherImpl) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", repository.ErrFetchFailed, err)
	}

	req.Header.Set("User-Agent", `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", repository.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", repository.ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", repository.ErrFetchFailed, err)
	}
	return string(body), nil
}
