package repository

import (
	"context"
	"errors"
)

var (
	// ErrRenderTimeout indicates the browser did not produce a usable DOM
	// within the page-load timeout.
	ErrRenderTimeout = errors.New("render timed out")
	// ErrNavigationFailed indicates the browser could not navigate to the URL.
	ErrNavigationFailed = errors.New("navigation failed")
)

// RoundFunc receives the cumulative DOM HTML for one interaction round and
// whether a "load more" control is still present. Returning stop=true ends
// the interaction loop.
type RoundFunc func(html string, loadMorePresent bool) (stop bool)

// RendererRepository drives a headless browser. Implementations must run
// browser work off the caller's polling path; a hung render may only stall
// the job worker that requested it.
type RendererRepository interface {
	// Render navigates to url, waits briefly for review-shaped content to
	// appear (best effort), and returns the full DOM HTML.
	Render(ctx context.Context, url string) (string, error)

	// Interact navigates to url and runs up to maxRounds "load more" rounds,
	// handing the cumulative DOM to round after each one. Truncated text is
	// expanded before the DOM is captured.
	Interact(ctx context.Context, url string, maxRounds int, round RoundFunc) error
}
