package chromedp_renderer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/user/review-harvester/internal/repository"
)

// Selectors the renderer watches for. Best effort: their absence never
// fails a render on its own.
const (
	reviewSelector   = `[data-review-id], .review, .review-item, [class*="review"]`
	loadMoreSelector = `button[aria-label*="more"], .load-more, [data-load-more], button[jsaction]`
)

// JS that expands truncated review text before the DOM is captured.
const expandTruncatedJS = `
(() => {
  const toggles = document.querySelectorAll('.read-more, .expand, [aria-expanded="false"]');
  toggles.forEach(t => { try { t.click(); } catch (e) {} });
  return toggles.length;
})()`

const (
	reviewWaitTimeout = 3 * time.Second
	roundSettleDelay  = 800 * time.Millisecond
)

// ChromedpRenderer drives headless Chrome. Allocator contexts are pooled
// and reused across concurrent jobs; each call gets its own browser context
// and timeout, so a hung page only costs its own worker.
type ChromedpRenderer struct {
	allocatorPool *sync.Pool
	timeout       time.Duration
}

// NewRenderer creates a renderer with a pre-warmed allocator pool.
func NewRenderer(maxConcurrency int, pageLoadTimeout time.Duration) *ChromedpRenderer {
	pool := &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`),
			)
			allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
			return allocCtx
		},
	}

	for i := 0; i < maxConcurrency; i++ {
		allocCtx := pool.Get().(context.Context)
		pool.Put(allocCtx)
	}

	return &ChromedpRenderer{
		allocatorPool: pool,
		timeout:       pageLoadTimeout,
	}
}

var _ repository.RendererRepository = (*ChromedpRenderer)(nil)

// Render navigates to url and returns the full DOM HTML once the body is
// visible. It waits a short, bounded extra interval for review-shaped
// elements to show up; that wait failing is not an error.
func (r *ChromedpRenderer) Render(ctx context.Context, url string) (string, error) {
	taskCtx, cancel, release := r.newTask(ctx)
	defer release()
	defer cancel()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		waitBestEffort(reviewSelector, reviewWaitTimeout),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if taskCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %s", repository.ErrRenderTimeout, url)
		}
		return "", fmt.Errorf("%w: %v", repository.ErrNavigationFailed, err)
	}
	return html, nil
}

// Interact runs the load-more loop against url, handing the cumulative DOM
// to round after every iteration.
func (r *ChromedpRenderer) Interact(ctx context.Context, url string, maxRounds int, round repository.RoundFunc) error {
	taskCtx, cancel, release := r.newTask(ctx)
	defer release()
	defer cancel()

	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		waitBestEffort(reviewSelector, reviewWaitTimeout),
	)
	if err != nil {
		if taskCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s", repository.ErrRenderTimeout, url)
		}
		return fmt.Errorf("%w: %v", repository.ErrNavigationFailed, err)
	}

	for i := 0; i < maxRounds; i++ {
		var expanded int
		if err := chromedp.Run(taskCtx, chromedp.Evaluate(expandTruncatedJS, &expanded)); err != nil {
			return fmt.Errorf("%w: expand: %v", repository.ErrNavigationFailed, err)
		}

		var html string
		var loadMoreNodes []*cdp.Node
		err := chromedp.Run(taskCtx,
			chromedp.OuterHTML("html", &html),
			chromedp.Nodes(loadMoreSelector, &loadMoreNodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		)
		if err != nil {
			if taskCtx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: %s", repository.ErrRenderTimeout, url)
			}
			return fmt.Errorf("%w: %v", repository.ErrNavigationFailed, err)
		}

		present := len(loadMoreNodes) > 0
		if round(html, present) || !present {
			return nil
		}

		if err := chromedp.Run(taskCtx,
			chromedp.MouseClickNode(loadMoreNodes[0]),
			chromedp.Sleep(roundSettleDelay),
		); err != nil {
			// A stale or covered control ends pagination, not the harvest.
			return nil
		}
	}
	return nil
}

// newTask builds a browser context with the call timeout from a pooled
// allocator. release must be called to return the allocator.
func (r *ChromedpRenderer) newTask(ctx context.Context) (context.Context, context.CancelFunc, func()) {
	allocCtx := r.allocatorPool.Get().(context.Context)
	release := func() { r.allocatorPool.Put(allocCtx) }

	taskCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, r.timeout)
	if deadline, ok := ctx.Deadline(); ok {
		// Never outlive the job's wall-clock budget.
		if remaining := time.Until(deadline); remaining < r.timeout {
			cancelTimeout()
			taskCtx, cancelTimeout = context.WithTimeout(taskCtx, remaining)
		}
	}

	cancel := func() {
		cancelTimeout()
		cancelBrowser()
	}
	return taskCtx, cancel, release
}

// waitBestEffort waits up to d for sel to appear, swallowing the timeout.
func waitBestEffort(sel string, d time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		_ = chromedp.Run(waitCtx, chromedp.WaitReady(sel, chromedp.ByQuery))
		return nil
	})
}
