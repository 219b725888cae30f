package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/vodsnap/vodsnap/pkg/errors"
	"github.com/vodsnap/vodsnap/pkg/progress"
)

// DefaultWorkers is the default size of the segment download pool.
const DefaultWorkers = 16

// Item is one file to download: a segment or key, identified by its index in
// the caller's ordering.
type Item struct {
	Index int
	URL   string
	Path  string
}

// Result is the outcome of one Item's download.
type Result struct {
	Index int
	Err   error
}

// FetchAll downloads every item through a bounded worker pool. Failures do
// not stop the pool: every item runs to completion (or retry exhaustion) and
// outcomes are aggregated. Workers report on a results channel drained by a
// single collector, so no locking is needed around the failure set. If any
// item failed, FetchAll returns a FetchError carrying the failure count and
// the first observed error; files already downloaded are left in place.
//
// The reporter, when non-nil, must have been started with the item count; it
// receives one Increment per completed item regardless of outcome.
func (c *Client) FetchAll(ctx context.Context, items []Item, workers int, reporter progress.Reporter) error {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan Item)
	results := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				err := c.DownloadFile(ctx, item.URL, item.Path)
				results <- Result{Index: item.Index, Err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, item := range items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	failed := 0
	delivered := 0
	var firstErr error
	for res := range results {
		delivered++
		if reporter != nil {
			reporter.Increment("segments", "Downloading files")
		}
		if res.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = res.Err
			}
			c.options.Logger.Error("Item download failed", "fetcher", map[string]interface{}{
				"index": res.Index,
				"error": res.Err.Error(),
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.FetchError, "download canceled", errors.ErrFetchRequest)
	}
	if undelivered := len(items) - delivered; undelivered > 0 {
		failed += undelivered
	}
	if failed > 0 {
		details := ""
		if firstErr != nil {
			details = firstErr.Error()
		}
		return errors.New(errors.FetchError,
			fmt.Sprintf("%d of %d downloads failed", failed, len(items)), details, errors.ErrFetchPartial)
	}
	return nil
}
