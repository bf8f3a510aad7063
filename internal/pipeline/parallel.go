package pipeline

import (
	"context"
	"runtime"
	"sync"
)

// WorkItem holds a region ready for processing.
type WorkItem struct {
	Seq    int
	Region Region
}

// WorkResult holds the processing output for a single region.
type WorkResult struct {
	Seq    int
	Result Result
}

// process runs fn over items using a pool of workers. Results are sent to
// the returned channel in arrival order (not sequence order). Items that
// arrive after ctx is done are reported with ctx's error without calling fn.
// If workers is 0, runtime.NumCPU() is used.
func process(ctx context.Context, items <-chan WorkItem, workers int, fn func(context.Context, Region) Result) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				var res Result
				if err := ctx.Err(); err != nil {
					res = Result{Region: item.Region, Err: err}
				} else {
					res = fn(ctx, item.Region)
				}
				results <- WorkResult{Seq: item.Seq, Result: res}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// feed sends regions in input order and closes the channel. It stops early
// when ctx is done.
func feed(ctx context.Context, regions []Region) <-chan WorkItem {
	items := make(chan WorkItem)
	go func() {
		defer close(items)
		for i, r := range regions {
			select {
			case items <- WorkItem{Seq: i, Region: r}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return items
}

// collect stores each result in its pre-reserved slot, so the output order
// is the input order whatever the completion order was.
func collect(results <-chan WorkResult, regions []Region) []Result {
	slots := make([]Result, len(regions))
	filled := make([]bool, len(regions))
	for r := range results {
		slots[r.Seq] = r.Result
		filled[r.Seq] = true
	}
	for i := range slots {
		if !filled[i] {
			slots[i] = Result{Region: regions[i], Err: context.Canceled}
		}
	}
	return slots
}
