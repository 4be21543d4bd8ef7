package pagination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/charlist/pkg/filter"
	"github.com/Sternrassler/charlist/pkg/gateway"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// MaxPages caps the number of pages fetched (the public API has ~42 for an empty filter)
	MaxPages int
}

// DefaultConfig returns safe default configuration for the public character API
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		MaxPages:       100,
	}
}

// PageFetcher fetches a single page. *gateway.Gateway implements it.
type PageFetcher interface {
	Fetch(ctx context.Context, f filter.Filter, page int) (*gateway.PageResponse, error)
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	PageNumber int
	Page       *gateway.PageResponse
	Error      error
}

// Export is every fetched page for one filter, ordered by page number.
// TotalPages is the number of pages the export covers, at most
// Config.MaxPages; UpstreamPages is the page count the API reported.
type Export struct {
	Filter        filter.Filter           `json:"filter"`
	TotalCount    int                     `json:"total_count"`
	TotalPages    int                     `json:"total_pages"`
	UpstreamPages int                     `json:"upstream_pages"`
	Pages         []*gateway.PageResponse `json:"-"`
}

// Characters returns the results of all pages concatenated in page order.
func (e *Export) Characters() []gateway.Character {
	var out []gateway.Character
	for _, p := range e.Pages {
		out = append(out, p.Results...)
	}
	return out
}

// Complete reports whether every upstream page was fetched. A capped
// export is never complete.
func (e *Export) Complete() bool {
	return len(e.Pages) == e.UpstreamPages
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 100
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAllPages fetches every page for f using a worker pool.
//
// A filter without matches yields an empty export. When a later page fails,
// the pages fetched so far are returned together with the error.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, f filter.Filter) (*Export, error) {
	start := time.Now()
	f = f.Normalize()

	export := &Export{Filter: f}

	// Fetch first page to get total page count
	first, err := bf.fetcher.Fetch(ctx, f, 1)
	if err != nil {
		if gateway.IsEmptyResult(err) {
			log.Info().Str("filter", f.Key()).Msg("Export has no matches")
			return export, nil
		}
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	totalPages := pageCount(first)
	export.UpstreamPages = totalPages
	if totalPages > bf.config.MaxPages {
		log.Warn().
			Str("filter", f.Key()).
			Int("total_pages", totalPages).
			Int("max_pages", bf.config.MaxPages).
			Msg("Page count capped")
		totalPages = bf.config.MaxPages
	}
	export.TotalCount = first.TotalCount
	export.TotalPages = totalPages

	log.Info().
		Str("filter", f.Key()).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	// Single page optimization
	if totalPages <= 1 {
		export.Pages = []*gateway.PageResponse{first}
		export.TotalPages = 1
		if export.UpstreamPages < 1 {
			export.UpstreamPages = 1
		}
		log.Info().
			Str("filter", f.Key()).
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return export, nil
	}

	results := map[int]*gateway.PageResponse{1: first}

	pageQueue := make(chan int, totalPages)
	pageResults := make(chan PageResult, totalPages)
	errCh := make(chan error, bf.config.MaxConcurrency)

	// Fill page queue (skip page 1, already fetched)
	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, f, pageQueue, pageResults, errCh, &wg, i)
	}

	// Close results channel when all workers done
	go func() {
		wg.Wait()
		close(pageResults)
		close(errCh)
	}()

	for result := range pageResults {
		results[result.PageNumber] = result.Page

		if len(results)%10 == 0 {
			log.Debug().
				Int("fetched", len(results)).
				Int("total", totalPages).
				Float64("progress_pct", float64(len(results))/float64(totalPages)*100).
				Msg("Fetch progress")
		}
	}

	export.Pages = ordered(results)

	// The first worker error wins; closed channel yields nil.
	if err := <-errCh; err != nil {
		log.Warn().
			Err(err).
			Int("fetched_pages", len(results)).
			Int("total_pages", totalPages).
			Msg("Worker error - returning partial results")
		return export, fmt.Errorf("worker error (partial data: %d/%d pages): %w", len(results), totalPages, err)
	}
	if err := ctx.Err(); err != nil && len(export.Pages) < totalPages {
		return export, fmt.Errorf("export cancelled (partial data: %d/%d pages): %w", len(results), totalPages, err)
	}

	log.Info().
		Str("filter", f.Key()).
		Int("pages", len(results)).
		Int("items", len(export.Characters())).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return export, nil
}

// worker processes pages from the queue
func (bf *BatchFetcher) worker(ctx context.Context, f filter.Filter, pageQueue <-chan int, results chan<- PageResult, errCh chan<- error, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		resp, err := bf.fetcher.Fetch(pageCtx, f, pageNum)
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", pageNum).
				Msg("Page fetch failed")

			// Non-blocking error send
			select {
			case errCh <- err:
			default:
			}
			return
		}

		// pageResults is buffered for every page, so this never blocks.
		results <- PageResult{PageNumber: pageNum, Page: resp}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}

// pageCount returns the number of pages reported by the first page, falling
// back to the total count divided by the first page's size.
func pageCount(first *gateway.PageResponse) int {
	if first.Pages > 0 {
		return first.Pages
	}
	size := len(first.Results)
	if size == 0 || first.TotalCount <= size {
		return 1
	}
	return (first.TotalCount + size - 1) / size
}

func ordered(results map[int]*gateway.PageResponse) []*gateway.PageResponse {
	pages := make([]int, 0, len(results))
	for p := range results {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	out := make([]*gateway.PageResponse, 0, len(pages))
	for _, p := range pages {
		out = append(out, results[p])
	}
	return out
}
