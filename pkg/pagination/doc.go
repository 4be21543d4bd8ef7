// Package pagination provides parallel batch fetching of every page for a
// character filter.
//
// The list controller loads one page per scroll; exports need the whole
// result set. The API reports the page count in info.pages, so this package
// fetches page 1, then fans the remaining pages out over a worker pool.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(gw, pagination.DefaultConfig())
//	export, err := fetcher.FetchAllPages(ctx, filter.Filter{Status: filter.StatusAlive})
//
// The batch fetcher:
//   - Fetches first page to determine total pages
//   - Spawns worker pool (default 4 workers)
//   - Distributes remaining pages across workers
//   - Returns pages ordered by number, partial data on error
//
// Identical page requests made concurrently by the list controller are
// collapsed by the gateway, so an export never doubles upstream load.
package pagination
