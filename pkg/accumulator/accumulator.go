// Package accumulator owns the growing result list of an infinitely
// scrolled, page-by-page fetched collection.
package accumulator

import (
	"errors"
)

// ErrNoMorePages is returned by AdvancePage when every page has been merged.
var ErrNoMorePages = errors.New("no more pages")

// Page is one batch of items plus the grand total matching the active filter.
type Page[T any] struct {
	Results    []T
	TotalCount int
}

// State is a read-only snapshot of an Accumulator.
type State[T any] struct {
	Items   []T
	Page    int
	HasMore bool
}

// Accumulator merges successive pages under a stable filter.
//
// Items grow monotonically between resets. HasMore is false exactly when
// len(Items) >= TotalCount of the latest merged page. It is not safe for
// concurrent use; the owner serializes access.
type Accumulator[T any] struct {
	items   []T
	page    int
	hasMore bool
	loaded  bool
}

// New returns an empty accumulator positioned at page 1.
func New[T any]() *Accumulator[T] {
	a := &Accumulator[T]{}
	a.Reset()
	return a
}

// Reset discards all items: page 1, HasMore true.
func (a *Accumulator[T]) Reset() {
	a.items = nil
	a.page = 1
	a.hasMore = true
	a.loaded = false
}

// Merge applies a page. The first page replaces the items, later pages are
// appended in order without de-duplication. Items beyond TotalCount are kept.
func (a *Accumulator[T]) Merge(p Page[T], isFirstPage bool) {
	if isFirstPage {
		a.items = append([]T(nil), p.Results...)
	} else {
		a.items = append(a.items, p.Results...)
	}
	a.hasMore = len(a.items) < p.TotalCount
	a.loaded = true
}

// AdvancePage moves the cursor to the next page.
func (a *Accumulator[T]) AdvancePage() error {
	if !a.hasMore {
		return ErrNoMorePages
	}
	a.page++
	return nil
}

// Items returns a copy of the accumulated items.
func (a *Accumulator[T]) Items() []T {
	out := make([]T, len(a.items))
	copy(out, a.items)
	return out
}

// Len returns the number of accumulated items.
func (a *Accumulator[T]) Len() int { return len(a.items) }

// Page returns the current page cursor (1-based).
func (a *Accumulator[T]) Page() int { return a.page }

// HasMore reports whether pages beyond the accumulated ones exist.
func (a *Accumulator[T]) HasMore() bool { return a.hasMore }

// Loaded reports whether a page has been merged since the last Reset.
func (a *Accumulator[T]) Loaded() bool { return a.loaded }

// NextPage returns the page a load-more cycle should request: the current
// page until something has been merged, the following page afterwards.
func (a *Accumulator[T]) NextPage() int {
	if !a.loaded {
		return a.page
	}
	return a.page + 1
}

// Snapshot returns a copy of the current state.
func (a *Accumulator[T]) Snapshot() State[T] {
	return State[T]{
		Items:   a.Items(),
		Page:    a.page,
		HasMore: a.hasMore,
	}
}
