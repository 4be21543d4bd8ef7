// Package controller drives an infinitely scrolled character list: it reacts
// to filter changes and load-more requests, fetches pages through a gateway
// and merges them into an accumulator.
package controller

import (
	"context"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/charlist/pkg/accumulator"
	"github.com/Sternrassler/charlist/pkg/filter"
	"github.com/Sternrassler/charlist/pkg/gateway"
	"github.com/Sternrassler/charlist/pkg/logging"
)

// Prometheus metrics for controller transitions.
var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charlist_controller_transitions_total",
		Help: "Total controller transitions by event",
	}, []string{"event"})

	staleResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "charlist_controller_stale_responses_total",
		Help: "Fetch results dropped because their filter session or page is no longer active",
	})

	ignoredLoadMoreTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "charlist_controller_ignored_load_more_total",
		Help: "Load-more requests ignored by reason",
	}, []string{"reason"})
)

// Phase is the fetch-cycle state of the controller.
type Phase string

const (
	// PhaseIdle means no fetch has been issued yet.
	PhaseIdle Phase = "idle"
	// PhaseLoading means a fetch is pending.
	PhaseLoading Phase = "loading"
	// PhaseSuccess means the last fetch was merged into the list.
	PhaseSuccess Phase = "success"
	// PhaseFailed means the last fetch failed and the list was reset.
	PhaseFailed Phase = "failed"
)

// Fetcher fetches one page for a filter. *gateway.Gateway implements it.
type Fetcher interface {
	Fetch(ctx context.Context, f filter.Filter, page int) (*gateway.PageResponse, error)
}

// Config holds optional controller settings.
type Config struct {
	// Context bounds every fetch; cancelled by Close. Default: Background.
	Context context.Context

	// Logger (nil = logging.NewLogger("controller"))
	Logger *zerolog.Logger
}

// fetchTag identifies an issued fetch. A result is applied only while its
// tag is the pending one.
type fetchTag struct {
	generation uint64
	filter     filter.Filter
	page       int
}

// Controller is the pagination state machine. All transitions run under one
// mutex; fetches run on their own goroutines and re-enter through it.
type Controller struct {
	mu          sync.Mutex
	fetcher     Fetcher
	acc         *accumulator.Accumulator[gateway.Character]
	filter      filter.Filter
	phase       Phase
	generation  uint64
	pending     *fetchTag
	lastErr     error
	version     uint64
	closed      bool
	listeners   map[uint64]func(View)
	nextID      uint64
	unsubscribe func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// New creates a controller. When state is non-nil the controller starts from
// its current filter and restarts on every change notification.
// No fetch is issued until Start, NotifyFilterChanged or RequestMore.
func New(fetcher Fetcher, state *filter.State, cfg Config) *Controller {
	base := cfg.Context
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)

	logger := logging.NewLogger("controller")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "controller").Logger()
	}

	c := &Controller{
		fetcher:   fetcher,
		acc:       accumulator.New[gateway.Character](),
		phase:     PhaseIdle,
		listeners: make(map[uint64]func(View)),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	if state != nil {
		c.filter = state.Current()
		c.unsubscribe = state.Subscribe(c.NotifyFilterChanged)
	}

	return c
}

// Start fetches page 1 of the current filter.
func (c *Controller) Start() {
	c.mu.Lock()
	f := c.filter
	c.mu.Unlock()
	c.restart(f, "start")
}

// NotifyFilterChanged discards the accumulated list and fetches page 1 of f.
// Any fetch still in flight is logically cancelled: its result is dropped.
func (c *Controller) NotifyFilterChanged(f filter.Filter) {
	c.restart(f.Normalize(), "filter_changed")
}

// RequestMore fetches the next page if more pages exist and no fetch is
// pending. It reports whether a fetch was issued; repeated calls while a
// fetch is pending are no-ops.
func (c *Controller) RequestMore() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.pending != nil {
		c.mu.Unlock()
		ignoredLoadMoreTotal.WithLabelValues("loading").Inc()
		return false
	}
	if !c.acc.HasMore() {
		c.mu.Unlock()
		ignoredLoadMoreTotal.WithLabelValues("no_more").Inc()
		return false
	}

	tag := fetchTag{generation: c.generation, filter: c.filter, page: c.acc.NextPage()}
	c.pending = &tag
	c.phase = PhaseLoading
	c.wg.Add(1)
	view := c.viewLocked()
	c.mu.Unlock()

	transitionsTotal.WithLabelValues("load_more").Inc()
	c.logger.Debug().
		Str("filter", tag.filter.Key()).
		Int("page", tag.page).
		Uint64("generation", tag.generation).
		Msg("Loading more")

	c.notify(view)
	c.launch(tag)
	return true
}

// View returns the render state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Subscribe registers fn to receive the view after every applied transition
// and returns a function that removes it. Listeners run outside the
// controller lock and may call its methods; views from concurrent
// transitions can arrive out of order, compare View.Version.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Wait blocks until every issued fetch has completed.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close detaches from the filter state, cancels in-flight fetches and waits
// for them. Results arriving after Close are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.cancel()
	c.wg.Wait()
}

// restart resets the accumulator and fetches page 1 of f in a new session.
func (c *Controller) restart(f filter.Filter, event string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.generation++
	c.filter = f
	c.acc.Reset()
	c.lastErr = nil

	tag := fetchTag{generation: c.generation, filter: f, page: 1}
	c.pending = &tag
	c.phase = PhaseLoading
	c.wg.Add(1)
	view := c.viewLocked()
	c.mu.Unlock()

	transitionsTotal.WithLabelValues(event).Inc()
	c.logger.Info().
		Str("filter", f.Key()).
		Uint64("generation", tag.generation).
		Msg("Filter session started")

	c.notify(view)
	c.launch(tag)
}

// launch runs the fetch for tag on its own goroutine. The caller must have
// added it to c.wg while holding c.mu, so Close never misses it.
func (c *Controller) launch(tag fetchTag) {
	go func() {
		defer c.wg.Done()
		resp, err := c.fetcher.Fetch(c.ctx, tag.filter, tag.page)
		c.complete(tag, resp, err)
	}()
}

// complete applies a fetch outcome if tag is still the pending fetch.
func (c *Controller) complete(tag fetchTag, resp *gateway.PageResponse, err error) {
	c.mu.Lock()
	if c.closed || c.pending == nil || *c.pending != tag {
		c.mu.Unlock()
		staleResponsesTotal.Inc()
		c.logger.Debug().
			Str("filter", tag.filter.Key()).
			Int("page", tag.page).
			Uint64("generation", tag.generation).
			Msg("Dropping stale fetch result")
		return
	}
	c.pending = nil

	if err != nil {
		// Every failure clears the list, including the API's "no results".
		c.acc.Reset()
		c.phase = PhaseFailed
		c.lastErr = err
		view := c.viewLocked()
		c.mu.Unlock()

		transitionsTotal.WithLabelValues("fetch_failed").Inc()
		c.logger.Warn().
			Err(err).
			Str("filter", tag.filter.Key()).
			Int("page", tag.page).
			Str("error_kind", string(gateway.KindOf(err))).
			Msg("Fetch failed, list reset")

		c.notify(view)
		return
	}

	page := accumulator.Page[gateway.Character]{Results: resp.Results, TotalCount: resp.TotalCount}
	if tag.page == 1 {
		c.acc.Merge(page, true)
	} else {
		if advErr := c.acc.AdvancePage(); advErr != nil {
			// RequestMore only issues a page when HasMore was true and nothing
			// can merge in between, so this is unreachable.
			c.logger.Error().Err(advErr).Int("page", tag.page).Msg("Advance page failed")
		}
		c.acc.Merge(page, false)
	}
	c.phase = PhaseSuccess
	c.lastErr = nil
	view := c.viewLocked()
	c.mu.Unlock()

	transitionsTotal.WithLabelValues("fetch_succeeded").Inc()
	c.logger.Debug().
		Str("filter", tag.filter.Key()).
		Int("page", tag.page).
		Int("items", len(view.Items)).
		Int("total_count", resp.TotalCount).
		Bool("has_more", view.HasMore).
		Msg("Page merged")

	c.notify(view)
}

// viewLocked builds the render state. c.mu must be held.
func (c *Controller) viewLocked() View {
	c.version++
	v := View{
		Items:     c.acc.Items(),
		HasMore:   c.acc.HasMore(),
		IsLoading: c.pending != nil,
		IsError:   c.lastErr != nil,
		Filter:    c.filter,
		Page:      c.acc.Page(),
		Phase:     c.phase,
		Version:   c.version,
	}
	if c.lastErr != nil {
		v.ErrorKind = gateway.KindOf(c.lastErr)
		if v.ErrorKind == "" {
			v.ErrorKind = gateway.KindTransport
		}
		v.Error = c.lastErr.Error()
	}
	return v
}

// notify delivers view to the listeners in subscription order.
func (c *Controller) notify(view View) {
	c.mu.Lock()
	ids := make([]uint64, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]func(View), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(view)
	}
}
