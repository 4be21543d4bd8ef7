package filter

import (
	"sort"
	"sync"
)

// Listener is called with the new filter after every change.
type Listener func(Filter)

// State holds the current Filter and notifies subscribers synchronously on
// change. It is created once per session.
type State struct {
	mu        sync.Mutex
	current   Filter
	listeners map[uint64]Listener
	nextID    uint64
}

// NewState creates a State holding the normalized initial filter.
func NewState(initial Filter) *State {
	return &State{
		current:   initial.Normalize(),
		listeners: make(map[uint64]Listener),
	}
}

// Current returns the active filter.
func (s *State) Current() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetSearch replaces the search text, keeping the status.
func (s *State) SetSearch(text string) {
	s.update(func(f Filter) Filter {
		f.Search = text
		return f
	})
}

// SetStatus replaces the status, keeping the search text.
func (s *State) SetStatus(status Status) {
	s.update(func(f Filter) Filter {
		f.Status = status
		return f
	})
}

// Set replaces the whole filter.
func (s *State) Set(f Filter) {
	s.update(func(Filter) Filter { return f })
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Listeners run in subscription order.
func (s *State) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// update applies fn and notifies listeners if the normalized result differs.
// Listeners are invoked outside the lock so they may read or mutate State.
func (s *State) update(fn func(Filter) Filter) {
	s.mu.Lock()
	next := fn(s.current).Normalize()
	if next == s.current {
		s.mu.Unlock()
		return
	}
	s.current = next

	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
}
