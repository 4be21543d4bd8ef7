// Package testutil provides testing utilities for the character list.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultPageSize matches the page size of the public character API.
const DefaultPageSize = 20

var names = []string{"Rick Sanchez", "Morty Smith", "Summer Smith", "Beth Smith", "Jerry Smith"}

var statuses = []string{"Alive", "Dead", "unknown"}

// MockCharacter is the wire form of a character served by MockAPI.
type MockCharacter struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Species string `json:"species"`
	Gender  string `json:"gender"`
	URL     string `json:"url"`
}

// MockAPI is a configurable mock character API for testing.
//
// It serves GET /character/?page=N&name=S&status=X over a generated data set,
// answering 404 {"error":"There is nothing here"} when nothing matches,
// like the real API.
type MockAPI struct {
	server *httptest.Server

	mu         sync.Mutex
	characters []MockCharacter
	pageSize   int
	count      int
	failStatus int
	failCount  int
	hold       chan struct{}
	etags      bool
	rateLimit  *[2]int
	delay      time.Duration

	// Tracking
	requests    []string
	conditional int
	lastHeader  http.Header
}

// NewMockAPI creates a mock API serving total generated characters.
// Names cycle through the Smith family and statuses through Alive, Dead
// and unknown.
func NewMockAPI(total int) *MockAPI {
	m := &MockAPI{pageSize: DefaultPageSize, count: -1}
	for i := 1; i <= total; i++ {
		m.characters = append(m.characters, MockCharacter{
			ID:      i,
			Name:    fmt.Sprintf("%s #%d", names[(i-1)%len(names)], i),
			Status:  statuses[(i-1)%len(statuses)],
			Species: "Human",
			Gender:  "Male",
			URL:     fmt.Sprintf("/api/character/%d", i),
		})
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the mock server base URL (use as the gateway BaseURL).
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server, releasing held requests first.
func (m *MockAPI) Close() {
	m.Release()
	m.server.Close()
}

// SetPageSize changes the number of characters per page.
func (m *MockAPI) SetPageSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = n
}

// SetCount overrides info.count in responses (negative = real count).
// Used to simulate inconsistent totals.
func (m *MockAPI) SetCount(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = count
}

// FailNext makes the next n requests answer with status.
func (m *MockAPI) FailNext(n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCount = n
	m.failStatus = status
}

// EnableETags turns on ETag headers and 304 answers to If-None-Match.
func (m *MockAPI) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// SetRateLimit adds X-RateLimit-Remaining/Reset headers to every response.
func (m *MockAPI) SetRateLimit(remaining, resetSeconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimit = &[2]int{remaining, resetSeconds}
}

// SetDelay delays every response.
func (m *MockAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Hold makes requests block until Release is called.
func (m *MockAPI) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hold == nil {
		m.hold = make(chan struct{})
	}
}

// Release unblocks held requests.
func (m *MockAPI) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hold != nil {
		close(m.hold)
		m.hold = nil
	}
}

// RequestCount returns the number of requests received.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns the raw query strings of all received requests.
func (m *MockAPI) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// ConditionalCount returns the number of conditional requests.
func (m *MockAPI) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditional
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// Characters returns the generated characters matching name and status,
// using the API's matching rules.
func (m *MockAPI) Characters(name, status string) []MockCharacter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.match(name, status)
}

func (m *MockAPI) match(name, status string) []MockCharacter {
	var out []MockCharacter
	for _, c := range m.characters {
		if name != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(name)) {
			continue
		}
		if status != "" && !strings.EqualFold(c.Status, status) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (m *MockAPI) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r.URL.RawQuery)
	m.lastHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.conditional++
	}
	hold := m.hold
	delay := m.delay
	failStatus := 0
	if m.failCount > 0 {
		m.failCount--
		failStatus = m.failStatus
	}
	etags := m.etags
	rateLimit := m.rateLimit
	pageSize := m.pageSize
	count := m.count
	m.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if rateLimit != nil {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rateLimit[0]))
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(rateLimit[1]))
	}

	if failStatus != 0 {
		w.WriteHeader(failStatus)
		fmt.Fprintf(w, `{"error":%q}`, http.StatusText(failStatus))
		return
	}

	if strings.Trim(r.URL.Path, "/") != "character" {
		notFound(w)
		return
	}

	q := r.URL.Query()
	page := 1
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"Hey! you must provide a valid page"}`)
			return
		}
		page = n
	}

	m.mu.Lock()
	matches := m.match(q.Get("name"), q.Get("status"))
	m.mu.Unlock()

	pages := (len(matches) + pageSize - 1) / pageSize
	if len(matches) == 0 || page > pages {
		notFound(w)
		return
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(matches))

	if etags {
		etag := strconv.Quote(fmt.Sprintf("%s#%d", r.URL.RawQuery, len(matches)))
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	if count < 0 {
		count = len(matches)
	}

	body := map[string]any{
		"info": map[string]any{
			"count": count,
			"pages": pages,
			"next":  nil,
			"prev":  nil,
		},
		"results": matches[start:end],
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, `{"error":"There is nothing here"}`)
}
