// Package filter holds the user-controlled list filter (free-text search and
// status) and notifies subscribers when it changes.
package filter

import (
	"fmt"
	"net/url"
	"strings"
)

// Status is the character status dimension of a Filter.
// The empty Status means "no status filter".
type Status string

const (
	// StatusAny disables status filtering.
	StatusAny Status = ""

	// StatusAlive matches living characters.
	StatusAlive Status = "alive"

	// StatusDead matches dead characters.
	StatusDead Status = "dead"

	// StatusUnknown matches characters whose status is unknown.
	StatusUnknown Status = "unknown"
)

// ParseStatus normalizes a raw status value. Any value is accepted;
// use Known to check whether it is one of the documented statuses.
func ParseStatus(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// Known reports whether s is StatusAny or one of the documented statuses.
func (s Status) Known() bool {
	switch s {
	case StatusAny, StatusAlive, StatusDead, StatusUnknown:
		return true
	default:
		return false
	}
}

// Filter scopes which entities are eligible for the list.
// Two filters are equal when both fields are equal.
type Filter struct {
	Search string `json:"search"`
	Status Status `json:"status"`
}

// Normalize returns a copy with Search trimmed and Status normalized.
func (f Filter) Normalize() Filter {
	return Filter{
		Search: strings.TrimSpace(f.Search),
		Status: ParseStatus(string(f.Status)),
	}
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Search == "" && f.Status == StatusAny
}

// Key returns a deterministic identifier for the filter.
// Format: search=<escaped>:status=<status>
func (f Filter) Key() string {
	return fmt.Sprintf("search=%s:status=%s", url.QueryEscape(f.Search), url.QueryEscape(string(f.Status)))
}

// Query returns the API query parameters for the filter. Empty dimensions
// are omitted.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("name", f.Search)
	}
	if f.Status != StatusAny {
		q.Set("status", string(f.Status))
	}
	return q
}

// String implements fmt.Stringer.
func (f Filter) String() string {
	return f.Key()
}
