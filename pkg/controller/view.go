package controller

import (
	"github.com/Sternrassler/charlist/pkg/filter"
	"github.com/Sternrassler/charlist/pkg/gateway"
)

// View is the render state of the list.
type View struct {
	Items     []gateway.Character `json:"items"`
	HasMore   bool                `json:"has_more"`
	IsLoading bool                `json:"is_loading"`

	// IsError is set after any failed fetch, including "no results".
	IsError   bool              `json:"is_error"`
	ErrorKind gateway.ErrorKind `json:"error_kind,omitempty"`
	Error     string            `json:"error,omitempty"`

	Filter filter.Filter `json:"filter"`
	Page   int           `json:"page"`
	Phase  Phase         `json:"phase"`

	// Version increases with every view the controller builds.
	Version uint64 `json:"version"`
}

// Empty reports whether the list shows no items and nothing is loading.
func (v View) Empty() bool {
	return len(v.Items) == 0 && !v.IsLoading
}

// NoResults reports whether the last fetch found no matching characters.
func (v View) NoResults() bool {
	return v.ErrorKind == gateway.KindEmptyResult
}
