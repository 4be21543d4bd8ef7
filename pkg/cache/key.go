package cache

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/charlist/pkg/filter"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "charlist"

// PageKey identifies one cached page of an API resource.
type PageKey struct {
	// Resource is the API collection path (e.g., "/character/")
	Resource string

	// Filter is the normalized filter the page was fetched for
	Filter filter.Filter

	// Page is the 1-based page number
	Page int
}

// String generates a deterministic cache key string.
// Format: charlist:resource:search=...:status=...:page=N
//
// Example:
//
//	charlist:character:search=rick:status=alive:page=2
func (k PageKey) String() string {
	parts := []string{KeyPrefix}

	resource := strings.Trim(k.Resource, "/")
	if resource != "" {
		parts = append(parts, resource)
	}

	parts = append(parts, k.Filter.Key(), fmt.Sprintf("page=%d", k.Page))

	return strings.Join(parts, ":")
}
