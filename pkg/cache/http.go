package cache

import (
	"net/http"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when no Expires header is present.
	// The character API sends none, so this is the effective page lifetime.
	DefaultTTL = 5 * time.Minute
)

// NewEntry builds a cache entry for a fetched page from its body, status and
// response headers. Expires follows ExpiresFromHeader; an unparsable
// Last-Modified is left zero.
func NewEntry(body []byte, status int, header http.Header) *Entry {
	entry := &Entry{
		Data:       body,
		ETag:       header.Get("ETag"),
		StatusCode: status,
		Expires:    ExpiresFromHeader(header),
		CachedAt:   time.Now(),
	}
	if lm, err := http.ParseTime(header.Get("Last-Modified")); err == nil {
		entry.LastModified = lm
	}
	return entry
}

// ExpiresFromHeader parses the Expires header, falling back to now + DefaultTTL
// when it is missing or malformed. A past Expires yields now.
func ExpiresFromHeader(headers http.Header) time.Time {
	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(DefaultTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(DefaultTTL)
	}

	if expires.Before(time.Now()) {
		return time.Now()
	}

	return expires
}

// AddConditionalHeaders adds If-None-Match (ETag) or If-Modified-Since
// to the request when the entry carries a validator.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}

	// ETag is more accurate than Last-Modified
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.Format(http.TimeFormat))
	}
}
