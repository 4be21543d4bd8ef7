package gateway

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/charlist/pkg/filter"
)

// Common errors returned by the gateway.
var (
	// ErrNotFound is wrapped by empty-result errors: the API answers 404
	// when the filter matches zero characters.
	ErrNotFound = errors.New("no characters match filter")

	// ErrRequestBlocked is returned when the upstream rate limit budget is critical.
	ErrRequestBlocked = errors.New("request blocked: upstream rate limit critical")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorKind distinguishes fetch failures at the gateway boundary.
type ErrorKind string

const (
	// KindTransport covers network failures, non-2xx statuses other than
	// 404, and undecodable bodies.
	KindTransport ErrorKind = "transport"

	// KindEmptyResult is the API's way of saying "zero matches" (HTTP 404).
	KindEmptyResult ErrorKind = "empty_result"
)

// ErrorClass represents a classification of HTTP errors for retry decisions.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// FetchError is returned by Gateway.Fetch for every failed page request.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Filter     filter.Filter
	Page       int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s page %d (%s, status %d): %v",
			e.Filter.Key(), e.Page, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s page %d (%s): %v", e.Filter.Key(), e.Page, e.Kind, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err, or "" if err is not a *FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsEmptyResult reports whether err signals "zero matches".
func IsEmptyResult(err error) bool {
	return KindOf(err) == KindEmptyResult
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return KindOf(err) == KindTransport
}

// HTTPError carries a non-2xx upstream status.
type HTTPError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx (including the 404 empty-result signal) is never retried
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code to an ErrorClass.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
