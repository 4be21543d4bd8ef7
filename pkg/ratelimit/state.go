// Package ratelimit tracks the upstream API's request budget and gates
// page requests. It reads the X-RateLimit-Remaining and X-RateLimit-Reset
// response headers and shares the state across gateway instances via Redis.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyRemaining      = "charlist:rate_limit:remaining"
	RedisKeyResetTimestamp = "charlist:rate_limit:reset_timestamp"
	RedisKeyLastUpdate     = "charlist:rate_limit:last_update"
)

// Response headers carrying the upstream budget.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks requests when the remaining budget falls below it.
	ThresholdCritical = 5

	// ThresholdWarning throttles requests when the remaining budget falls below it.
	ThresholdWarning = 20

	// ThresholdHealthy marks normal operation.
	ThresholdHealthy = 50
)

// State is the last known upstream request budget.
type State struct {
	// Remaining requests in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
// A window that has already reset never blocks.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < ThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < ThresholdWarning && s.TimeUntilReset() > 0 && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
