package core

import "time"

// RateLimitEntry is the fixed-window counter kept per client key
type RateLimitEntry struct {
	Key           string
	Count         int
	WindowResetAt time.Time
}

// RateLimitDecision is the answer to a single request against a window
type RateLimitDecision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration // zero when Allowed
}

// RetryAfterSeconds rounds the remaining window up to whole seconds.
func (d RateLimitDecision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}
