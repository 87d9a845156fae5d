// Package ratelimit implements sliding-window admission control keyed by
// (principal, tool).
//
// Windows live in sharded in-memory maps so unrelated keys never contend on
// one lock; the check-and-record sequence for a key happens under its
// shard's lock, so two borderline requests for the same key cannot both be
// admitted at the limit boundary.
package ratelimit

import (
	"strconv"
	"time"
)

// Rule describes one admission policy.
type Rule struct {
	Limit  int           // admissions per Window
	Window time.Duration // trailing window length
}

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time // when the oldest retained admission leaves the window
}

// FormatHeaders returns the standard rate-limit response headers.
func (r Result) FormatHeaders() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
}

// RetryAfterSeconds derives the retry-after hint from the window, never
// less than one second.
func (r Result) RetryAfterSeconds() int {
	secs := int(time.Until(r.ResetAt).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
