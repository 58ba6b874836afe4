package github

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mersinvald/rustyrobot/pkg/metrics"
)

// ErrEmptyResponse reports a response that arrived without a body where one
// was required.
var ErrEmptyResponse = errors.New("github: server returned empty response")

// StatusError reports a response status outside the caller's accepted set.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: server returned status %d", e.Status)
}

// RateLimitError reports a server-side rate-limit rejection. RetryIn is
// derived from the latest snapshot's reset time and may be zero when the
// reset is unknown.
type RateLimitError struct {
	RetryIn time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: exceeded rate limit, retry in %s", e.RetryIn)
}

// RateLimit is the most recently observed quota snapshot.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
	Used      int       `json:"-"`
}

// limitThreshold is the remaining-quota floor. Below it, requests wait for
// the reset window before going out.
const limitThreshold = 5

// limitGuard holds a quota snapshot behind a reader-writer lock. Readers are
// the admission checks of concurrent calls; the single writer is whichever
// call most recently parsed response metadata.
type limitGuard struct {
	mu       sync.RWMutex
	snapshot RateLimit
}

func (g *limitGuard) get() RateLimit {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot
}

func (g *limitGuard) set(limit RateLimit) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshot = limit
}

// admit blocks until the snapshot allows another request. With fewer than
// limitThreshold requests remaining and the reset still ahead, it sleeps
// until the reset.
func (g *limitGuard) admit(version string, now func() time.Time, sleep func(time.Duration)) {
	limits := g.get()
	current := now()
	if limits.Remaining < limitThreshold && current.Before(limits.ResetAt) {
		timeout := limits.ResetAt.Sub(current)
		metrics.APIRateLimitSleeps.WithLabelValues(version).Inc()
		sleep(timeout)
	}
}

// retryIn computes how long to wait before retrying against the snapshot's
// reset time. Zero when the reset is unknown or already past.
func (g *limitGuard) retryIn(now func() time.Time) time.Duration {
	limits := g.get()
	wait := limits.ResetAt.Sub(now())
	if wait < 0 {
		wait = 0
	}
	return wait
}

// isRateLimitMessage reports whether a 403 body carries the remote API's
// rate-limit rejection message.
func isRateLimitMessage(message string) bool {
	return strings.HasPrefix(message, "API rate limit exceeded")
}
