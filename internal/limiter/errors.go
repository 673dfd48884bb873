package limiter

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrRateLimitExceeded is not an internal failure: it is raised by the
// middleware boundary when a Hit is denied, carrying enough detail to build
// an HTTP response. The core façade itself returns a Result, never this
// error; adapters choose to convert.
type ErrRateLimitExceeded struct {
	Key        string
	RetryAfter time.Duration
}

func (e *ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("limiter: rate limit exceeded for %q, retry after %s", e.Key, e.RetryAfter)
}

// ToHeaders returns the Retry-After header view of the denial.
func (e *ErrRateLimitExceeded) ToHeaders() map[string]string {
	return map[string]string{
		"Retry-After": fmt.Sprintf("%d", int64(math.Ceil(e.RetryAfter.Seconds()))),
	}
}

// ErrScript is returned for an unknown policy name and for a script reply
// that is not the expected {status, retry_after, remaining} tuple.
var ErrScript = errors.New("limiter: script error")
