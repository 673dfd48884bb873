package limiter

import (
	"fmt"
	"math"
	"time"

	"github.com/swam244/flux/internal/scripts"
)

// Result is the decision returned by a single Hit.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	Policy     scripts.Policy
	Limit      int64
	ResetAt    time.Time
}

// AsError converts a denied Result into an *ErrRateLimitExceeded for callers
// that prefer Go's error-return idiom over inspecting Result.Allowed
// directly (e.g. gRPC interceptors, job queues). Returns nil when allowed.
func (r Result) AsError(key string) error {
	if r.Allowed {
		return nil
	}
	return &ErrRateLimitExceeded{Key: key, RetryAfter: r.RetryAfter}
}

// ToHeaders returns the X-RateLimit-* / Retry-After header view used by HTTP
// middleware adapters.
func (r Result) ToHeaders() map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     fmt.Sprintf("%d", r.Limit),
		"X-RateLimit-Remaining": fmt.Sprintf("%d", r.Remaining),
		"X-RateLimit-Reset":     fmt.Sprintf("%d", r.ResetAt.Unix()),
	}
	if !r.Allowed {
		h["Retry-After"] = fmt.Sprintf("%d", int64(math.Ceil(r.RetryAfter.Seconds())))
	}
	return h
}
