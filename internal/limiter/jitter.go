package limiter

import (
	"math/rand/v2"
	"time"
)

// applyJitter adds a uniformly sampled value in [0, maxMS/1000] seconds to
// retryAfter, per the jitter_enabled / jitter_max_ms configuration. It is a
// no-op when retryAfter is zero (an allowed decision is never jittered).
func applyJitter(retryAfter time.Duration, maxMS int) time.Duration {
	if retryAfter <= 0 || maxMS <= 0 {
		return retryAfter
	}
	span := time.Duration(maxMS) * time.Millisecond
	return retryAfter + time.Duration(rand.Int64N(int64(span)+1))
}
