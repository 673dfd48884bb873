package limiter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultAsErrorRoundTrip(t *testing.T) {
	allowed := Result{Allowed: true}
	assert.NoError(t, allowed.AsError("k"))

	denied := Result{Allowed: false, RetryAfter: 2500 * time.Millisecond}
	err := denied.AsError("k")
	require := assert.New(t)
	require.Error(err)

	var exceeded *ErrRateLimitExceeded
	require.True(errors.As(err, &exceeded))
	require.Equal("k", exceeded.Key)
	require.Equal("3", exceeded.ToHeaders()["Retry-After"])
}
