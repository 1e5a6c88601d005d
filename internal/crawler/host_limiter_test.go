package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewHostLimiter(RateLimiterSettings{}))
	var limiter *HostLimiter
	assert.NoError(t, limiter.Wait(context.Background(), "example.com"))
}

func TestHostLimiterPacesPerHost(t *testing.T) {
	limiter := NewHostLimiter(RateLimiterSettings{Requests: 1, Window: time.Hour})
	require.NotNil(t, limiter)

	require.NoError(t, limiter.Wait(context.Background(), "a.example"))
	require.NoError(t, limiter.Wait(context.Background(), "B.example"), "hosts have independent buckets")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx, "A.EXAMPLE"), "second request in the window must wait")
}
