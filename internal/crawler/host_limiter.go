package crawler

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterSettings configures token-bucket pacing per host.
type RateLimiterSettings struct {
	Requests int
	Window   time.Duration
}

// HostLimiter paces article fetches per host. A nil or disabled limiter
// never blocks.
type HostLimiter struct {
	rate RateLimiterSettings

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter returns nil when settings do not describe a usable rate.
func NewHostLimiter(settings RateLimiterSettings) *HostLimiter {
	if settings.Requests <= 0 || settings.Window <= 0 {
		return nil
	}
	return &HostLimiter{
		rate:     settings,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host has a free token or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if h == nil || host == "" {
		return nil
	}
	h.mu.Lock()
	limiter := h.ensureLimiterLocked(strings.ToLower(host))
	h.mu.Unlock()
	return limiter.Wait(ctx)
}

func (h *HostLimiter) ensureLimiterLocked(host string) *rate.Limiter {
	limiter, ok := h.limiters[host]
	if ok {
		return limiter
	}
	interval := h.rate.Window / time.Duration(h.rate.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	limiter = rate.NewLimiter(rate.Every(interval), h.rate.Requests)
	h.limiters[host] = limiter
	return limiter
}
