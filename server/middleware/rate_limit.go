package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TenantRateLimiter limits stats requests per tenant so one tenant's
// benchmark loop cannot starve the others.
type TenantRateLimiter struct {
	mu        sync.RWMutex
	limits    map[string]*rate.Limiter
	perSecond int
}

// NewTenantRateLimiter creates a limiter allowing perSecond requests per
// tenant with a burst of twice that.
func NewTenantRateLimiter(perSecond int) *TenantRateLimiter {
	return &TenantRateLimiter{
		limits:    make(map[string]*rate.Limiter),
		perSecond: perSecond,
	}
}

// getLimiter gets or creates a limiter for the given tenant key.
func (rl *TenantRateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[key]; ok {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Every(time.Second/time.Duration(rl.perSecond)), rl.perSecond*2)
	rl.limits[key] = limiter
	return limiter
}

// Allow checks if a request is allowed for the given tenant key.
func (rl *TenantRateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait waits for a request to be allowed.
// Returns error if the context is cancelled or rate limit exceeded.
func (rl *TenantRateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}
