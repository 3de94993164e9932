package notifiers

import (
	"sync"

	"golang.org/x/time/rate"
)

// typeRateLimiter caps sends per notification type.
type typeRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// newTypeRateLimiter returns nil when perMinute is not positive, which disables limiting.
func newTypeRateLimiter(perMinute int) *typeRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &typeRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(perMinute) / 60.0),
		burst:    max(1, perMinute/10), // 10% burst, minimum 1
	}
}

func (l *typeRateLimiter) Allow(notificationType string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, exists := l.limiters[notificationType]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[notificationType] = limiter
	}
	return limiter.Allow()
}
