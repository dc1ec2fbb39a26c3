package toolserver

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// invokeLimiter implements per-server rate limiting for registry invokes.
// Servers without a configured rate pass through without limiting.
type invokeLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func newInvokeLimiter() *invokeLimiter {
	return &invokeLimiter{limiters: make(map[string]*rate.Limiter)}
}

// wait blocks until the server's limiter clears the call, or ctx is done.
func (l *invokeLimiter) wait(ctx context.Context, cfg Config) error {
	if cfg.Rate <= 0 {
		return nil
	}
	return l.getLimiter(cfg).Wait(ctx)
}

// getLimiter returns the limiter for a server, creating it on first use.
func (l *invokeLimiter) getLimiter(cfg Config) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[cfg.Name]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[cfg.Name]; exists {
		return limiter
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	l.limiters[cfg.Name] = limiter

	return limiter
}

// drop removes a server's limiter, e.g. after its config was replaced.
func (l *invokeLimiter) drop(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, name)
}
