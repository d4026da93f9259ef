package identity

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxThrottledHosts bounds the limiter map. When it is exceeded the map is
// reset, which at worst hands every host a fresh burst.
const maxThrottledHosts = 10_000

// loginThrottle limits credential checks per remote host.
type loginThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLoginThrottle(limit rate.Limit, burst int) *loginThrottle {
	return &loginThrottle{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    max(burst, 1),
	}
}

func (t *loginThrottle) allow(host string) bool {
	if t == nil {
		return true
	}

	t.mu.Lock()
	l, ok := t.limiters[host]
	if !ok {
		if len(t.limiters) >= maxThrottledHosts {
			t.limiters = make(map[string]*rate.Limiter)
		}
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[host] = l
	}
	t.mu.Unlock()

	return l.Allow()
}
