package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Roulette/internal/domain"
)

// MessageRateLimiter is a sliding-window limit on inbound messages per
// endpoint. A nil limiter or a zero limit allows everything.
type MessageRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.EndpointID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewMessageRateLimiter(limit int, interval time.Duration) *MessageRateLimiter {
	return &MessageRateLimiter{
		history:  make(map[domain.EndpointID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *MessageRateLimiter) Allow(id domain.EndpointID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[id]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[id] = fresh
		return false
	}
	rl.history[id] = append(fresh, now)
	return true
}

// Forget drops the history of a disconnected endpoint.
func (rl *MessageRateLimiter) Forget(id domain.EndpointID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.history, id)
	rl.mu.Unlock()
}
