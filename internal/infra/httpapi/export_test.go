package httpapi

import "time"

func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	rl.now = now
	rl.mu.Unlock()
}
