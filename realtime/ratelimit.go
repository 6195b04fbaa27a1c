package realtime

import (
	"sync"
	"time"
)

const (
	messageCooldown      = 1000 * time.Millisecond
	rateWindow           = time.Minute
	maxMessagesPerMinute = 30
)

// rateLimiter is the client-side advisory throttle on sendMessage: a fixed
// cooldown between sends plus a sliding one-minute window cap. The server
// remains the authority.
type rateLimiter struct {
	mu         sync.Mutex
	clock      func() time.Time
	lastSendAt time.Time
	sendTimes  []time.Time
}

func newRateLimiter(clock func() time.Time) *rateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &rateLimiter{clock: clock}
}

// Allow reports whether a send may proceed now, with a user-facing reason
// when it may not. It does not record the send; only a fully validated and
// emitted message calls Record.
func (r *rateLimiter) Allow() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()

	if !r.lastSendAt.IsZero() && now.Sub(r.lastSendAt) < messageCooldown {
		return false, "Message cooldown active"
	}

	cutoff := now.Add(-rateWindow)
	kept := r.sendTimes[:0]
	for _, ts := range r.sendTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.sendTimes = kept

	if len(r.sendTimes) >= maxMessagesPerMinute {
		return false, "Rate limit exceeded"
	}
	return true, ""
}

func (r *rateLimiter) Record() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	r.lastSendAt = now
	r.sendTimes = append(r.sendTimes, now)
}
