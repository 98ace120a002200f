// Package ratelimit paces outbound requests: a per-host minimum interval
// plus an optional process-wide ceiling shared across all hosts.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// nowFunc and sleepFunc are indirected for deterministic tests.
type nowFunc func() time.Time
type sleepFunc func(time.Duration)

// HostLimiter enforces a minimum interval between requests to the same
// host. WaitTurn computes the sleep duration under its lock and performs
// the sleep itself outside the lock, so different hosts never block each
// other.
type HostLimiter struct {
	mu         sync.Mutex
	nextAllow  map[string]time.Time
	delay      time.Duration
	globalRate *rate.Limiter

	now   nowFunc
	sleep sleepFunc
}

// New builds a HostLimiter that spaces requests to the same host by at
// least delay, and additionally caps the aggregate request rate across
// all hosts at maxConns requests/second (burst of maxConns). A maxConns
// of 0 disables the global ceiling.
func New(delay time.Duration, maxConns int) *HostLimiter {
	hl := &HostLimiter{
		nextAllow: make(map[string]time.Time),
		delay:     delay,
		now:       time.Now,
		sleep:     time.Sleep,
	}
	if maxConns > 0 {
		hl.globalRate = rate.NewLimiter(rate.Limit(maxConns), maxConns)
	}
	return hl
}

// WaitTurn blocks the caller until it is this host's turn, per the
// minimum politeness delay. A delay of zero makes this a no-op for the
// per-host component (the global ceiling, if configured, still applies).
func (h *HostLimiter) WaitTurn(host string) {
	if h.globalRate != nil {
		_ = h.globalRate.Wait(context.Background())
	}

	if h.delay <= 0 {
		return
	}

	h.mu.Lock()
	now := h.now()
	nextAllowed := h.nextAllow[host]
	var sleepFor time.Duration
	if nextAllowed.After(now) {
		sleepFor = nextAllowed.Sub(now)
	}
	base := nextAllowed
	if now.After(base) {
		base = now
	}
	h.nextAllow[host] = base.Add(h.delay)
	h.mu.Unlock()

	if sleepFor > 0 {
		h.sleep(sleepFor)
	}
}
