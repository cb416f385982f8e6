// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package ratelimit bounds request rate per client IP before
// authentication runs, shedding abusive traffic cheaply.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultIdleTTL is how long an IP's bucket survives without traffic
// before the eviction pass drops it.
const defaultIdleTTL = 3 * time.Minute

// Guard is a per-IP token bucket. The limiter map is the gateway's only
// shared mutable state; it is guarded by a single mutex since contention
// is bounded by distinct client IPs, not request volume.
type Guard struct {
	mu       sync.Mutex
	limiters map[string]*entry

	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New constructs a Guard refilling at perSecond tokens with the given
// burst capacity.
func New(perSecond float64, burst int) *Guard {
	return &Guard{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
	}
}

// Admit reports whether a request from the given client IP may proceed,
// consuming one token when it does.
func (g *Guard) Admit(clientIP string) bool {
	g.mu.Lock()
	e, ok := g.limiters[clientIP]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(g.limit, g.burst)}
		g.limiters[clientIP] = e
	}
	e.lastSeen = g.now()
	g.mu.Unlock()

	return e.limiter.Allow()
}

// PruneIdle drops buckets that have not seen traffic within the idle TTL
// and returns how many were removed.
func (g *Guard) PruneIdle() int {
	cutoff := g.now().Add(-g.idleTTL)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for ip, e := range g.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(g.limiters, ip)
			removed++
		}
	}
	return removed
}

// Run evicts idle buckets periodically until the context is cancelled.
// Intended to be started in its own goroutine at process start.
func (g *Guard) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.PruneIdle()
		}
	}
}
