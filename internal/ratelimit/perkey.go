package ratelimit

import (
	"sync"
	"time"
)

// PerKeyLimiter maintains an independent token bucket per key, so one
// user or chat hammering the bot cannot exhaust everyone's quota.
// Idle buckets are dropped by a background cleanup loop.
type PerKeyLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*Limiter
	maxTokens  float64
	refillRate float64
	stop       chan struct{}
	stopOnce   sync.Once

	// OnDrop, if set, is called with the key whenever Allow rejects a
	// request. Used for metrics.
	OnDrop func(key string)
}

// NewPerKey creates a per-key limiter. Each key gets a bucket with the
// given capacity and refill rate. cleanupGap controls how often full
// (idle) buckets are evicted.
func NewPerKey(maxTokens, refillRate float64, cleanupGap time.Duration) *PerKeyLimiter {
	p := &PerKeyLimiter{
		limiters:   make(map[string]*Limiter),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		stop:       make(chan struct{}),
	}
	go p.cleanupLoop(cleanupGap)
	return p
}

// Allow reports whether a request for key is allowed, consuming a token
// from that key's bucket if so.
func (p *PerKeyLimiter) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.limiters[key]
	if !ok {
		l = New(p.maxTokens, p.refillRate)
		p.limiters[key] = l
	}
	p.mu.Unlock()

	allowed := l.Allow()
	if !allowed && p.OnDrop != nil {
		p.OnDrop(key)
	}
	return allowed
}

// Len returns the number of tracked keys.
func (p *PerKeyLimiter) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.limiters)
}

// Stop terminates the cleanup loop. Safe to call more than once.
func (p *PerKeyLimiter) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *PerKeyLimiter) cleanupLoop(gap time.Duration) {
	ticker := time.NewTicker(gap)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.cleanup()
		}
	}
}

// cleanup evicts buckets that have refilled to capacity, meaning the
// key has been idle for long enough to forget.
func (p *PerKeyLimiter) cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, l := range p.limiters {
		if l.IsFull() {
			delete(p.limiters, key)
		}
	}
}
