package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket: tokens refill at a steady rate up to the burst
// size, and each allowed message spends one.
type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	if l.tokens >= 1 {
		l.tokens--
		return true
	}

	return false
}

// PerKey hands out one shared limiter per key, so a user with several tabs
// open draws from a single budget instead of multiplying it.
type PerKey struct {
	limiters map[string]*Limiter
	rate     float64
	burst    int
	mu       sync.Mutex
}

func NewPerKey(rate float64, burst int) *PerKey {
	return &PerKey{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		burst:    burst,
	}
}

func (p *PerKey) Get(key string) *Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.limiters[key]; ok {
		return l
	}

	// Unbounded growth guard: anonymous users churn, so reset wholesale
	// once the map gets silly rather than tracking per-entry idle times.
	if len(p.limiters) > 10000 {
		p.limiters = make(map[string]*Limiter)
	}

	l := NewLimiter(p.rate, p.burst)
	p.limiters[key] = l
	return l
}
