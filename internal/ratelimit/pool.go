// Package ratelimit keeps one token bucket per key.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Pool hands out a limiter per key, created on first use.
type Pool struct {
	rps   float64
	burst int

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func NewPool(rps float64, burst int) *Pool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Pool{rps: rps, burst: burst, m: make(map[string]*rate.Limiter)}
}

func (p *Pool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// Allow reports whether key may act now and consumes a token if so.
func (p *Pool) Allow(key string) bool {
	return p.get(key).Allow()
}
