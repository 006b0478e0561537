package api

import (
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// sendLimiter rate-limits message creation per user id.
type sendLimiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

func newSendLimiter(rps float64, burst int) *sendLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &sendLimiter{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (p *sendLimiter) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

func (p *sendLimiter) Allow(uid int64) bool {
	return p.get(strconv.FormatInt(uid, 10)).Allow()
}
