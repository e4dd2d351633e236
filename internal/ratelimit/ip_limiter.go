package ratelimit

import (
	"sync"
	"time"
)

const (
	cleanupInterval = 5 * time.Minute
	idleEviction    = time.Hour
	maxTrackedIPs   = 10000
)

// IPLimiter maintains one child Limiter per client IP. Idle entries are
// reaped every five minutes; when the tracked set would exceed its cap the
// longest-idle entries are discarded first.
type IPLimiter struct {
	mu          sync.Mutex
	cfg         Config
	limiters    map[string]*ipEntry
	lastCleanup time.Time

	now func() time.Time
}

type ipEntry struct {
	limiter  *Limiter
	lastSeen time.Time
}

// NewIPLimiter creates the per-IP registry; cfg is applied to every child.
func NewIPLimiter(cfg Config) *IPLimiter {
	return &IPLimiter{
		cfg:      cfg,
		limiters: make(map[string]*ipEntry),
		now:      time.Now,
	}
}

// Allow checks whether the client may proceed and records the call when it
// may. Disabled configs always allow.
func (p *IPLimiter) Allow(ip string) bool {
	if !p.cfg.Enabled {
		return true
	}

	l := p.limiterFor(ip)
	if l.ShouldThrottle() {
		return false
	}
	l.RecordCall()
	return true
}

func (p *IPLimiter) limiterFor(ip string) *Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastCleanup) >= cleanupInterval {
		p.cleanupLocked(now)
		p.lastCleanup = now
	}

	e, ok := p.limiters[ip]
	if !ok {
		if len(p.limiters) >= maxTrackedIPs {
			p.evictOldestLocked()
		}
		e = &ipEntry{limiter: NewLimiter(p.cfg)}
		p.limiters[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (p *IPLimiter) cleanupLocked(now time.Time) {
	for ip, e := range p.limiters {
		if now.Sub(e.lastSeen) > idleEviction {
			delete(p.limiters, ip)
		}
	}
}

func (p *IPLimiter) evictOldestLocked() {
	var oldestIP string
	var oldest time.Time
	for ip, e := range p.limiters {
		if oldestIP == "" || e.lastSeen.Before(oldest) {
			oldestIP = ip
			oldest = e.lastSeen
		}
	}
	if oldestIP != "" {
		delete(p.limiters, oldestIP)
	}
}

// TrackedIPs returns how many client IPs currently have limiters.
func (p *IPLimiter) TrackedIPs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.limiters)
}
