package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleExpiry      = 10 * time.Minute
)

// LimitReason says which admission limit refused a viewer.
type LimitReason string

const (
	LimitGlobal LimitReason = "global"
	LimitPerIP  LimitReason = "per_ip"
	LimitRate   LimitReason = "rate"
)

// Limits guards viewer admission with three checks: an upgrade rate per IP,
// a cap on concurrent viewers per IP and a cap on concurrent viewers overall.
type Limits struct {
	current   atomic.Int64
	maxGlobal int64

	mu       sync.Mutex
	perIP    map[string]int
	maxPerIP int

	rateMu    sync.Mutex
	limiters  map[string]*ipLimiter
	rate      rate.Limit
	burst     int
	clock     clockwork.Clock
	cleanupAt time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimits allows maxGlobal concurrent viewers, maxPerIP from one address,
// and upgradesPerSecond sustained upgrades per address with the given burst.
func NewLimits(maxGlobal, maxPerIP int, upgradesPerSecond float64, burst int, clock clockwork.Clock) *Limits {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limits{
		maxGlobal: int64(maxGlobal),
		perIP:     make(map[string]int),
		maxPerIP:  maxPerIP,
		limiters:  make(map[string]*ipLimiter),
		rate:      rate.Limit(upgradesPerSecond),
		burst:     burst,
		clock:     clock,
		cleanupAt: clock.Now().Add(limiterCleanupInterval),
	}
}

// Acquire reserves a viewer slot for ip. On success the caller must Release it.
func (l *Limits) Acquire(ip string) (LimitReason, bool) {
	if !l.allow(ip) {
		return LimitRate, false
	}

	for {
		current := l.current.Load()
		if current >= l.maxGlobal {
			return LimitGlobal, false
		}
		if l.current.CompareAndSwap(current, current+1) {
			break
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.perIP[ip] >= l.maxPerIP {
		l.current.Add(-1)
		return LimitPerIP, false
	}
	l.perIP[ip]++
	return "", true
}

func (l *Limits) Release(ip string) {
	l.mu.Lock()
	if count := l.perIP[ip]; count > 1 {
		l.perIP[ip] = count - 1
	} else {
		delete(l.perIP, ip)
	}
	l.mu.Unlock()

	l.current.Add(-1)
}

// Current returns the number of admitted viewers.
func (l *Limits) Current() int {
	return int(l.current.Load())
}

// CountFor returns the number of admitted viewers from ip.
func (l *Limits) CountFor(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

func (l *Limits) allow(ip string) bool {
	l.rateMu.Lock()
	defer l.rateMu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		cutoff := now.Add(-limiterIdleExpiry)
		for addr, entry := range l.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(l.limiters, addr)
			}
		}
		l.cleanupAt = now.Add(limiterCleanupInterval)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *Limits) trackedIPs() int {
	l.rateMu.Lock()
	defer l.rateMu.Unlock()
	return len(l.limiters)
}
