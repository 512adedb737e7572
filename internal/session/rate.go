// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package session

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Event rate limit: 100 events per 10 seconds per remote address, with a
// 5 second cooldown once exhausted.
const (
	eventsPerSecond = 10
	eventBurst      = 100
	cooldown        = 5 * time.Second

	// limiterGCThreshold triggers a sweep of idle address entries.
	limiterGCThreshold = 1000
	limiterIdleAge     = 10 * time.Minute
)

type addrEntry struct {
	lim          *rate.Limiter
	blockedUntil time.Time
	lastSeen     time.Time
}

// AddrLimiter enforces the per-address event rate. Loopback addresses
// bypass the limiter entirely.
type AddrLimiter struct {
	mu      sync.Mutex
	entries map[string]*addrEntry
}

// NewAddrLimiter creates an empty limiter.
func NewAddrLimiter() *AddrLimiter {
	return &AddrLimiter{entries: make(map[string]*addrEntry)}
}

// isLoopback reports whether addr (host or host:port) is a loopback
// address.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Allow charges one event against addr's bucket. When the bucket is
// exhausted the address is blocked for the cooldown and retryAfter reports
// how long the caller should wait.
func (l *AddrLimiter) Allow(addr string, now time.Time) (ok bool, retryAfter time.Duration) {
	if isLoopback(addr) {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[addr]
	if e == nil {
		e = &addrEntry{lim: rate.NewLimiter(rate.Limit(eventsPerSecond), eventBurst)}
		l.entries[addr] = e
		if len(l.entries) > limiterGCThreshold {
			l.gcLocked(now)
		}
	}
	e.lastSeen = now

	if now.Before(e.blockedUntil) {
		return false, e.blockedUntil.Sub(now)
	}
	if !e.lim.AllowN(now, 1) {
		e.blockedUntil = now.Add(cooldown)
		return false, cooldown
	}
	return true, 0
}

// gcLocked drops entries idle past limiterIdleAge. Callers hold l.mu.
func (l *AddrLimiter) gcLocked(now time.Time) {
	for addr, e := range l.entries {
		if now.Sub(e.lastSeen) > limiterIdleAge {
			delete(l.entries, addr)
		}
	}
}
