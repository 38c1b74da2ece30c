// Package ratelimit provides token-bucket limiters keyed by caller and by
// model, built on golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed hands out one limiter per key, created on first use.
type Keyed struct {
	limiters map[string]*keyedEntry
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewKeyed creates a keyed limiter with the given events per second and burst size.
func NewKeyed(rps float64, burst int) *Keyed {
	return &Keyed{
		limiters: make(map[string]*keyedEntry),
		rate:     rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (k *Keyed) get(key string) *keyedEntry {
	k.mu.RLock()
	entry, exists := k.limiters[key]
	k.mu.RUnlock()

	if exists {
		return entry
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, exists = k.limiters[key]; exists {
		return entry
	}

	entry = &keyedEntry{limiter: rate.NewLimiter(k.rate, k.burst)}
	k.limiters[key] = entry
	return entry
}

// Allow reports whether an event for key may happen now.
func (k *Keyed) Allow(key string) bool {
	entry := k.get(key)
	allowed := entry.limiter.Allow()

	k.mu.Lock()
	entry.lastSeen = k.now()
	k.mu.Unlock()

	return allowed
}

// Cleanup drops limiters not used within maxAge.
func (k *Keyed) Cleanup(maxAge time.Duration) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := k.now().Add(-maxAge)
	removed := 0
	for key, entry := range k.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(k.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.limiters)
}
