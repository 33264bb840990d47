package service

import (
	"sync"
	"time"
)

// PresenceTracker keeps last-seen heartbeats in memory and derives an
// approximate online count. Entries past the TTL are excluded from the
// count and evicted opportunistically; nothing is persisted.
type PresenceTracker struct {
	ttl time.Duration

	mu       sync.RWMutex
	lastSeen map[string]time.Time
}

func NewPresenceTracker(ttl time.Duration) *PresenceTracker {
	return &PresenceTracker{
		ttl:      ttl,
		lastSeen: make(map[string]time.Time),
	}
}

// Heartbeat records or overwrites the last-seen timestamp for key.
func (p *PresenceTracker) Heartbeat(key string, now time.Time) {
	if key == "" {
		return
	}
	p.mu.Lock()
	p.lastSeen[key] = now
	p.mu.Unlock()
}

// OnlineCount returns how many keys were seen within the TTL of now,
// evicting expired entries along the way.
func (p *PresenceTracker) OnlineCount(now time.Time) int {
	cutoff := now.Add(-p.ttl)

	p.mu.Lock()
	defer p.mu.Unlock()

	count := 0
	for key, seen := range p.lastSeen {
		if seen.After(cutoff) {
			count++
		} else {
			delete(p.lastSeen, key)
		}
	}
	return count
}
