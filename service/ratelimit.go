package service

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds accepted submissions per identity with a sliding
// window held in process memory. It is a soft, per-instance limit: in a
// multi-instance deployment each instance keeps its own view.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string][]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	limiter := &RateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string][]time.Time),
		cancel:  cancel,
	}

	limiter.wg.Add(1)
	go limiter.sweepStale(ctx)
	return limiter
}

// Admit reports whether identityKey may submit at now, appending now to the
// identity's window on success. Entries older than the window are pruned on
// every call.
func (l *RateLimiter) Admit(identityKey string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	entries := l.windows[identityKey]

	kept := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.windows[identityKey] = kept
		return false
	}

	l.windows[identityKey] = append(kept, now)
	return true
}

func (l *RateLimiter) Stop() {
	l.cancel()
	l.wg.Wait()
}

// sweepStale evicts identities that have been idle for several windows so
// the map does not grow with every visitor ever seen.
func (l *RateLimiter) sweepStale(ctx context.Context) {
	defer l.wg.Done()
	ticker := time.NewTicker(10 * l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evictIdleBefore(now.Add(-5 * l.window))
		}
	}
}

func (l *RateLimiter) evictIdleBefore(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entries := range l.windows {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.windows, key)
		}
	}
}
