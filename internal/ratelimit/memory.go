package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

// window holds the retained admission timestamps for one key, oldest first.
// Invariant: len(times) never exceeds the rule limit for the key.
type window struct {
	times      []time.Time
	lastAccess time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Limiter is a sliding-window limiter over sharded in-memory state.
// Safe for concurrent use by any number of goroutines.
type Limiter struct {
	shards [shardCount]*shard

	now func() time.Time // injectable clock for tests

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Limiter. A background goroutine evicts keys idle for more
// than ten minutes; call Close to stop it.
func New() *Limiter {
	l := &Limiter{
		now:  time.Now,
		done: make(chan struct{}),
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	go l.cleanup()
	return l
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

// Allow prunes timestamps older than now-window, then admits and records
// the request unless the retained count has reached the limit. Rejected
// requests are not recorded.
func (l *Limiter) Allow(rule Rule, key string) Result {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-rule.Window)

	w, ok := s.windows[key]
	if !ok {
		w = &window{}
		s.windows[key] = w
	}
	w.lastAccess = now

	// Prune expired entries. Timestamps are appended in order, so the
	// retained suffix starts at the first entry past the cutoff.
	keep := 0
	for keep < len(w.times) && !w.times[keep].After(cutoff) {
		keep++
	}
	w.times = w.times[keep:]

	if len(w.times) >= rule.Limit {
		return Result{
			Allowed:   false,
			Limit:     rule.Limit,
			Remaining: 0,
			ResetAt:   w.times[0].Add(rule.Window),
		}
	}

	w.times = append(w.times, now)
	resetAt := w.times[0].Add(rule.Window)
	return Result{
		Allowed:   true,
		Limit:     rule.Limit,
		Remaining: rule.Limit - len(w.times),
		ResetAt:   resetAt,
	}
}

// Close stops the eviction goroutine. Safe to call multiple times.
func (l *Limiter) Close() error {
	l.stopOnce.Do(func() { close(l.done) })
	return nil
}

const staleThreshold = 10 * time.Minute

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictStale()
		}
	}
}

func (l *Limiter) evictStale() {
	cutoff := l.now().Add(-staleThreshold)
	for _, s := range l.shards {
		s.mu.Lock()
		for key, w := range s.windows {
			if w.lastAccess.Before(cutoff) {
				delete(s.windows, key)
			}
		}
		s.mu.Unlock()
	}
}
