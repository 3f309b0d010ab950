package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the in-memory table before expired windows are evicted.
const DefaultMaxEntries = 10000

// Result describes the outcome of one counted request.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Checker is satisfied by both the in-memory and the Redis-backed limiters.
type Checker interface {
	Check(ctx context.Context, key string, max int, window time.Duration) (Result, error)
}

// Key joins an endpoint namespace and a caller identity.
func Key(namespace, identity string) string {
	ns := strings.ToLower(strings.TrimSpace(namespace))
	id := strings.TrimSpace(identity)
	if id == "" {
		id = "unknown"
	}
	return ns + ":" + id
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a per-process fixed-window counter. Windows reset lazily on the first
// access after they expire; no background goroutine is started.
type Limiter struct {
	mu         sync.Mutex
	entries    map[string]*window
	maxEntries int
	now        func() time.Time
}

// Options configure a Limiter.
type Options struct {
	MaxEntries int
	Clock      func() time.Time
}

// New builds an empty limiter.
func New(opts Options) *Limiter {
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{
		entries:    make(map[string]*window),
		maxEntries: maxEntries,
		now:        clock,
	}
}

// Check counts one request against key. Rejected requests are not counted.
func (l *Limiter) Check(_ context.Context, key string, max int, win time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &window{count: 0, resetAt: now.Add(win)}
		l.entries[key] = entry
		if len(l.entries) > l.maxEntries {
			l.evictExpired(now)
		}
	}

	if entry.count >= max {
		return Result{Allowed: false, Remaining: 0, ResetAt: entry.resetAt}, nil
	}
	entry.count++
	return Result{Allowed: true, Remaining: max - entry.count, ResetAt: entry.resetAt}, nil
}

// Len returns the number of tracked windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) evictExpired(now time.Time) {
	for key, entry := range l.entries {
		if !now.Before(entry.resetAt) {
			delete(l.entries, key)
		}
	}
}

var (
	_ Checker = (*Limiter)(nil)
	_ Checker = (*RedisLimiter)(nil)
)
