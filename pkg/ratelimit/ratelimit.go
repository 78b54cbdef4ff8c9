package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes the outcome of a rate-limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limit defines a fixed-window limit.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// Store counts requests per key within fixed windows.
type Store interface {
	// Incr increments the counter for key, creating a window expiring after
	// the given duration when none is active, and returns the new count and
	// the window expiry.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// Limiter applies fixed-window limits against a Store.
type Limiter struct {
	store Store
}

// New constructs a Limiter over the given store.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Check records a hit for the identifier and reports whether it stays within
// the limit. Counting happens before the comparison, so a denied request still
// consumes the window slot it attempted.
func (l *Limiter) Check(ctx context.Context, identifier string, limit Limit) (Result, error) {
	count, resetAt, err := l.store.Incr(ctx, identifier, limit.Window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit incr: %w", err)
	}

	remaining := limit.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if count > int64(limit.MaxRequests) {
		retry := time.Until(resetAt)
		if retry < 0 {
			retry = 0
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, RetryAfter: retry}, nil
	}

	return Result{Allowed: true, Remaining: remaining, ResetAt: resetAt}, nil
}

// RedisStore keeps window counters in Redis so limits hold across instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Incr increments the window counter, setting the expiry on first hit.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	redisKey := fmt.Sprintf("%s:%s", s.prefix, key)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}

	expiry := ttl.Val()
	if expiry < 0 {
		expiry = window
	}
	return incr.Val(), time.Now().Add(expiry), nil
}

type memoryEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a process-local fallback used when Redis is not configured.
// Counters are not shared between instances, so limits apply per process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore constructs a MemoryStore and starts a sweep loop that drops
// expired windows.
func NewMemoryStore(sweepPeriod time.Duration) *MemoryStore {
	if sweepPeriod <= 0 {
		sweepPeriod = 5 * time.Minute
	}
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		done:    make(chan struct{}),
	}
	go s.sweep(sweepPeriod)
	return s
}

// Incr increments the counter for key, starting a fresh window when expired.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &memoryEntry{count: 0, resetAt: now.Add(window)}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, entry.resetAt, nil
}

// Close stops the sweep loop.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) sweep(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.resetAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
