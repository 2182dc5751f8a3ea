package ratelimit

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/avelsk/routegate/internal/observability"
)

var _ io.Closer = (*MemoryLimiter)(nil)

// MemoryLimiter applies a token bucket per key, held in process memory.
// Buckets idle longer than the TTL are evicted by a background sweep;
// call Close to stop it.
type MemoryLimiter struct {
	limit  rate.Limit
	burst  int
	logger observability.Logger

	mu      sync.Mutex
	buckets map[string]*bucket

	sweepInterval time.Duration
	bucketTTL     time.Duration
	stopSweep     chan struct{}
	closeOnce     sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter creates an in-memory limiter from cfg.
func NewMemoryLimiter(cfg Config, logger observability.Logger) *MemoryLimiter {
	if logger == nil {
		logger = observability.NopLogger()
	}

	perSecond := rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds())
	burst := cfg.Requests + cfg.Burst
	if burst < 1 {
		burst = 1
	}

	l := &MemoryLimiter{
		limit:         perSecond,
		burst:         burst,
		logger:        logger,
		buckets:       make(map[string]*bucket),
		sweepInterval: 5 * time.Minute,
		bucketTTL:     10 * time.Minute,
		stopSweep:     make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	limiter := b.limiter
	l.mu.Unlock()

	allowed := limiter.Allow()
	remaining := int(math.Floor(limiter.TokensAt(now)))
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Limit:     l.burst,
		Remaining: remaining,
	}
	if !allowed {
		// time to regain one token
		result.RetryAfter = time.Duration(float64(time.Second) / float64(l.limit))
	}
	return result, nil
}

// Reset implements Limiter.
func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
	return nil
}

// Close stops the background sweep. Safe to call multiple times.
func (l *MemoryLimiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopSweep)
	})
	return nil
}

func (l *MemoryLimiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(l.bucketTTL)
		case <-l.stopSweep:
			return
		}
	}
}

// sweep evicts buckets that have not been touched within maxAge.
func (l *MemoryLimiter) sweep(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	evicted := 0

	l.mu.Lock()
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			evicted++
		}
	}
	l.mu.Unlock()

	if evicted > 0 {
		l.logger.Debug("evicted stale rate limit buckets",
			observability.Int("count", evicted),
		)
	}
}
