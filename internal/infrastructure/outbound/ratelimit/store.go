package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

// DefaultIdleTTL is how long an unused client bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

var _ ports.RateLimiter = (*TokenBucketStore)(nil)

type bucket struct {
	limiter  *rate.Limiter
	rate     float64
	burst    int
	lastUsed time.Time
}

// TokenBucketStore keeps one token bucket per client key, refilled on the
// injected clock. Idle buckets are evicted in the background.
type TokenBucketStore struct {
	clock ports.Clock
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTokenBucketStore creates a store and starts its eviction goroutine. Call Stop to end it.
func NewTokenBucketStore(clock ports.Clock, ttl time.Duration) *TokenBucketStore {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	s := &TokenBucketStore{
		clock:   clock,
		ttl:     ttl,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.evictLoop()
	return s
}

// Stop terminates the eviction goroutine. It is idempotent.
func (s *TokenBucketStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *TokenBucketStore) evictLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Evict()
		case <-s.stop:
			return
		}
	}
}

// Allow takes one token from key's bucket, creating it on first use. A
// changed rate or burst is applied to the existing bucket.
func (s *TokenBucketStore) Allow(_ context.Context, key string, r float64, burst int) bool {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	switch {
	case !ok:
		b = &bucket{rate: r, burst: burst}
		b.limiter = rate.NewLimiter(rate.Limit(r), burst)
		s.buckets[key] = b
	case b.rate != r || b.burst != burst:
		b.limiter.SetLimitAt(now, rate.Limit(r))
		b.limiter.SetBurstAt(now, burst)
		b.rate = r
		b.burst = burst
	}

	b.lastUsed = now
	return b.limiter.AllowN(now, 1)
}

// Evict drops buckets idle for longer than the TTL.
func (s *TokenBucketStore) Evict() {
	cutoff := s.clock.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(s.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (s *TokenBucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
