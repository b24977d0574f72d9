// Package limiter rate limits message submissions per client. A redis
// token bucket coordinates limits across hub replicas; a local per-key
// limiter serves single-instance deployments.
package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Store answers whether one more request from key is allowed right now.
type Store interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Local is an in-process per-key token bucket.
type Local struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	rps     rate.Limit
	burst   int
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocal creates a local limiter allowing rps requests per second with
// the given burst per key. Stale buckets are cleaned up in the background.
func NewLocal(rps, burst int) *Local {
	l := &Local{
		buckets: make(map[string]*localBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go l.cleanup()
	return l
}

// Allow consumes one token for key.
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	l.mu.Unlock()
	return b.limiter.Allow(), nil
}

// cleanup drops buckets idle for more than three minutes.
func (l *Local) cleanup() {
	for {
		time.Sleep(time.Minute)
		l.mu.Lock()
		for key, b := range l.buckets {
			if time.Since(b.lastSeen) > 3*time.Minute {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
