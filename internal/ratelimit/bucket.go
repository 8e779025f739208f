package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketLimiter spreads a policy's ceiling over its window as a token bucket with a
// burst equal to the ceiling. It smooths provider traffic instead of allowing the
// whole budget at the start of every window.
type BucketLimiter struct {
	mu       sync.Mutex
	limiters map[Key]*bucket
	now      func() time.Time
}

type bucket struct {
	limiter *rate.Limiter
	policy  Policy
}

func NewBucketLimiter() *BucketLimiter {
	return newBucketLimiter(time.Now)
}

func newBucketLimiter(now func() time.Time) *BucketLimiter {
	return &BucketLimiter{
		limiters: make(map[Key]*bucket),
		now:      now,
	}
}

func (bl *BucketLimiter) get(key Key, policy Policy) *rate.Limiter {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	b, ok := bl.limiters[key]
	if !ok || b.policy != policy {
		every := rate.Every(policy.Window / time.Duration(policy.Ceiling))
		b = &bucket{limiter: rate.NewLimiter(every, policy.Ceiling), policy: policy}
		bl.limiters[key] = b
	}
	return b.limiter
}

func (bl *BucketLimiter) TryAcquire(_ context.Context, key Key, policy Policy) Decision {
	policy = policy.normalized()
	if policy.Ceiling <= 0 {
		return Decision{Allowed: true}
	}

	lim := bl.get(key, policy)
	now := bl.now()

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, Count: policy.Ceiling, RetryAfter: policy.Window}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, Count: policy.Ceiling, RetryAfter: delay}
	}

	used := policy.Ceiling - int(lim.TokensAt(now))
	return Decision{Allowed: true, Count: used}
}

func (bl *BucketLimiter) Close() {}
