package ratelimit

import (
	"context"
	"sync/atomic"

	"github.com/leozw/vessel-guardian/internal/tenant"
)

// Throttle applies per-provider policies on top of a Limiter.
type Throttle struct {
	limiter  Limiter
	policies map[string]Policy
	fallback Policy

	denied atomic.Int64
}

func NewThrottle(limiter Limiter, policies map[string]Policy, fallback Policy) *Throttle {
	p := make(map[string]Policy, len(policies))
	for name, policy := range policies {
		p[name] = policy.normalized()
	}
	return &Throttle{
		limiter:  limiter,
		policies: p,
		fallback: fallback.normalized(),
	}
}

// Policy returns the policy for provider, falling back to the default.
func (t *Throttle) Policy(provider string) Policy {
	if p, ok := t.policies[provider]; ok {
		return p
	}
	return t.fallback
}

// TryAcquire takes one slot of the (tenant, provider) budget. Callers check that the
// provider is configured first so an unusable provider never consumes budget.
func (t *Throttle) TryAcquire(ctx context.Context, tid tenant.ID, provider string) Decision {
	d := t.limiter.TryAcquire(ctx, Key{Tenant: tid, Provider: provider}, t.Policy(provider))
	if !d.Allowed {
		t.denied.Add(1)
	}
	return d
}

// Denied is the number of requests refused since start.
func (t *Throttle) Denied() int64 {
	return t.denied.Load()
}

func (t *Throttle) Close() {
	t.limiter.Close()
}
