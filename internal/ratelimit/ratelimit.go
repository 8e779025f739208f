package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/leozw/vessel-guardian/internal/tenant"
)

const DefaultWindow = time.Minute

// Key identifies one request budget.
type Key struct {
	Tenant   tenant.ID
	Provider string
}

func (k Key) String() string {
	return string(k.Tenant) + ":" + k.Provider
}

// Policy is a provider's request ceiling per window.
type Policy struct {
	Ceiling int           `mapstructure:"ceiling"`
	Window  time.Duration `mapstructure:"window"`
}

func (p Policy) normalized() Policy {
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	return p
}

// Decision is the outcome of a TryAcquire call.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds. Denied decisions never
// report zero.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter enforces a Policy per Key. TryAcquire must be an atomic check-and-increment:
// two concurrent callers never both take the last slot.
type Limiter interface {
	TryAcquire(ctx context.Context, key Key, policy Policy) Decision
	Close()
}
