package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

type windowState struct {
	count     int
	windowEnd time.Time
}

// WindowLimiter is an in-process fixed-window counter.
type WindowLimiter struct {
	mu      sync.Mutex
	entries map[Key]windowState
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

func NewWindowLimiter() *WindowLimiter {
	return newWindowLimiter(time.Now, true)
}

func newWindowLimiter(now func() time.Time, sweep bool) *WindowLimiter {
	rl := &WindowLimiter{
		entries: make(map[Key]windowState),
		now:     now,
		stopCh:  make(chan struct{}),
	}
	if sweep {
		go rl.sweepLoop()
	}
	return rl
}

func (rl *WindowLimiter) TryAcquire(_ context.Context, key Key, policy Policy) Decision {
	policy = policy.normalized()
	if policy.Ceiling <= 0 {
		return Decision{Allowed: true}
	}

	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.entries[key]
	if !ok || !now.Before(state.windowEnd) {
		state = windowState{count: 1, windowEnd: now.Add(policy.Window)}
		rl.entries[key] = state
		return Decision{Allowed: true, Count: state.count}
	}
	if state.count >= policy.Ceiling {
		return Decision{Allowed: false, Count: state.count, RetryAfter: state.windowEnd.Sub(now)}
	}
	state.count++
	rl.entries[key] = state
	return Decision{Allowed: true, Count: state.count}
}

func (rl *WindowLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(rl.now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *WindowLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, state := range rl.entries {
		if !now.Before(state.windowEnd) {
			delete(rl.entries, key)
		}
	}
}

func (rl *WindowLimiter) Close() {
	rl.once.Do(func() {
		close(rl.stopCh)
	})
}
