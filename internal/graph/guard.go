package graph

import (
	"sync"
	"time"
)

// GuardCondition is the graph-change wakeup signal. Trigger sets it and
// releases every thread currently blocked in Wait; triggers arriving while
// the condition is already set coalesce into one. Consumers call Reset
// after observing a change, Detach releases all current and future waiters
// permanently at shutdown.
type GuardCondition struct {
	mu        sync.Mutex
	triggered bool
	detached  bool
	wake      chan struct{}
}

func NewGuardCondition() *GuardCondition {
	return &GuardCondition{wake: make(chan struct{})}
}

func (g *GuardCondition) Trigger() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.triggered || g.detached {
		return
	}
	g.triggered = true
	close(g.wake)
	g.wake = make(chan struct{})
}

// Triggered reports the condition without consuming it.
func (g *GuardCondition) Triggered() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.triggered
}

// Reset clears the condition so the next Trigger wakes waiters again.
func (g *GuardCondition) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.triggered = false
}

// Detach permanently releases waiters; all pending and future Waits
// return false. Used at participant teardown so no thread blocks past
// shutdown.
func (g *GuardCondition) Detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.detached {
		return
	}
	g.detached = true
	close(g.wake)
	g.wake = make(chan struct{})
}

// Wait blocks until the condition is set, the timeout lapses, or the
// guard is detached. timeout == 0 polls, timeout < 0 waits forever.
// Returns true when the condition was observed set.
func (g *GuardCondition) Wait(timeout time.Duration) bool {
	var timer *time.Timer
	var expired <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		g.mu.Lock()
		if g.detached {
			g.mu.Unlock()
			return false
		}
		if g.triggered {
			g.mu.Unlock()
			return true
		}
		wake := g.wake
		g.mu.Unlock()

		if timeout == 0 {
			return false
		}
		select {
		case <-wake:
		case <-expired:
			return false
		}
	}
}
