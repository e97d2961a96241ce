// SPDX-License-Identifier: GPL-3.0-or-later

package respfut

import (
	"sync"
	"time"
)

// Gate is a one-shot broadcast signal.
//
// A gate starts closed. [*Gate.Release] opens it exactly once; every
// goroutine blocked in [*Gate.Wait] wakes up, and every later waiter
// returns immediately. Further [*Gate.Release] calls are no-ops, so a
// harmless double release by racing completers cannot corrupt the gate.
//
// [*Future] uses a gate as its ready signal, released at the first
// terminal transition. The type is exported because a single-use latch
// is useful on its own.
//
// Construct using [NewGate]. The zero value is not usable.
type Gate struct {
	// ch is closed exactly once to broadcast the release.
	ch chan struct{}

	// once guards the close.
	once sync.Once
}

// NewGate returns a new [*Gate] in the closed (not released) state.
func NewGate() *Gate {
	return &Gate{
		ch:   make(chan struct{}),
		once: sync.Once{},
	}
}

// Release opens the gate, waking all current and future waiters.
//
// Only the first call has any effect.
func (g *Gate) Release() {
	g.once.Do(func() {
		close(g.ch)
	})
}

// Released reports whether the gate has been released.
func (g *Gate) Released() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate is released or the timeout elapses.
//
// The return value is true when the gate was released and false when
// the timeout elapsed first. A non-positive timeout does not block: it
// returns the current state of the gate.
func (g *Gate) Wait(timeout time.Duration) bool {
	select {
	case <-g.ch:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-g.ch:
		return true
	case <-timer.C:
		return false
	}
}

// Done returns a channel that is closed when the gate is released.
//
// Use this method to select on the gate alongside other channels.
func (g *Gate) Done() <-chan struct{} {
	return g.ch
}
