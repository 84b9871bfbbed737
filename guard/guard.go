/*
Package guard provides mutual exclusion for state-mutating entry points that
hand control to external code before they return.

A Guard does not serialize callers. It rejects any attempt to enter while
another guarded call is in progress, whether that attempt comes from a
callback of the running call or from another goroutine.
*/
package guard

import (
	"errors"

	"go.uber.org/atomic"
)

// ErrReentrancyDetected is returned by Acquire when the guard is already held.
var ErrReentrancyDetected = errors.New("reentrancy detected")

// Guard is a single-flag reentrancy lock. Zero value is ready to use.
type Guard struct {
	entered atomic.Bool
}

// Acquire sets the flag and returns the function releasing it. The returned
// function is safe to call more than once, so it is intended to be deferred
// right after the successful Acquire:
//
//	release, err := g.Acquire()
//	if err != nil {
//		return err
//	}
//	defer release()
func (g *Guard) Acquire() (func(), error) {
	if !g.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrancyDetected
	}

	var released atomic.Bool

	return func() {
		if released.CompareAndSwap(false, true) {
			g.entered.Store(false)
		}
	}, nil
}

// Held reports whether some guarded call is in progress.
func (g *Guard) Held() bool {
	return g.entered.Load()
}
