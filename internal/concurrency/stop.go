// File: internal/concurrency/stop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cooperative run-control token shared by every worker of a run.

package concurrency

import (
	"sync"
	"sync/atomic"
)

// StopToken flips once from running to stopped. Workers poll ShouldStop
// between messages; blocking code may select on Done.
type StopToken struct {
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// NewStopToken returns a token in the running state.
func NewStopToken() *StopToken {
	return &StopToken{done: make(chan struct{})}
}

// RequestStop moves the token to stopped. Later calls are no-ops.
func (t *StopToken) RequestStop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.done)
	})
}

// ShouldStop reports whether a stop was requested.
func (t *StopToken) ShouldStop() bool {
	return t.stopped.Load()
}

// Done is closed when a stop is requested.
func (t *StopToken) Done() <-chan struct{} {
	return t.done
}
