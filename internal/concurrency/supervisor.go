// File: internal/concurrency/supervisor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Structured supervision of per-connection workers: every spawned task is
// joined before Wait returns, so shutdown and tests are deterministic.

package concurrency

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Supervisor runs tasks each on a dedicated OS thread and joins them.
type Supervisor struct {
	group errgroup.Group
}

// Go starts task on a new goroutine locked to its own OS thread. The
// thread is released when the task returns.
func (s *Supervisor) Go(task func() error) {
	s.group.Go(func() error {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		return task()
	})
}

// Wait blocks until every task has returned and reports the first error.
func (s *Supervisor) Wait() error {
	return s.group.Wait()
}
