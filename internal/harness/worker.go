// File: internal/harness/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection worker: owns one socket and one strategy instance for its
// whole life and drives messages through them until the deadline, the
// stop token, peer shutdown or a fatal error.

package harness

import (
	"errors"
	"time"

	"github.com/gologme/log"
	"github.com/momentics/copybench/affinity"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/control"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/internal/logging"
	"github.com/momentics/copybench/stats"
	"github.com/momentics/copybench/strategy"
)

// State is a worker lifecycle state.
type State int

const (
	Connecting State = iota
	Connected
	Active
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Active:
		return "active"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// ConnectFunc establishes the worker's connection.
type ConnectFunc func() (api.Socket, error)

// Worker runs one connection. Fields are set by the acceptor or the
// initiator before Run; a Worker is not reused.
type Worker struct {
	ID       int
	Role     api.Role
	Kind     api.StrategyKind
	Options  strategy.Options
	Connect  ConnectFunc
	Duration time.Duration // 0 = until stopped or the peer leaves
	Stop     *concurrency.StopToken
	Counters *control.WorkerCounters
	PinCPU   bool
	Log      *log.Logger
	// OnState observes lifecycle transitions.
	OnState func(id int, s State)

	state State
}

// State returns the last state entered.
func (w *Worker) State() State { return w.state }

func (w *Worker) enter(s State) {
	w.state = s
	if w.OnState != nil {
		w.OnState(w.ID, s)
	}
}

// orderly reports errors that end Active without failing the worker.
func orderly(err error) bool {
	return errors.Is(err, api.ErrConnClosed) || errors.Is(err, api.ErrPeerReset)
}

// Run executes the lifecycle and returns the worker's statistics. Setup
// failures are reported through ThreadStats.Err with zero counters.
func (w *Worker) Run() (st stats.ThreadStats) {
	st.ID = w.ID
	lg := logging.OrDiscard(w.Log)
	defer w.enter(Closed)

	w.enter(Connecting)
	if w.PinCPU {
		if cpu, err := affinity.PinWorker(w.ID); err != nil {
			lg.Warnf("[worker %d] pinning to CPU %d failed: %v", w.ID, cpu, err)
		} else {
			lg.Debugf("[worker %d] pinned to CPU %d", w.ID, cpu)
		}
	}
	sock, err := w.Connect()
	if err != nil {
		lg.Errorf("[worker %d] connect: %v", w.ID, err)
		st.Err = err
		return st
	}
	defer sock.Close()
	w.enter(Connected)

	opts := w.Options
	opts.Logger = lg
	strat, err := strategy.New(w.Kind, w.Role, opts)
	if err != nil {
		lg.Errorf("[worker %d] %s setup: %v", w.ID, w.Kind, err)
		st.Err = err
		return st
	}
	defer func() {
		// Socket first, so nothing can send from the buffer once it is
		// unmapped.
		sock.Close()
		if err := strat.Close(); err != nil {
			lg.Warnf("[worker %d] releasing buffers: %v", w.ID, err)
		}
	}()
	if p, ok := strat.(api.Preparer); ok {
		if err := p.Prepare(sock); err != nil {
			lg.Errorf("[worker %d] %s setup on %s: %v", w.ID, w.Kind, sock.RemoteAddr(), err)
			st.Err = err
			return st
		}
	}
	lg.Debugf("[worker %d] connected to %s", w.ID, sock.RemoteAddr())

	transfer := strat.SendMessage
	verb := "sent"
	if w.Role == api.Receiver {
		transfer = strat.ReceiveMessage
		verb = "received"
	}

	w.enter(Active)
	start := time.Now()
	var deadline time.Time
	if w.Duration > 0 {
		deadline = start.Add(w.Duration)
	}
	for {
		n, err := transfer(sock)
		st.Bytes += uint64(n)
		if err != nil {
			if orderly(err) {
				lg.Debugf("[worker %d] peer finished: %v", w.ID, err)
			} else {
				lg.Errorf("[worker %d] %s: %v", w.ID, w.Kind, err)
				st.Err = err
			}
			break
		}
		st.Messages++
		w.Counters.Add(n)
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
		if w.Stop != nil && w.Stop.ShouldStop() {
			break
		}
	}
	st.Elapsed = time.Since(start)

	w.enter(Draining)
	if s, ok := strat.(strategy.Summarizer); ok {
		st.Note = s.Summary()
	}
	lg.Infof("[worker %d] %s %d messages (%d bytes) in %.2fs", w.ID, verb, st.Messages, st.Bytes, st.Elapsed.Seconds())
	if st.Note != "" {
		lg.Infof("[worker %d] %s", w.ID, st.Note)
	}
	return st
}
