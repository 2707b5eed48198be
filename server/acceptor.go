// File: server/acceptor.go
// Package server implements the sending side of a benchmark run.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The acceptor listens once, accepts the configured number of
// connections and hands each to a sender worker on its own OS thread.
// Bind and listen failures are fatal to the run; per-connection errors
// stay inside their worker.

package server

import (
	"errors"
	"sync"

	"github.com/gologme/log"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/internal/harness"
	"github.com/momentics/copybench/internal/logging"
	"github.com/momentics/copybench/internal/transport"
)

// Acceptor is the server side of a run.
type Acceptor struct {
	cfg     *harness.Config
	log     *log.Logger
	stop    *concurrency.StopToken
	onState func(id int, s harness.State)

	mu       sync.Mutex
	listener *transport.Listener
}

// NewAcceptor validates cfg and applies opts.
func NewAcceptor(cfg *harness.Config, opts ...Option) (*Acceptor, error) {
	if cfg == nil {
		cfg = harness.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Acceptor{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	a.log = logging.OrDiscard(a.log)
	if a.stop == nil {
		a.stop = concurrency.NewStopToken()
	}
	return a, nil
}

// Listen binds the listening socket. Run calls it when needed; calling it
// first lets the caller learn an ephemeral port.
func (a *Acceptor) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return nil
	}
	l, err := transport.Listen(a.cfg.Addr, a.cfg.Port, harness.ServerBacklog)
	if err != nil {
		return err
	}
	a.listener = l
	a.log.Infof("[server] %s listening on port %d (field size %d, %d connections)",
		a.cfg.Strategy, l.Port(), a.cfg.FieldSize, a.cfg.Conns)
	return nil
}

// Port returns the bound port, or 0 before Listen.
func (a *Acceptor) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return 0
	}
	return a.listener.Port()
}

// Run accepts connections until the configured count is reached or the
// acceptor is shut down, then waits for every worker.
func (a *Acceptor) Run() (harness.Report, error) {
	if err := a.Listen(); err != nil {
		return harness.Report{Role: api.Sender}, err
	}
	a.mu.Lock()
	l := a.listener
	a.mu.Unlock()
	defer a.release()

	runner := harness.NewRunner(a.cfg, api.Sender, a.log, a.stop)
	runner.OnState = a.onState

	var acceptErr error
	for id := 0; id < a.cfg.Conns; id++ {
		if a.stop.ShouldStop() {
			a.log.Infof("[server] stopped accepting after %d connections", id)
			break
		}
		sock, err := l.Accept()
		if err != nil {
			if errors.Is(err, api.ErrSocketClosed) {
				a.log.Infof("[server] stopped accepting after %d connections", id)
			} else {
				a.log.Errorf("[server] accept: %v", err)
				acceptErr = err
				a.stop.RequestStop()
			}
			break
		}
		a.log.Infof("[server] connection %d from %s", id, sock.RemoteAddr())
		runner.Spawn(id, func() (api.Socket, error) { return sock, nil })
	}

	rep, err := runner.Wait()
	a.log.Infof("[server] %d workers finished, %d messages sent", len(rep.Threads), rep.Aggregate.TotalMessages)
	if acceptErr != nil {
		return rep, acceptErr
	}
	return rep, err
}

// release closes the listener and forgets it, so a late Shutdown cannot
// reach a descriptor number the kernel has reused.
func (a *Acceptor) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return
	}
	if err := a.listener.Close(); err != nil {
		a.log.Debugf("[server] listener close: %v", err)
	}
	a.listener = nil
}

// Shutdown stops accepting and asks workers to finish their current
// message. Safe to call more than once and from any goroutine.
func (a *Acceptor) Shutdown() {
	a.stop.RequestStop()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		if err := a.listener.Shutdown(); err != nil {
			a.log.Debugf("[server] listener shutdown: %v", err)
		}
	}
}
