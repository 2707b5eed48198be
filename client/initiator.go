// File: client/initiator.go
// Package client implements the receiving side of a benchmark run.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The initiator starts one receiver worker per connection with a short
// stagger; each worker dials on its own thread and stops on its own
// deadline.

package client

import (
	"errors"
	"time"

	"github.com/gologme/log"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/internal/harness"
	"github.com/momentics/copybench/internal/logging"
	"github.com/momentics/copybench/internal/transport"
)

// Initiator is the client side of a run.
type Initiator struct {
	cfg     *harness.Config
	log     *log.Logger
	stop    *concurrency.StopToken
	dial    DialFunc
	stagger time.Duration
	onState func(id int, s harness.State)
}

func dialTCP(addr string, port int) (api.Socket, error) {
	s, err := transport.Dial(addr, port)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewInitiator validates cfg and applies opts.
func NewInitiator(cfg *harness.Config, opts ...Option) (*Initiator, error) {
	if cfg == nil {
		cfg = harness.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Initiator{
		cfg:     cfg,
		dial:    dialTCP,
		stagger: harness.SpawnStagger,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logging.OrDiscard(c.log)
	if c.stop == nil {
		c.stop = concurrency.NewStopToken()
	}
	return c, nil
}

// Run spawns the workers, waits for them and returns the report. It
// fails only when no worker could connect at all.
func (c *Initiator) Run() (harness.Report, error) {
	c.log.Infof("[client] %s: %d connections to %s:%d, field size %d, %s",
		c.cfg.Strategy, c.cfg.Conns, c.cfg.Addr, c.cfg.Port, c.cfg.FieldSize, c.cfg.Duration)

	runner := harness.NewRunner(c.cfg, api.Receiver, c.log, c.stop)
	runner.OnState = c.onState
	addr, port := c.cfg.Addr, c.cfg.Port
	for id := 0; id < c.cfg.Conns; id++ {
		if id > 0 && c.stagger > 0 {
			time.Sleep(c.stagger)
		}
		if c.stop.ShouldStop() {
			break
		}
		runner.Spawn(id, func() (api.Socket, error) { return c.dial(addr, port) })
	}

	rep, err := runner.Wait()
	if err != nil {
		return rep, err
	}
	if cause := allFailedToConnect(rep); cause != nil {
		return rep, cause
	}
	return rep, nil
}

// allFailedToConnect returns the first connect error when no worker
// got past connection setup.
func allFailedToConnect(rep harness.Report) error {
	var first error
	for _, s := range rep.Threads {
		var apiErr *api.Error
		if s.Err == nil || !errors.As(s.Err, &apiErr) || apiErr.Code != api.ErrCodeConnect {
			return nil
		}
		if first == nil {
			first = s.Err
		}
	}
	return first
}
