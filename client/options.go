// File: client/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"time"

	"github.com/gologme/log"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/internal/harness"
)

// DialFunc opens one connection to the server.
type DialFunc func(addr string, port int) (api.Socket, error)

// Option customizes initiator initialization.
type Option func(*Initiator)

// WithLogger routes initiator and worker logs to l.
func WithLogger(l *log.Logger) Option {
	return func(c *Initiator) {
		c.log = l
	}
}

// WithStopToken shares a run-control token.
func WithStopToken(t *concurrency.StopToken) Option {
	return func(c *Initiator) {
		c.stop = t
	}
}

// WithDialer replaces the socket dialer.
func WithDialer(d DialFunc) Option {
	return func(c *Initiator) {
		c.dial = d
	}
}

// WithStagger overrides the delay between worker spawns.
func WithStagger(d time.Duration) Option {
	return func(c *Initiator) {
		c.stagger = d
	}
}

// WithStateObserver reports every worker lifecycle transition.
func WithStateObserver(fn func(id int, s harness.State)) Option {
	return func(c *Initiator) {
		c.onState = fn
	}
}
