// File: server/options.go
// Package server defines functional options for the Acceptor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/gologme/log"
	"github.com/momentics/copybench/internal/concurrency"
	"github.com/momentics/copybench/internal/harness"
)

// Option customizes acceptor initialization.
type Option func(*Acceptor)

// WithLogger routes acceptor and worker logs to l.
func WithLogger(l *log.Logger) Option {
	return func(a *Acceptor) {
		a.log = l
	}
}

// WithStopToken shares a run-control token, e.g. with a signal handler.
func WithStopToken(t *concurrency.StopToken) Option {
	return func(a *Acceptor) {
		a.stop = t
	}
}

// WithStateObserver reports every worker lifecycle transition.
func WithStateObserver(fn func(id int, s harness.State)) Option {
	return func(a *Acceptor) {
		a.onState = fn
	}
}
