// File: strategy/strategy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Strategy construction and the copy loops shared by the variants.

package strategy

import (
	"fmt"
	"time"

	"github.com/gologme/log"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/internal/logging"
	"github.com/momentics/copybench/pool"
)

// DefaultCompletionTimeout bounds the wait for zero-copy completions.
const DefaultCompletionTimeout = 5 * time.Second

// Options configures a strategy instance.
type Options struct {
	// FieldSize is the size of each of the eight fields.
	FieldSize int
	// FillMessages makes the scatter-gather receiver loop until a whole
	// message has arrived instead of counting each call as one message.
	FillMessages bool
	// AllowImplicitCompletions lets the zero-copy sender fall back to plain
	// sends when the socket rejects SO_ZEROCOPY.
	AllowImplicitCompletions bool
	// CompletionTimeout bounds each wait for zero-copy completions.
	CompletionTimeout time.Duration
	// Repopulate rewrites the payload before every send.
	Repopulate bool
	// Observer receives buffer state transitions.
	Observer pool.Observer
	Logger   *log.Logger
}

func (o Options) bufferOptions() []pool.BufferOption {
	if o.Observer == nil {
		return nil
	}
	return []pool.BufferOption{pool.WithObserver(o.Observer)}
}

// New builds a strategy of the given kind for one role.
func New(kind api.StrategyKind, role api.Role, opts Options) (api.Strategy, error) {
	if opts.FieldSize <= 0 {
		return nil, fmt.Errorf("field size %d: %w", opts.FieldSize, api.ErrInvalidArgument)
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = DefaultCompletionTimeout
	}
	opts.Logger = logging.OrDiscard(opts.Logger)
	switch kind {
	case api.TwoCopy:
		return newTwoCopy(role, opts)
	case api.ScatterGather:
		return newScatterGather(role, opts)
	case api.ZeroCopy:
		return newZeroCopy(role, opts)
	}
	return nil, fmt.Errorf("strategy %v: %w", kind, api.ErrInvalidArgument)
}

// Summarizer is implemented by strategies with counters worth reporting
// when a connection closes.
type Summarizer interface {
	Summary() string
}

func wrongRole(kind api.StrategyKind, role api.Role) error {
	return fmt.Errorf("%s strategy built as %s: %w", kind, role, api.ErrInvalidArgument)
}

// sendFull issues send calls until p is fully accepted. Interrupted calls
// are retried immediately.
func sendFull(s api.Socket, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		n, err := s.Send(p[sent:])
		if err != nil {
			if err == api.ErrInterrupted {
				continue
			}
			return sent, err
		}
		sent += n
	}
	return sent, nil
}

// recvFull issues receive calls until p is full. A zero-length read
// returns the partial count with ErrConnClosed.
func recvFull(s api.Socket, p []byte) (int, error) {
	got := 0
	for got < len(p) {
		n, err := s.Recv(p[got:])
		if err != nil {
			if err == api.ErrInterrupted {
				continue
			}
			return got, err
		}
		got += n
	}
	return got, nil
}

// advance returns vec with the first skip bytes removed, built in dst.
func advance(dst, vec [][]byte, skip int) [][]byte {
	dst = dst[:0]
	for _, v := range vec {
		if skip >= len(v) {
			skip -= len(v)
			continue
		}
		dst = append(dst, v[skip:])
		skip = 0
	}
	return dst
}
