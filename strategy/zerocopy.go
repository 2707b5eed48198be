// File: strategy/zerocopy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Zero-copy strategy: the sender transmits from one pinned buffer with
// MSG_ZEROCOPY. The kernel keeps referencing the pages after send returns,
// so the buffer stays AwaitingCompletion until the tracker has seen every
// sequence number issued for it. Only then may the next message populate
// or send from the buffer.

package strategy

import (
	"fmt"
	"time"

	"github.com/gologme/log"
	"github.com/momentics/copybench/api"
	"github.com/momentics/copybench/pool"
)

// ZeroCopy owns one page-aligned buffer of eight fields. On the sender the
// buffer is locked in RAM; on the receiver it is a plain buffer filled by
// looping receives until a whole message has arrived.
type ZeroCopy struct {
	role      api.Role
	fieldSize int
	buf       *pool.Buffer
	tracker   *Tracker
	pending   pool.Pending

	allowImplicit bool
	implicit      bool
	timeout       time.Duration
	repopulate    bool
	log           *log.Logger
}

func newZeroCopy(role api.Role, opts Options) (*ZeroCopy, error) {
	size := opts.FieldSize * api.FieldsPerMessage
	bopts := opts.bufferOptions()
	if role == api.Sender {
		bopts = append(bopts, pool.WithPinning())
	}
	buf, err := pool.NewBuffer(size, bopts...)
	if err != nil {
		return nil, err
	}
	z := &ZeroCopy{
		role:          role,
		fieldSize:     opts.FieldSize,
		buf:           buf,
		allowImplicit: opts.AllowImplicitCompletions,
		timeout:       opts.CompletionTimeout,
		repopulate:    opts.Repopulate,
		log:           opts.Logger,
	}
	if role == api.Receiver {
		return z, nil
	}
	if err := buf.PinErr(); err != nil {
		z.log.Warnf("[zerocopy] mlock of %d bytes failed, sending from unpinned memory: %v", size, err)
	}
	if err := z.fill(); err != nil {
		buf.Free()
		return nil, err
	}
	z.tracker = NewTracker()
	return z, nil
}

func (z *ZeroCopy) fill() error {
	fs := z.fieldSize
	return z.buf.Populate(func(p []byte) { pool.FillMessage(p, fs) })
}

func (z *ZeroCopy) Kind() api.StrategyKind { return api.ZeroCopy }

func (z *ZeroCopy) MessageSize() int { return z.fieldSize * api.FieldsPerMessage }

// Implicit reports whether the sender fell back to plain sends.
func (z *ZeroCopy) Implicit() bool { return z.implicit }

// Tracker exposes the completion tracker of a sender.
func (z *ZeroCopy) Tracker() *Tracker { return z.tracker }

// Prepare opts the socket into zero-copy. A refusal is reported as
// api.ErrZeroCopyUnsupported unless implicit completions are allowed.
func (z *ZeroCopy) Prepare(sock api.Socket) error {
	if z.role != api.Sender {
		return nil
	}
	err := sock.EnableZeroCopy()
	if err == nil {
		return nil
	}
	if !z.allowImplicit {
		return err
	}
	z.implicit = true
	z.log.Warnf("[zerocopy] %s: %v; falling back to copying sends, results will not reflect zero-copy", sock.RemoteAddr(), err)
	return nil
}

// SendMessage transmits the buffer with zero-copy sends and blocks until
// every issued send has completed.
func (z *ZeroCopy) SendMessage(sock api.Socket) (int, error) {
	if z.role != api.Sender {
		return 0, wrongRole(api.ZeroCopy, z.role)
	}
	if z.pending.Active() {
		if err := z.settle(sock); err != nil {
			return 0, err
		}
	}
	if z.repopulate {
		if err := z.fill(); err != nil {
			return 0, err
		}
	}
	loan, err := z.buf.Lend()
	if err != nil {
		return 0, err
	}
	if z.implicit {
		n, err := sendFull(sock, loan.Bytes())
		loan.Return()
		return n, err
	}

	p := loan.Bytes()
	first := z.tracker.Next()
	var calls uint32
	sent := 0
	for sent < len(p) {
		n, err := sock.SendZeroCopy(p[sent:])
		if err == nil {
			z.tracker.Issued()
			calls++
			sent += n
			continue
		}
		switch {
		case err == api.ErrInterrupted:
			continue
		case err == api.ErrNoBuffers && z.tracker.Outstanding() > 0:
			// Notification memory is exhausted; free it by draining.
			if werr := z.tracker.AwaitAll(sock, z.timeout); werr != nil {
				z.hold(&loan, first, calls)
				return sent, werr
			}
			continue
		}
		z.hold(&loan, first, calls)
		return sent, err
	}
	z.pending = loan.Await(first, first+calls-1)
	if err := z.settle(sock); err != nil {
		return sent, err
	}
	return sent, nil
}

// hold parks a loan after a failed send: issued sends still pin the
// buffer, an unused loan goes straight back.
func (z *ZeroCopy) hold(loan *pool.Loan, first, calls uint32) {
	if calls == 0 {
		loan.Return()
		return
	}
	z.pending = loan.Await(first, first+calls-1)
}

// settle waits for the outstanding completions and releases the buffer.
func (z *ZeroCopy) settle(sock api.Socket) error {
	if err := z.tracker.AwaitAll(sock, z.timeout); err != nil {
		return err
	}
	z.pending.Complete()
	return nil
}

// ReceiveMessage reads exactly one message.
func (z *ZeroCopy) ReceiveMessage(sock api.Socket) (int, error) {
	if z.role != api.Receiver {
		return 0, wrongRole(api.ZeroCopy, z.role)
	}
	loan, err := z.buf.Lend()
	if err != nil {
		return 0, err
	}
	defer loan.Return()
	return recvFull(sock, loan.Bytes())
}

// Summary reports completion counters for the connection log.
func (z *ZeroCopy) Summary() string {
	if z.role != api.Sender {
		return ""
	}
	if z.implicit {
		return "zero-copy disabled, implicit completions"
	}
	st := z.tracker.Stats()
	return fmt.Sprintf("zero-copy sends=%d completed=%d copied=%d notifications=%d pinned=%t",
		st.Issued, st.Completed, st.Copied, st.Notifications, z.buf.Pinned())
}

// Close abandons any pending completion and frees the buffer. Callers
// close the socket first; the kernel holds its own page references, so
// unmapping with completions outstanding is still memory-safe.
func (z *ZeroCopy) Close() error {
	z.pending.Abandon()
	return z.buf.Free()
}
