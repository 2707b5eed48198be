// File: pool/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Page-aligned buffer with an explicit kernel-ownership state machine.
//
// A Buffer moves through Free -> Populated -> InFlightKernel and back to
// Populated when a synchronous call returns, or through AwaitingCompletion
// when the kernel keeps referencing the memory after the call (zero-copy).
// Loan and Pending are the only ways into and out of the kernel-owned
// states, so a buffer cannot be repopulated or freed while a guard is live.

package pool

import (
	"fmt"

	"github.com/momentics/copybench/api"
)

// State is the ownership state of a Buffer.
type State uint8

const (
	Free State = iota
	Populated
	InFlightKernel
	AwaitingCompletion
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Populated:
		return "populated"
	case InFlightKernel:
		return "in-flight"
	case AwaitingCompletion:
		return "awaiting-completion"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Observer is notified on every state transition. Used by tests.
type Observer func(b *Buffer, from, to State)

// BufferOption customizes buffer allocation.
type BufferOption func(*bufferConfig)

type bufferConfig struct {
	pin      bool
	observer Observer
}

// WithPinning requests that the buffer be locked into RAM.
func WithPinning() BufferOption {
	return func(c *bufferConfig) { c.pin = true }
}

// WithObserver installs a transition observer.
func WithObserver(o Observer) BufferOption {
	return func(c *bufferConfig) { c.observer = o }
}

// Buffer is a contiguous, page-aligned memory region owned by one worker.
// It is not safe for concurrent use.
type Buffer struct {
	mem      region
	data     []byte
	state    State
	observer Observer
	// generation counts completed kernel loans.
	generation uint64
	released   bool
}

// NewBuffer allocates a page-aligned buffer of size bytes.
// A failed pin does not fail allocation; check PinErr.
func NewBuffer(size int, opts ...BufferOption) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("buffer size %d: %w", size, api.ErrInvalidArgument)
	}
	var cfg bufferConfig
	for _, o := range opts {
		o(&cfg)
	}
	mem, err := allocate(size, cfg.pin)
	if err != nil {
		return nil, api.NewError(api.ErrCodeAlloc, "buffer allocation failed").
			WithContext("size", size).Wrap(err)
	}
	return &Buffer{
		mem:      mem,
		data:     mem.data[:size],
		observer: cfg.observer,
	}, nil
}

// Len returns the buffer size in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Alignment returns the alignment guaranteed by the allocator.
func (b *Buffer) Alignment() int { return pageSize }

// Pinned reports whether the memory is locked into RAM.
func (b *Buffer) Pinned() bool { return b.mem.pinned }

// PinErr returns the reason pinning failed, if it was requested and failed.
func (b *Buffer) PinErr() error { return b.mem.pinErr }

// State returns the current ownership state.
func (b *Buffer) State() State { return b.state }

// Generation returns how many kernel loans have been settled.
func (b *Buffer) Generation() uint64 { return b.generation }

// View returns the contents for reading. Callers must not retain it across
// a Lend.
func (b *Buffer) View() []byte { return b.data }

func (b *Buffer) transition(to State) {
	from := b.state
	b.state = to
	if b.observer != nil {
		b.observer(b, from, to)
	}
}

func (b *Buffer) userOwned() bool {
	return !b.released && (b.state == Free || b.state == Populated)
}

// Populate hands the buffer to fill for writing. It fails with
// ErrBufferBusy while the kernel owns the memory.
func (b *Buffer) Populate(fill func(p []byte)) error {
	if !b.userOwned() {
		return fmt.Errorf("populate in state %s: %w", b.state, api.ErrBufferBusy)
	}
	fill(b.data)
	b.transition(Populated)
	return nil
}

// Lend transfers ownership to the kernel for the duration of a call.
func (b *Buffer) Lend() (Loan, error) {
	if !b.userOwned() {
		return Loan{}, fmt.Errorf("lend in state %s: %w", b.state, api.ErrBufferBusy)
	}
	b.transition(InFlightKernel)
	return Loan{b: b}, nil
}

// Free releases the memory. It fails with ErrBufferBusy while a loan or
// pending completion is outstanding; call Pending.Abandon on teardown
// first. Free is idempotent.
func (b *Buffer) Free() error {
	if b.released {
		return nil
	}
	if b.state == InFlightKernel || b.state == AwaitingCompletion {
		return fmt.Errorf("free in state %s: %w", b.state, api.ErrBufferBusy)
	}
	b.released = true
	b.data = nil
	return b.mem.release()
}

// Loan grants the kernel access to a buffer for one or more calls.
// Loans and Pendings are values so the send path does not allocate.
type Loan struct {
	b    *Buffer
	done bool
}

// Bytes returns the loaned memory.
func (l *Loan) Bytes() []byte { return l.b.data }

// Return settles a synchronous loan: the call copied or filled the data
// before returning.
func (l *Loan) Return() {
	if l.b == nil || l.done {
		return
	}
	l.done = true
	l.b.generation++
	l.b.transition(Populated)
}

// Await converts the loan into a pending completion for sequence numbers
// lo..hi. The buffer stays kernel-owned until Complete or Abandon.
func (l *Loan) Await(lo, hi uint32) Pending {
	if l.done {
		panic("pool: Await on settled loan")
	}
	l.done = true
	l.b.transition(AwaitingCompletion)
	return Pending{b: l.b, lo: lo, hi: hi}
}

// Abandon drops a loan whose outcome is unknown after a failed call.
// The buffer is only fit for Free afterwards.
func (l *Loan) Abandon() {
	if l.b == nil || l.done {
		return
	}
	l.done = true
	l.b.transition(Free)
}

// Pending guards a buffer the kernel may still be reading.
type Pending struct {
	b      *Buffer
	lo, hi uint32
	done   bool
}

// Active reports whether the guard still holds the buffer.
func (p *Pending) Active() bool { return p.b != nil && !p.done }

// Range returns the completion sequence numbers being awaited.
func (p *Pending) Range() (lo, hi uint32) { return p.lo, p.hi }

// Complete returns the buffer to the user once the completion is observed.
func (p *Pending) Complete() {
	if p.b == nil || p.done {
		return
	}
	p.done = true
	p.b.generation++
	p.b.transition(Populated)
}

// Abandon releases the guard without a completion. Only valid on
// connection teardown, after which the memory is never reused.
func (p *Pending) Abandon() {
	if p.b == nil || p.done {
		return
	}
	p.done = true
	p.b.transition(Free)
}
