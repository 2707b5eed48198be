// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing.
// Socket is a scripted, in-memory api.Socket with controllable chunking,
// error injection and a fake zero-copy completion channel.

package fake

import (
	"sync"
	"syscall"
	"time"

	"github.com/momentics/copybench/api"
)

// CompletionMode controls when fake zero-copy completions become readable.
type CompletionMode int

const (
	// CompleteOnWait queues completions until WaitCompletion is called,
	// so callers observe a non-empty in-flight window.
	CompleteOnWait CompletionMode = iota
	// CompleteImmediately makes each completion readable as soon as the
	// send returns.
	CompleteImmediately
	// CompleteNever withholds completions.
	CompleteNever
)

// Socket is a fake implementation of api.Socket for testing.
type Socket struct {
	mu sync.Mutex

	recvChunks [][]byte
	recvErrors []error
	recvCalls  int

	sent        []byte
	sendErrors  []error
	maxSend     int
	sendCalls   int
	vectorCalls int
	onSend      func(p []byte)

	zeroCopyErr   error
	zeroCopyOn    bool
	zeroCopySends int
	mode          CompletionMode
	nextSeq       uint32
	deferred      []api.CompletionRecord
	ready         []api.CompletionRecord
	failErrno     syscall.Errno
	copied        bool
	waitCalls     int

	closed bool
}

var _ api.Socket = (*Socket)(nil)

// NewSocket creates a fake socket with no scripted input.
func NewSocket() *Socket {
	return &Socket{}
}

// Deliver appends chunks returned by successive receive calls. Each call
// consumes at most one chunk; when all are consumed the peer appears closed.
func (s *Socket) Deliver(chunks ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		cp := make([]byte, len(c))
		copy(cp, c)
		s.recvChunks = append(s.recvChunks, cp)
	}
}

// SetMaxSend caps the bytes accepted per send call, forcing partial writes.
func (s *Socket) SetMaxSend(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSend = n
}

// InjectSendErrors queues errors returned by the next send calls of any kind.
func (s *Socket) InjectSendErrors(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErrors = append(s.sendErrors, errs...)
}

// InjectRecvErrors queues errors returned by the next receive calls.
func (s *Socket) InjectRecvErrors(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvErrors = append(s.recvErrors, errs...)
}

// OnSend installs a hook run at the start of every send call.
func (s *Socket) OnSend(fn func(p []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSend = fn
}

// SetZeroCopyError makes EnableZeroCopy fail with err.
func (s *Socket) SetZeroCopyError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zeroCopyErr = err
}

// SetCompletionMode selects when completions become readable.
func (s *Socket) SetCompletionMode(m CompletionMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

// FailCompletions marks every future completion with errno.
func (s *Socket) FailCompletions(errno syscall.Errno) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErrno = errno
}

// SetCopied marks every future completion as a kernel copy fallback.
func (s *Socket) SetCopied(copied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copied = copied
}

// Complete makes a completion for [lo, hi] readable immediately.
func (s *Socket) Complete(lo, hi uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = append(s.ready, api.CompletionRecord{Lo: lo, Hi: hi, Errno: s.failErrno, Copied: s.copied})
}

func (s *Socket) popSendError() error {
	if len(s.sendErrors) == 0 {
		return nil
	}
	err := s.sendErrors[0]
	s.sendErrors = s.sendErrors[1:]
	return err
}

func (s *Socket) accept(n int) int {
	if s.maxSend > 0 && n > s.maxSend {
		return s.maxSend
	}
	return n
}

// Send implements api.Socket.
func (s *Socket) Send(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendCalls++
	if s.onSend != nil {
		s.onSend(p)
	}
	if s.closed {
		return 0, api.ErrSocketClosed
	}
	if err := s.popSendError(); err != nil {
		return 0, err
	}
	n := s.accept(len(p))
	s.sent = append(s.sent, p[:n]...)
	return n, nil
}

// SendVectors implements api.Socket.
func (s *Socket) SendVectors(bufs [][]byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectorCalls++
	if s.closed {
		return 0, api.ErrSocketClosed
	}
	if err := s.popSendError(); err != nil {
		return 0, err
	}
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	limit := s.accept(total)
	n := 0
	for _, b := range bufs {
		if n == limit {
			break
		}
		take := len(b)
		if n+take > limit {
			take = limit - n
		}
		s.sent = append(s.sent, b[:take]...)
		n += take
	}
	return n, nil
}

// EnableZeroCopy implements api.Socket.
func (s *Socket) EnableZeroCopy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zeroCopyErr != nil {
		return s.zeroCopyErr
	}
	s.zeroCopyOn = true
	return nil
}

// SendZeroCopy implements api.Socket. Each successful call consumes one
// sequence number.
func (s *Socket) SendZeroCopy(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendCalls++
	if s.onSend != nil {
		s.onSend(p)
	}
	if s.closed {
		return 0, api.ErrSocketClosed
	}
	if err := s.popSendError(); err != nil {
		return 0, err
	}
	n := s.accept(len(p))
	s.sent = append(s.sent, p[:n]...)
	s.zeroCopySends++
	seq := s.nextSeq
	s.nextSeq++
	if !s.zeroCopyOn {
		return n, nil
	}
	rec := api.CompletionRecord{Lo: seq, Hi: seq, Errno: s.failErrno, Copied: s.copied}
	switch s.mode {
	case CompleteImmediately:
		s.ready = append(s.ready, rec)
	case CompleteOnWait:
		s.deferred = append(s.deferred, rec)
	}
	return n, nil
}

// ReadCompletion implements api.Socket.
func (s *Socket) ReadCompletion() (api.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return api.CompletionRecord{}, api.ErrWouldBlock
	}
	rec := s.ready[0]
	s.ready = s.ready[1:]
	return rec, nil
}

// WaitCompletion implements api.Socket. Deferred completions become
// readable; with nothing to deliver it reports a timeout at once.
func (s *Socket) WaitCompletion(time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitCalls++
	s.ready = append(s.ready, s.deferred...)
	s.deferred = s.deferred[:0]
	if len(s.ready) == 0 {
		return api.ErrCompletionTimeout
	}
	return nil
}

// Recv implements api.Socket.
func (s *Socket) Recv(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvCalls++
	if err := s.popRecvError(); err != nil {
		return 0, err
	}
	if len(s.recvChunks) == 0 {
		return 0, api.ErrConnClosed
	}
	n := copy(p, s.recvChunks[0])
	s.consume(n)
	return n, nil
}

// RecvVectors implements api.Socket; one call consumes at most one chunk.
func (s *Socket) RecvVectors(bufs [][]byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvCalls++
	if err := s.popRecvError(); err != nil {
		return 0, err
	}
	if len(s.recvChunks) == 0 {
		return 0, api.ErrConnClosed
	}
	chunk := s.recvChunks[0]
	n := 0
	for _, b := range bufs {
		if n == len(chunk) {
			break
		}
		n += copy(b, chunk[n:])
	}
	s.consume(n)
	return n, nil
}

func (s *Socket) popRecvError() error {
	if len(s.recvErrors) == 0 {
		return nil
	}
	err := s.recvErrors[0]
	s.recvErrors = s.recvErrors[1:]
	return err
}

func (s *Socket) consume(n int) {
	if n >= len(s.recvChunks[0]) {
		s.recvChunks = s.recvChunks[1:]
		return
	}
	s.recvChunks[0] = s.recvChunks[0][n:]
}

// RemoteAddr implements api.Socket.
func (s *Socket) RemoteAddr() string { return "fake" }

// Close implements api.Socket.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Sent returns a copy of every byte accepted by send calls.
func (s *Socket) Sent() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// Counters reports call counts.
type Counters struct {
	SendCalls     int
	VectorCalls   int
	ZeroCopySends int
	RecvCalls     int
	WaitCalls     int
}

// Counters returns a snapshot of call counts.
func (s *Socket) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counters{
		SendCalls:     s.sendCalls,
		VectorCalls:   s.vectorCalls,
		ZeroCopySends: s.zeroCopySends,
		RecvCalls:     s.recvCalls,
		WaitCalls:     s.waitCalls,
	}
}
