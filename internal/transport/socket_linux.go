//go:build linux
// +build linux

// File: internal/transport/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking fd-level TCP sockets. Every api.Socket method maps onto one
// send/recv/sendmsg/recvmsg system call issued through x/sys/unix, so the
// copy count of each strategy is exactly what it asks for. Descriptors are
// deliberately kept out of the Go netpoller: each worker owns a thread and
// blocks in the kernel, as the benchmark intends.

package transport

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/momentics/copybench/api"
	"golang.org/x/sys/unix"
)

// oobSize fits one cmsghdr carrying a sock_extended_err plus its offender.
const oobSize = 128

var sizeofExtendedErr = int(unsafe.Sizeof(unix.SockExtendedErr{}))

// Socket is a connected blocking stream socket.
type Socket struct {
	fd     int
	remote string
	closed atomic.Bool

	// Prepared headers reused by every vectored call on this socket.
	sendHdr vectorHeader
	recvHdr vectorHeader

	errHdr unix.Msghdr
	oob    [oobSize]byte
	pfd    [1]unix.PollFd
}

var _ api.Socket = (*Socket)(nil)

func newSocket(fd int, remote string) *Socket {
	s := &Socket{fd: fd, remote: remote}
	s.errHdr.Control = &s.oob[0]
	s.pfd[0].Fd = int32(fd)
	return s
}

// vectorHeader holds an iovec array and msghdr built once per socket and
// refreshed in place, so vectored calls do not allocate.
type vectorHeader struct {
	iov []unix.Iovec
	msg unix.Msghdr
}

func (h *vectorHeader) load(bufs [][]byte) *unix.Msghdr {
	if cap(h.iov) < len(bufs) {
		h.iov = make([]unix.Iovec, len(bufs))
	}
	h.iov = h.iov[:len(bufs)]
	for i, b := range bufs {
		if len(b) == 0 {
			h.iov[i].Base = nil
			h.iov[i].SetLen(0)
			continue
		}
		h.iov[i].Base = &b[0]
		h.iov[i].SetLen(len(b))
	}
	if len(h.iov) > 0 {
		h.msg.Iov = &h.iov[0]
	} else {
		h.msg.Iov = nil
	}
	h.msg.SetIovlen(len(h.iov))
	return &h.msg
}

// Fd exposes the descriptor for diagnostics.
func (s *Socket) Fd() int { return s.fd }

// RemoteAddr implements api.Socket.
func (s *Socket) RemoteAddr() string { return s.remote }

// Send implements api.Socket with send(2).
func (s *Socket) Send(p []byte) (int, error) {
	return s.sendFlags(p, unix.MSG_NOSIGNAL)
}

// SendZeroCopy implements api.Socket with send(2, MSG_ZEROCOPY).
func (s *Socket) SendZeroCopy(p []byte) (int, error) {
	return s.sendFlags(p, unix.MSG_NOSIGNAL|unix.MSG_ZEROCOPY)
}

func (s *Socket) sendFlags(p []byte, flags int) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	r, _, e := unix.Syscall6(unix.SYS_SENDTO, uintptr(s.fd),
		uintptr(unsafe.Pointer(&p[0])), uintptr(len(p)), uintptr(flags), 0, 0)
	if e != 0 {
		return 0, mapErrno(e)
	}
	return int(r), nil
}

// Recv implements api.Socket with recv(2).
func (s *Socket) Recv(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	r, _, e := unix.Syscall6(unix.SYS_RECVFROM, uintptr(s.fd),
		uintptr(unsafe.Pointer(&p[0])), uintptr(len(p)), 0, 0, 0)
	if e != 0 {
		return 0, mapErrno(e)
	}
	if r == 0 {
		return 0, api.ErrConnClosed
	}
	return int(r), nil
}

// SendVectors implements api.Socket with one sendmsg(2).
func (s *Socket) SendVectors(bufs [][]byte) (int, error) {
	msg := s.sendHdr.load(bufs)
	r, _, e := unix.Syscall(unix.SYS_SENDMSG, uintptr(s.fd),
		uintptr(unsafe.Pointer(msg)), uintptr(unix.MSG_NOSIGNAL))
	if e != 0 {
		return 0, mapErrno(e)
	}
	return int(r), nil
}

// RecvVectors implements api.Socket with one recvmsg(2).
func (s *Socket) RecvVectors(bufs [][]byte) (int, error) {
	msg := s.recvHdr.load(bufs)
	r, _, e := unix.Syscall(unix.SYS_RECVMSG, uintptr(s.fd),
		uintptr(unsafe.Pointer(msg)), 0)
	if e != 0 {
		return 0, mapErrno(e)
	}
	if r == 0 {
		return 0, api.ErrConnClosed
	}
	return int(r), nil
}

// EnableZeroCopy sets SO_ZEROCOPY. Kernels before 4.14 reject it.
func (s *Socket) EnableZeroCopy() error {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ZEROCOPY, 1); err != nil {
		return fmt.Errorf("%w: setsockopt SO_ZEROCOPY: %w", api.ErrZeroCopyUnsupported, err)
	}
	return nil
}

// ReadCompletion reads one notification from the socket error queue
// without blocking.
func (s *Socket) ReadCompletion() (api.CompletionRecord, error) {
	for {
		s.errHdr.SetControllen(oobSize)
		_, _, e := unix.Syscall(unix.SYS_RECVMSG, uintptr(s.fd),
			uintptr(unsafe.Pointer(&s.errHdr)), uintptr(unix.MSG_ERRQUEUE|unix.MSG_DONTWAIT))
		if e != 0 {
			return api.CompletionRecord{}, mapErrno(e)
		}
		rec, ok, err := parseCompletion(s.oob[:s.errHdr.Controllen])
		if err != nil {
			return api.CompletionRecord{}, err
		}
		if ok {
			return rec, nil
		}
		// Not a zero-copy notification; keep draining.
	}
}

// parseCompletion extracts a zero-copy notification from control data.
func parseCompletion(oob []byte) (api.CompletionRecord, bool, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return api.CompletionRecord{}, false, fmt.Errorf("parse error queue cmsg: %w", err)
	}
	for _, m := range msgs {
		isRecvErr := (m.Header.Level == unix.SOL_IP && m.Header.Type == unix.IP_RECVERR) ||
			(m.Header.Level == unix.SOL_IPV6 && m.Header.Type == unix.IPV6_RECVERR)
		if !isRecvErr || len(m.Data) < sizeofExtendedErr {
			continue
		}
		ee := (*unix.SockExtendedErr)(unsafe.Pointer(&m.Data[0]))
		if ee.Origin != unix.SO_EE_ORIGIN_ZEROCOPY {
			continue
		}
		return api.CompletionRecord{
			Lo:     ee.Info,
			Hi:     ee.Data,
			Errno:  unix.Errno(ee.Errno),
			Copied: ee.Code&unix.SO_EE_CODE_ZEROCOPY_COPIED != 0,
		}, true, nil
	}
	return api.CompletionRecord{}, false, nil
}

// WaitCompletion polls for POLLERR, which the kernel raises while the
// error queue is non-empty.
func (s *Socket) WaitCompletion(timeout time.Duration) error {
	s.pfd[0].Events = 0
	s.pfd[0].Revents = 0
	n, err := unix.Poll(s.pfd[:], pollMillis(timeout))
	if err != nil {
		return mapErrno(err)
	}
	if n == 0 {
		return api.ErrCompletionTimeout
	}
	re := s.pfd[0].Revents
	switch {
	case re&unix.POLLERR != 0:
		return nil
	case re&unix.POLLNVAL != 0:
		return api.ErrSocketClosed
	case re&unix.POLLHUP != 0:
		return api.ErrConnClosed
	}
	return nil
}

// pollMillis rounds timeout up to whole milliseconds so a sub-millisecond
// remainder still blocks, and clamps it to the kernel's int range.
func pollMillis(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}

// Close releases the descriptor. Safe to call more than once.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(s.fd)
}

// Listener is a blocking listening socket.
type Listener struct {
	fd   int
	port int
	// closed makes a woken Accept report ErrSocketClosed.
	closed atomic.Bool

	// mu orders Shutdown against Close so the descriptor number is never
	// used once released; the kernel may have handed it out again.
	mu       sync.Mutex
	released bool
}

// Listen binds addr:port (empty addr means all interfaces) and listens.
// Port 0 selects an ephemeral port, reported by Port.
func Listen(addr string, port, backlog int) (*Listener, error) {
	sa, family, err := resolve(addr, port)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, api.NewError(api.ErrCodeSocket, "socket create failed").Wrap(err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, api.NewError(api.ErrCodeSocket, "setsockopt SO_REUSEADDR failed").Wrap(err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, api.NewError(api.ErrCodeBind, "bind failed").
			WithContext("addr", addr).WithContext("port", port).Wrap(err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, api.NewError(api.ErrCodeListen, "listen failed").
			WithContext("port", port).Wrap(err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, api.NewError(api.ErrCodeListen, "getsockname failed").Wrap(err)
	}
	l := &Listener{fd: fd, port: port}
	switch a := bound.(type) {
	case *unix.SockaddrInet4:
		l.port = a.Port
	case *unix.SockaddrInet6:
		l.port = a.Port
	}
	return l, nil
}

// Port returns the bound port.
func (l *Listener) Port() int { return l.port }

// Accept blocks for the next connection, retrying interrupted calls.
// After Shutdown it returns ErrSocketClosed.
func (l *Listener) Accept() (*Socket, error) {
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_CLOEXEC)
		if err == nil {
			return newSocket(nfd, sockaddrString(sa)), nil
		}
		if err == unix.EINTR || err == unix.ECONNABORTED {
			continue
		}
		if l.closed.Load() {
			return nil, api.ErrSocketClosed
		}
		return nil, api.NewError(api.ErrCodeAccept, "accept failed").Wrap(err)
	}
}

// Shutdown wakes any goroutine blocked in Accept. After Close it returns
// ErrSocketClosed without touching the descriptor.
func (l *Listener) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return api.ErrSocketClosed
	}
	l.closed.Store(true)
	return unix.Shutdown(l.fd, unix.SHUT_RDWR)
}

// Close releases the listening descriptor. Safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true
	l.closed.Store(true)
	return unix.Close(l.fd)
}

// Dial opens a blocking connection to addr:port.
func Dial(addr string, port int) (*Socket, error) {
	sa, family, err := resolve(addr, port)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, api.NewError(api.ErrCodeSocket, "socket create failed").Wrap(err)
	}
	if err := connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, api.NewError(api.ErrCodeConnect, "connect failed").
			WithContext("addr", addr).WithContext("port", port).Wrap(err)
	}
	return newSocket(fd, sockaddrString(sa)), nil
}

// connect handles EINTR: the handshake continues in the kernel, so wait
// for writability and read the outcome from SO_ERROR.
func connect(fd int, sa unix.Sockaddr) error {
	err := unix.Connect(fd, sa)
	if err != unix.EINTR && err != unix.EALREADY && err != unix.EINPROGRESS {
		return err
	}
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		if _, err := unix.Poll(pfd, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		soerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return err
		}
		if soerr != 0 {
			return unix.Errno(soerr)
		}
		return nil
	}
}

// NewSocketPair returns two connected stream sockets. Used by tests.
func NewSocketPair() (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, err
	}
	return newSocket(fds[0], "socketpair"), newSocket(fds[1], "socketpair"), nil
}
