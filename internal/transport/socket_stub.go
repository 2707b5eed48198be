//go:build !linux
// +build !linux

// File: internal/transport/socket_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub fallback on platforms without the Linux socket primitives the
// strategies rely on. Every constructor returns ErrNotSupported.

package transport

import (
	"fmt"
	"runtime"
	"time"

	"github.com/momentics/copybench/api"
)

var errPlatform = fmt.Errorf("fd sockets on %s: %w", runtime.GOOS, api.ErrNotSupported)

// Socket is unavailable on this platform.
type Socket struct{}

var _ api.Socket = (*Socket)(nil)

func (s *Socket) Fd() int                                   { return -1 }
func (s *Socket) RemoteAddr() string                        { return "" }
func (s *Socket) Send([]byte) (int, error)                  { return 0, errPlatform }
func (s *Socket) Recv([]byte) (int, error)                  { return 0, errPlatform }
func (s *Socket) SendVectors([][]byte) (int, error)         { return 0, errPlatform }
func (s *Socket) RecvVectors([][]byte) (int, error)         { return 0, errPlatform }
func (s *Socket) EnableZeroCopy() error                     { return api.ErrZeroCopyUnsupported }
func (s *Socket) SendZeroCopy([]byte) (int, error)          { return 0, errPlatform }
func (s *Socket) ReadCompletion() (api.CompletionRecord, error) {
	return api.CompletionRecord{}, errPlatform
}
func (s *Socket) WaitCompletion(time.Duration) error { return errPlatform }
func (s *Socket) Close() error                       { return nil }

// Listener is unavailable on this platform.
type Listener struct{}

func Listen(string, int, int) (*Listener, error) { return nil, errPlatform }
func (l *Listener) Port() int                    { return 0 }
func (l *Listener) Accept() (*Socket, error)     { return nil, errPlatform }
func (l *Listener) Shutdown() error              { return api.ErrSocketClosed }
func (l *Listener) Close() error                 { return nil }

func Dial(string, int) (*Socket, error) { return nil, errPlatform }

func NewSocketPair() (*Socket, *Socket, error) { return nil, nil, errPlatform }

func detectPlatform(f *Features) {
	f.Kernel = "unknown"
	f.ZeroCopyErr = errPlatform
}
