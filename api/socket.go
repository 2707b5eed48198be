// File: api/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket abstraction consumed by transfer strategies.

package api

import (
	"syscall"
	"time"
)

// Socket is a connected, blocking stream socket.
// Every method maps onto exactly one kernel call unless stated otherwise,
// so strategies control how many user/kernel crossings a message costs.
type Socket interface {
	// Send issues one transmit call and returns the bytes accepted.
	Send(p []byte) (int, error)
	// Recv issues one receive call. A zero-length read is reported as
	// ErrConnClosed.
	Recv(p []byte) (int, error)

	// SendVectors gathers bufs into one transmit call.
	SendVectors(bufs [][]byte) (int, error)
	// RecvVectors scatters one receive call across bufs in order.
	RecvVectors(bufs [][]byte) (int, error)

	// EnableZeroCopy opts the socket into zero-copy transmission.
	EnableZeroCopy() error
	// SendZeroCopy issues one transmit call tagged for zero-copy. Each
	// successful call consumes one completion sequence number.
	SendZeroCopy(p []byte) (int, error)
	// ReadCompletion performs one non-blocking read of the completion
	// channel. ErrWouldBlock means nothing is pending.
	ReadCompletion() (CompletionRecord, error)
	// WaitCompletion blocks until the completion channel is readable or
	// the timeout elapses (ErrCompletionTimeout).
	WaitCompletion(timeout time.Duration) error

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
	Close() error
}

// CompletionRecord identifies a contiguous range [Lo, Hi] of completed
// zero-copy sends, numbered in send order per socket.
type CompletionRecord struct {
	Lo, Hi uint32
	// Errno is non-zero when the operation itself failed.
	Errno syscall.Errno
	// Copied is set when the kernel fell back to copying the payload.
	Copied bool
}

// Count returns the number of sends covered by the record.
func (r CompletionRecord) Count() uint32 {
	return r.Hi - r.Lo + 1
}

// Failed reports whether the record carries an error status.
func (r CompletionRecord) Failed() bool {
	return r.Errno != 0
}
