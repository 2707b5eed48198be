// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error taxonomy shared by the socket layer, the transfer strategies and
// the connection harness. Socket implementations translate errno values
// into these sentinels so strategies never inspect raw errno.

package api

import (
	"fmt"
	"strings"
)

// Common errors used across copybench.
var (
	// ErrInterrupted is a retriable interruption of a blocking call.
	ErrInterrupted = fmt.Errorf("interrupted system call")
	// ErrWouldBlock reports an empty non-blocking read.
	ErrWouldBlock = fmt.Errorf("operation would block")
	// ErrConnClosed is an orderly shutdown by the peer (zero-length read).
	ErrConnClosed = fmt.Errorf("connection closed by peer")
	// ErrPeerReset is a broken pipe or connection reset.
	ErrPeerReset = fmt.Errorf("connection reset by peer")
	// ErrNoBuffers means the kernel ran out of option memory for
	// zero-copy notifications.
	ErrNoBuffers = fmt.Errorf("no buffer space available")

	ErrZeroCopyUnsupported = fmt.Errorf("zero-copy transmission not supported")
	ErrCompletionFailed    = fmt.Errorf("zero-copy completion reported an error")
	ErrCompletionTimeout   = fmt.Errorf("timed out waiting for zero-copy completion")
	ErrBufferBusy          = fmt.Errorf("buffer is owned by the kernel")

	ErrSocketClosed    = fmt.Errorf("socket is closed")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrNotSupported    = fmt.Errorf("operation not supported")
)

// ErrorCode classifies setup failures.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeSocket
	ErrCodeBind
	ErrCodeListen
	ErrCodeAccept
	ErrCodeConnect
	ErrCodeAlloc
	ErrCodeNotSupported
)

var codeNames = map[ErrorCode]string{
	ErrCodeOK:              "ok",
	ErrCodeInvalidArgument: "invalid-argument",
	ErrCodeSocket:          "socket",
	ErrCodeBind:            "bind",
	ErrCodeListen:          "listen",
	ErrCodeAccept:          "accept",
	ErrCodeConnect:         "connect",
	ErrCodeAlloc:           "alloc",
	ErrCodeNotSupported:    "not-supported",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error represents a structured setup error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code.String())
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	if len(e.Context) > 0 {
		fmt.Fprintf(&sb, " (context: %+v)", e.Context)
	}
	return sb.String()
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(cause error) *Error {
	e.Cause = cause
	return e
}
