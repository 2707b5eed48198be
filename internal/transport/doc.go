// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking fd-level TCP sockets for the copy benchmark. Linux builds
// expose send/recv, sendmsg/recvmsg with reusable iovec headers, and
// MSG_ZEROCOPY with error-queue completions; other platforms compile a
// stub returning api.ErrNotSupported. Sockets are intentionally kept out
// of the Go netpoller.

package transport
