//go:build !linux
// +build !linux

// File: pool/alloc_other.go
//
// Portable allocator: over-allocates on the Go heap and slices at the
// first page boundary. Pinning is not available.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"os"
	"unsafe"

	"github.com/momentics/copybench/api"
)

var pageSize = os.Getpagesize()

type region struct {
	data   []byte
	pinned bool
	pinErr error
}

func allocate(size int, pin bool) (region, error) {
	raw := make([]byte, size+pageSize)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) & uintptr(pageSize-1)); rem != 0 {
		off = pageSize - rem
	}
	r := region{data: raw[off : off+size]}
	if pin {
		r.pinErr = api.ErrNotSupported
	}
	return r, nil
}

func (r region) release() error { return nil }
