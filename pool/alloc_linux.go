//go:build linux
// +build linux

// File: pool/alloc_linux.go
//
// Linux allocator: anonymous private mappings are page-aligned by
// construction and can be locked with mlock(2) for zero-copy sends.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"golang.org/x/sys/unix"
)

var pageSize = unix.Getpagesize()

type region struct {
	data   []byte
	pinned bool
	pinErr error
}

// allocate maps size bytes rounded up to whole pages.
func allocate(size int, pin bool) (region, error) {
	length := ((size + pageSize - 1) / pageSize) * pageSize
	data, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return region{}, err
	}
	r := region{data: data}
	if pin {
		if err := unix.Mlock(data); err != nil {
			r.pinErr = err
		} else {
			r.pinned = true
		}
	}
	return r, nil
}

func (r region) release() error {
	if r.pinned {
		_ = unix.Munlock(r.data)
	}
	return unix.Munmap(r.data)
}
