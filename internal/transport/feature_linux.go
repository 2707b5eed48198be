//go:build linux
// +build linux

// File: internal/transport/feature_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux capability probes: SO_ZEROCOPY on a scratch socket and mlock on
// a scratch page.

package transport

import (
	"golang.org/x/sys/unix"
)

func detectPlatform(f *Features) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		f.Kernel = unix.ByteSliceToString(uts.Release[:])
	}
	f.ScatterGather = true

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		f.ZeroCopyErr = err
	} else {
		s := newSocket(fd, "probe")
		if err := s.EnableZeroCopy(); err != nil {
			f.ZeroCopyErr = err
		} else {
			f.ZeroCopy = true
		}
		s.Close()
	}

	page, err := unix.Mmap(-1, 0, unix.Getpagesize(),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANONYMOUS|unix.MAP_PRIVATE)
	if err != nil {
		return
	}
	if unix.Mlock(page) == nil {
		f.Pinning = true
		_ = unix.Munlock(page)
	}
	_ = unix.Munmap(page)
}
