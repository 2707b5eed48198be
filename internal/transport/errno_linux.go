//go:build linux
// +build linux

// File: internal/transport/errno_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Errno translation and address helpers for the fd-level sockets.

package transport

import (
	"fmt"
	"net"
	"strconv"

	"github.com/momentics/copybench/api"
	"golang.org/x/sys/unix"
)

// mapErrno converts kernel errors into the api taxonomy. Hot-path
// conditions return bare sentinels to avoid allocating.
func mapErrno(err error) error {
	switch err {
	case nil:
		return nil
	case unix.EINTR:
		return api.ErrInterrupted
	case unix.EAGAIN:
		return api.ErrWouldBlock
	case unix.ENOBUFS:
		return api.ErrNoBuffers
	case unix.EBADF:
		return api.ErrSocketClosed
	case unix.EPIPE, unix.ECONNRESET:
		return fmt.Errorf("%w: %w", api.ErrPeerReset, err)
	}
	return err
}

// resolve turns addr:port into a sockaddr. Empty addr binds all IPv4
// interfaces; hostnames resolve with IPv4 preferred.
func resolve(addr string, port int) (unix.Sockaddr, int, error) {
	if port < 0 || port > 65535 {
		return nil, 0, fmt.Errorf("port %d: %w", port, api.ErrInvalidArgument)
	}
	if addr == "" {
		return &unix.SockaddrInet4{Port: port}, unix.AF_INET, nil
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		ips, err := net.LookupIP(addr)
		if err != nil || len(ips) == 0 {
			return nil, 0, api.NewError(api.ErrCodeInvalidArgument, "cannot resolve address").
				WithContext("addr", addr).Wrap(err)
		}
		ip = ips[0]
		for _, cand := range ips {
			if cand.To4() != nil {
				ip = cand
				break
			}
		}
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa, unix.AF_INET6, nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrUnix:
		return a.Name
	}
	return "unknown"
}
