//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package lio

import (
	"golang.org/x/sys/unix"
)

func setKeepAliveIdle(fd int, secs int) error {
	// TCP_KEEPALIVE on darwin, TCP_KEEPIDLE elsewhere; both express the idle
	// delay before probes start.
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, keepAliveIdleOpt, secs)
}
