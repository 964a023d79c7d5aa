//go:build darwin

package lio

import "golang.org/x/sys/unix"

const keepAliveIdleOpt = unix.TCP_KEEPALIVE
