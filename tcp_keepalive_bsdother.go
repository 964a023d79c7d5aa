//go:build dragonfly || freebsd || netbsd || openbsd

package lio

import "golang.org/x/sys/unix"

const keepAliveIdleOpt = unix.TCP_KEEPIDLE
