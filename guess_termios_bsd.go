//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package lio

import "golang.org/x/sys/unix"

const termiosReq = unix.TIOCGETA
