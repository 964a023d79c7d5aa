//go:build linux

package lio

import "golang.org/x/sys/unix"

const termiosReq = unix.TCGETS
