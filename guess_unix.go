//go:build unix

package lio

import (
	"golang.org/x/sys/unix"
)

// GuessHandleType classifies a descriptor the way a spawned child would see
// it. A UNIX-domain socket with an empty bound path still reports a named
// pipe.
func GuessHandleType(fd int) HandleType {
	if fd < 0 {
		return TypeUnknown
	}
	if _, err := unix.IoctlGetTermios(fd, termiosReq); err == nil {
		return TypeTTY
	}
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return TypeUnknown
	}
	switch stat.Mode & unix.S_IFMT {
	case unix.S_IFIFO:
		return TypeNamedPipe
	case unix.S_IFCHR:
		return TypeTTY
	case unix.S_IFREG, unix.S_IFDIR:
		return TypeFile
	case unix.S_IFSOCK:
		sa, err := unix.Getsockname(fd)
		if err != nil {
			return TypeUnknown
		}
		switch sa.(type) {
		case *unix.SockaddrUnix:
			return TypeNamedPipe
		case *unix.SockaddrInet4, *unix.SockaddrInet6:
			sotype, serr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TYPE)
			if serr != nil {
				return TypeUnknown
			}
			if sotype == unix.SOCK_DGRAM {
				return TypeUDP
			}
			return TypeTCP
		default:
			// some platforms return an empty address struct for unnamed
			// UNIX-domain sockets
			return TypeNamedPipe
		}
	}
	return TypeUnknown
}
