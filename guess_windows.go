//go:build windows

package lio

import (
	"golang.org/x/sys/windows"
)

// GuessHandleType classifies a handle the way a spawned child would see it.
func GuessHandleType(fd int) HandleType {
	if fd < 0 {
		return TypeUnknown
	}
	h := windows.Handle(fd)
	kind, err := windows.GetFileType(h)
	if err != nil {
		return TypeUnknown
	}
	switch kind {
	case windows.FILE_TYPE_CHAR:
		var mode uint32
		if windows.GetConsoleMode(h, &mode) == nil {
			return TypeTTY
		}
		return TypeFile
	case windows.FILE_TYPE_PIPE:
		// both anonymous pipes and sockets report FILE_TYPE_PIPE; a socket
		// answers getsockopt
		if sotype, serr := windows.GetsockoptInt(h, windows.SOL_SOCKET, windows.SO_TYPE); serr == nil {
			if sotype == windows.SOCK_DGRAM {
				return TypeUDP
			}
			return TypeTCP
		}
		return TypeNamedPipe
	case windows.FILE_TYPE_DISK:
		return TypeFile
	default:
		return TypeUnknown
	}
}
