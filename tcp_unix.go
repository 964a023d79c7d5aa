//go:build unix

package lio

import (
	"net"
	"syscall"

	"github.com/brickingsoft/lio/pkg/poller"
	"github.com/brickingsoft/lio/pkg/sys"
	"golang.org/x/sys/unix"
)

type tcpBackend struct{}

func tcpSockaddr(addr *net.TCPAddr) (unix.Sockaddr, int, error) {
	ip := addr.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, unix.AF_INET, nil
	}
	if ip16 := ip.To16(); ip16 != nil {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], ip16)
		return sa, unix.AF_INET6, nil
	}
	return nil, 0, opErr("tcp_addr", ErrAfNoSupport, nil)
}

func tcpAddrOf(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port}
	default:
		return nil
	}
}

// maybeNewSocket creates the socket on first use with the right family.
func (t *TCP) maybeNewSocket(family int) error {
	if t.fd >= 0 {
		return nil
	}
	sock, err := sys.NewSocket(family, syscall.SOCK_STREAM, 0)
	if err != nil {
		return translateSysErr("socket", err)
	}
	t.fd = sock
	return nil
}

func (t *TCP) bindTCP(addr *net.TCPAddr) error {
	sa, family, err := tcpSockaddr(addr)
	if err != nil {
		return err
	}
	if err = t.maybeNewSocket(family); err != nil {
		return err
	}
	_ = unix.SetsockoptInt(t.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if berr := unix.Bind(t.fd, sa); berr != nil {
		return translateSysErr("bind", berr)
	}
	return nil
}

func (t *TCP) listenTCP(backlog int, cb ConnectionCallback) error {
	return t.listenStream(backlog, cb)
}

func (t *TCP) acceptTCP(client *TCP) error {
	return t.acceptStream(&client.stream)
}

func (t *TCP) connPending() bool {
	return t.connReq != nil
}

func (t *TCP) connectTCP(addr *net.TCPAddr, cb ConnectCallback) error {
	sa, family, err := tcpSockaddr(addr)
	if err != nil {
		return err
	}
	if err = t.maybeNewSocket(family); err != nil {
		return err
	}
	cerr := unix.Connect(t.fd, sa)
	switch cerr {
	case nil:
		r := t.startConnect(cb)
		t.flags |= hfReadable | hfWritable
		t.connReq = nil
		t.loop.queuePending(r)
		return nil
	case unix.EINPROGRESS:
		t.startConnect(cb)
		t.ensureWatcher()
		t.loop.watcherStart(t.w, poller.Out)
		return nil
	default:
		return translateSysErr("connect", cerr)
	}
}

// NoDelay toggles Nagle's algorithm.
func (t *TCP) NoDelay(enable bool) error {
	if t.fd < 0 {
		return opErr("tcp_nodelay", ErrBadFd, nil)
	}
	v := 0
	if enable {
		v = 1
	}
	if err := unix.SetsockoptInt(t.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v); err != nil {
		return translateSysErr("setsockopt", err)
	}
	return nil
}

// KeepAlive toggles TCP keepalive with an initial delay in seconds.
func (t *TCP) KeepAlive(enable bool, delay int) error {
	if t.fd < 0 {
		return opErr("tcp_keepalive", ErrBadFd, nil)
	}
	v := 0
	if enable {
		v = 1
	}
	if err := unix.SetsockoptInt(t.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, v); err != nil {
		return translateSysErr("setsockopt", err)
	}
	if enable && delay > 0 {
		if err := setKeepAliveIdle(t.fd, delay); err != nil {
			return translateSysErr("setsockopt", err)
		}
	}
	return nil
}

// SimultaneousAccepts is a completion-backend tuning knob; a no-op here.
func (t *TCP) SimultaneousAccepts(bool) error {
	return nil
}

// Open adopts an existing connected socket. The descriptor must be
// nonblocking; its flags are not mutated.
func (t *TCP) Open(fd int) error {
	if t.fd >= 0 {
		return opErr("tcp_open", ErrBusy, nil)
	}
	t.open(fd)
	return nil
}

func (t *TCP) sockNameTCP() (*net.TCPAddr, error) {
	if t.fd < 0 {
		return nil, opErr("getsockname", ErrBadFd, nil)
	}
	sa, err := unix.Getsockname(t.fd)
	if err != nil {
		return nil, translateSysErr("getsockname", err)
	}
	return tcpAddrOf(sa), nil
}

func (t *TCP) peerNameTCP() (*net.TCPAddr, error) {
	if t.fd < 0 {
		return nil, opErr("getpeername", ErrBadFd, nil)
	}
	sa, err := unix.Getpeername(t.fd)
	if err != nil {
		return nil, translateSysErr("getpeername", err)
	}
	addr := tcpAddrOf(sa)
	if addr == nil {
		return nil, opErr("getpeername", ErrNotConn, nil)
	}
	return addr, nil
}
