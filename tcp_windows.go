//go:build windows

package lio

import (
	"net"
	"sync"
	"unsafe"

	"github.com/eapache/queue"
	"golang.org/x/sys/windows"
)

type tcpBackend struct {
	family        int
	acceptPending *acceptOp
}

var wsaOnce sync.Once

func wsaStartup() {
	wsaOnce.Do(func() {
		var data windows.WSAData
		if err := windows.WSAStartup(uint32(0x202), &data); err != nil {
			fatal("wsa_startup", err)
		}
	})
}

func tcpSockaddr(addr *net.TCPAddr) (windows.Sockaddr, int, error) {
	ip := addr.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	if ip4 := ip.To4(); ip4 != nil {
		sa := &windows.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, windows.AF_INET, nil
	}
	if ip16 := ip.To16(); ip16 != nil {
		sa := &windows.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], ip16)
		return sa, windows.AF_INET6, nil
	}
	return nil, 0, opErr("tcp_addr", ErrAfNoSupport, nil)
}

func tcpAddrOf(sa windows.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *windows.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port}
	case *windows.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), v.Addr[:]...), Port: v.Port}
	default:
		return nil
	}
}

func newOverlappedSocket(family int) (windows.Handle, error) {
	wsaStartup()
	h, err := windows.WSASocket(int32(family), windows.SOCK_STREAM, windows.IPPROTO_TCP,
		nil, 0, windows.WSA_FLAG_OVERLAPPED|windows.WSA_FLAG_NO_HANDLE_INHERIT)
	if err != nil {
		return windows.InvalidHandle, translateSysErr("socket", err)
	}
	return h, nil
}

func (t *TCP) maybeNewSocket(family int) error {
	if t.h != windows.InvalidHandle {
		return nil
	}
	h, err := newOverlappedSocket(family)
	if err != nil {
		return err
	}
	if aerr := t.loop.associate(h); aerr != nil {
		_ = windows.CloseHandle(h)
		return opErr("socket", ErrInvalid, aerr)
	}
	t.h = h
	t.sock = true
	t.family = family
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
	if berr := windows.Bind(t.h, sa); berr != nil {
		return translateSysErr("bind", berr)
	}
	return nil
}

// acceptOp is one outstanding AcceptEx. The address buffer must outlive the
// kernel operation.
type acceptOp struct {
	winOp
	t       *TCP
	conn    windows.Handle
	addrBuf [addrBufLen * 2]byte
	err     error
}

const addrBufLen = unsafe.Sizeof(windows.RawSockaddrInet6{}) + 16

func (op *acceptOp) complete() {
	t := op.t
	if t.acceptPending == op {
		t.acceptPending = nil
	}
	t.loop.doneReq()
	t.doneInflight()
	if t.Closing() || t.flags&hfListening == 0 {
		_ = windows.CloseHandle(op.conn)
		t.maybeStop()
		return
	}
	if op.err != nil {
		_ = windows.CloseHandle(op.conn)
		t.submitAccept()
		if t.connectionCb != nil {
			t.connectionCb(t.owner, translateSysErr("accept", op.err))
		}
		return
	}
	ls := t.h
	_ = windows.Setsockopt(op.conn, windows.SOL_SOCKET, windows.SO_UPDATE_ACCEPT_CONTEXT,
		(*byte)(unsafe.Pointer(&ls)), int32(unsafe.Sizeof(ls)))
	if aerr := t.loop.associate(op.conn); aerr != nil {
		_ = windows.CloseHandle(op.conn)
		t.submitAccept()
		return
	}
	t.accepted.Add(op.conn)
	t.submitAccept()
	if t.connectionCb != nil {
		t.connectionCb(t.owner, nil)
	}
}

func (t *TCP) listenTCP(backlog int, cb ConnectionCallback) error {
	if backlog < 1 {
		backlog = windows.SOMAXCONN
	}
	if err := windows.Listen(t.h, backlog); err != nil {
		return translateSysErr("listen", err)
	}
	t.connectionCb = cb
	t.flags |= hfListening
	if t.accepted == nil {
		t.accepted = queue.New()
	}
	t.startHandle()
	t.submitAccept()
	return nil
}

func (t *TCP) submitAccept() {
	if t.acceptPending != nil || t.Closing() || t.flags&hfListening == 0 {
		return
	}
	as, err := newOverlappedSocket(t.family)
	if err != nil {
		if t.connectionCb != nil {
			t.connectionCb(t.owner, err)
		}
		return
	}
	op := &acceptOp{t: t, conn: as}
	op.handle = t.h
	op.sock = true
	op.done = func(qty uint32, err error) {
		op.err = err
		t.loop.queuePending(op)
	}
	t.acceptPending = op
	t.loop.addReq()
	t.addInflight()
	var recvd uint32
	aerr := windows.AcceptEx(t.h, as, &op.addrBuf[0], 0,
		uint32(addrBufLen), uint32(addrBufLen), &recvd, &op.ovl)
	if aerr != nil && aerr != windows.ERROR_IO_PENDING {
		op.done(0, aerr)
	}
}

func (t *TCP) acceptTCP(client *TCP) error {
	if err := t.acceptStream(&client.stream); err != nil {
		return err
	}
	client.family = t.family
	return nil
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
	if t.flags&hfBound == 0 {
		// ConnectEx requires a bound socket
		wildcard := &net.TCPAddr{IP: net.IPv4zero}
		if family == windows.AF_INET6 {
			wildcard.IP = net.IPv6zero
		}
		if berr := t.bindTCP(wildcard); berr != nil {
			return berr
		}
		t.flags |= hfBound
	}
	r := t.startConnect(cb)
	r.handle = t.h
	r.sock = true
	r.done = func(qty uint32, err error) {
		if err == nil {
			_ = windows.Setsockopt(t.h, windows.SOL_SOCKET, windows.SO_UPDATE_CONNECT_CONTEXT, nil, 0)
			t.flags |= hfReadable | hfWritable
		} else {
			r.err = translateSysErr("connect", err)
		}
		t.connReq = nil
		t.loop.queuePending(r)
	}
	cerr := windows.ConnectEx(t.h, sa, nil, 0, nil, &r.ovl)
	if cerr != nil && cerr != windows.ERROR_IO_PENDING {
		r.done(0, cerr)
	}
	return nil
}

// NoDelay toggles Nagle's algorithm.
func (t *TCP) NoDelay(enable bool) error {
	if t.h == windows.InvalidHandle {
		return opErr("tcp_nodelay", ErrBadFd, nil)
	}
	v := 0
	if enable {
		v = 1
	}
	if err := windows.SetsockoptInt(t.h, windows.IPPROTO_TCP, windows.TCP_NODELAY, v); err != nil {
		return translateSysErr("setsockopt", err)
	}
	return nil
}

// KeepAlive toggles TCP keepalive. The delay argument is not applied on this
// backend; the system default keepalive timing is used.
func (t *TCP) KeepAlive(enable bool, delay int) error {
	if t.h == windows.InvalidHandle {
		return opErr("tcp_keepalive", ErrBadFd, nil)
	}
	v := 0
	if enable {
		v = 1
	}
	if err := windows.SetsockoptInt(t.h, windows.SOL_SOCKET, windows.SO_KEEPALIVE, v); err != nil {
		return translateSysErr("setsockopt", err)
	}
	return nil
}

// SimultaneousAccepts widens the outstanding AcceptEx pool; the single-slot
// submission used here treats it as a hint.
func (t *TCP) SimultaneousAccepts(bool) error {
	return nil
}

// Open adopts an existing connected overlapped socket.
func (t *TCP) Open(h windows.Handle) error {
	if t.h != windows.InvalidHandle {
		return opErr("tcp_open", ErrBusy, nil)
	}
	if err := t.loop.associate(h); err != nil {
		return opErr("tcp_open", ErrInvalid, err)
	}
	t.open(h, true)
	return nil
}

func (t *TCP) sockNameTCP() (*net.TCPAddr, error) {
	if t.h == windows.InvalidHandle {
		return nil, opErr("getsockname", ErrBadFd, nil)
	}
	sa, err := windows.Getsockname(t.h)
	if err != nil {
		return nil, translateSysErr("getsockname", err)
	}
	return tcpAddrOf(sa), nil
}

func (t *TCP) peerNameTCP() (*net.TCPAddr, error) {
	if t.h == windows.InvalidHandle {
		return nil, opErr("getpeername", ErrBadFd, nil)
	}
	sa, err := windows.Getpeername(t.h)
	if err != nil {
		return nil, translateSysErr("getpeername", err)
	}
	addr := tcpAddrOf(sa)
	if addr == nil {
		return nil, opErr("getpeername", ErrNotConn, nil)
	}
	return addr, nil
}
