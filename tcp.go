package lio

import (
	"net"
)

// TCP is a stream handle over a TCP socket.
type TCP struct {
	stream
	tcpBackend
}

func NewTCP(lp *Loop) (*TCP, error) {
	if lp == nil {
		return nil, opErr("tcp_init", ErrInvalid, nil)
	}
	t := &TCP{}
	t.initBackend()
	t.init(lp, TypeTCP, t)
	return t, nil
}

// Bind binds the socket to addr, creating it lazily with the address family
// of addr.
func (t *TCP) Bind(addr *net.TCPAddr) error {
	if addr == nil {
		return opErr("tcp_bind", ErrInvalid, nil)
	}
	if t.Closing() {
		return opErr("tcp_bind", ErrInvalid, nil)
	}
	if t.flags&hfBound != 0 {
		return opErr("tcp_bind", ErrInvalid, nil)
	}
	if err := t.bindTCP(addr); err != nil {
		return err
	}
	t.flags |= hfBound
	return nil
}

// Listen starts accepting connections; cb fires once per inbound connection,
// which the user claims with Accept.
func (t *TCP) Listen(backlog int, cb ConnectionCallback) error {
	if cb == nil {
		return opErr("tcp_listen", ErrInvalid, nil)
	}
	if t.Closing() {
		return opErr("tcp_listen", ErrInvalid, nil)
	}
	if t.flags&hfBound == 0 {
		return opErr("tcp_listen", ErrInvalid, nil)
	}
	return t.listenTCP(backlog, cb)
}

// Accept adopts the oldest pending connection into client.
func (t *TCP) Accept(client *TCP) error {
	if client == nil || client.loop != t.loop {
		return opErr("tcp_accept", ErrInvalid, nil)
	}
	if client.Closing() {
		return opErr("tcp_accept", ErrInvalid, nil)
	}
	return t.acceptTCP(client)
}

// Connect starts a connection attempt; cb fires with the outcome.
func (t *TCP) Connect(addr *net.TCPAddr, cb ConnectCallback) error {
	if addr == nil || cb == nil {
		return opErr("tcp_connect", ErrInvalid, nil)
	}
	if t.Closing() {
		return opErr("tcp_connect", ErrInvalid, nil)
	}
	if t.connPending() {
		return opErr("tcp_connect", ErrBusy, nil)
	}
	if t.flags&(hfReadable|hfWritable) != 0 {
		return opErr("tcp_connect", ErrIsConn, nil)
	}
	return t.connectTCP(addr, cb)
}

// SockName returns the locally bound address.
func (t *TCP) SockName() (*net.TCPAddr, error) {
	return t.sockNameTCP()
}

// PeerName returns the connected peer's address.
func (t *TCP) PeerName() (*net.TCPAddr, error) {
	return t.peerNameTCP()
}

func (t *TCP) closeHandle() {
	t.closeStream()
}
