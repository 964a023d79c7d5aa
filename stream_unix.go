//go:build unix

package lio

import (
	"syscall"

	"github.com/brickingsoft/lio/pkg/poller"
	"github.com/brickingsoft/lio/pkg/sys"
	"github.com/eapache/queue"
	"golang.org/x/sys/unix"
)

func acceptFd(fd int) (int, error) {
	return sys.Accept(fd)
}

type streamBackend struct {
	fd int
	w  *fdWatcher

	writeQ  []*writeReq
	shutReq *shutdownReq
	connReq *connectReq

	accepted   *queue.Queue
	pendingFds *queue.Queue

	// sendFdOf maps a handle lent over an IPC pipe to its descriptor; set
	// only on IPC pipes.
	sendFdOf func(Handle) int
}

type writeReq struct {
	s      *stream
	bufs   [][]byte
	idx    int
	off    int
	size   uint64
	sendFd int
	cb     WriteCallback
	err    error
}

func (r *writeReq) complete() {
	s := r.s
	s.loop.doneReq()
	s.doneInflight()
	s.maybeStop()
	if s.Closing() {
		return
	}
	if r.cb != nil {
		r.cb(s.owner, r.err)
	}
}

type shutdownReq struct {
	s   *stream
	cb  ShutdownCallback
	err error
}

func (r *shutdownReq) complete() {
	s := r.s
	s.loop.doneReq()
	s.doneInflight()
	s.maybeStop()
	if s.Closing() {
		return
	}
	if r.cb != nil {
		r.cb(s.owner, r.err)
	}
}

type connectReq struct {
	s   *stream
	cb  ConnectCallback
	err error
}

func (r *connectReq) complete() {
	s := r.s
	s.loop.doneReq()
	s.doneInflight()
	s.maybeStop()
	if s.Closing() {
		return
	}
	if r.cb != nil {
		r.cb(s.owner, r.err)
	}
}

func (s *stream) initBackend() {
	s.fd = -1
	s.sendFdOf = nil
}

func (s *stream) osFd() int {
	return s.fd
}

// open adopts a connected nonblocking descriptor.
func (s *stream) open(fd int) {
	s.fd = fd
	s.flags |= hfReadable | hfWritable
}

func (s *stream) ensureWatcher() {
	if s.w == nil {
		s.w = s.loop.newWatcher(s.fd, s.onIO)
	}
}

func (s *stream) armRead() {
	s.ensureWatcher()
	s.loop.watcherStart(s.w, poller.In)
}

func (s *stream) disarmRead() {
	if s.w != nil {
		s.loop.watcherStop(s.w, poller.In)
	}
}

func (s *stream) pendingWrites() int {
	return len(s.writeQ)
}

func (s *stream) onIO(events uint32) {
	if s.connReq != nil && events&(poller.Out|poller.Err|poller.Hup) != 0 {
		s.finishConnect()
		return
	}
	if events&(poller.In|poller.Pri|poller.Err|poller.Hup) != 0 {
		if s.flags&hfListening != 0 {
			s.onAcceptable()
		} else {
			s.onReadable()
		}
	}
	if events&(poller.Out|poller.Err|poller.Hup) != 0 {
		s.processWrites()
	}
}

func (s *stream) onReadable() {
	// bounded so one busy stream cannot starve the rest of the loop
	for budget := 32; budget > 0 && s.flags&hfReading != 0 && !s.Closing(); budget-- {
		buf := s.allocBuf()
		var n int
		var err error
		if s.pendingFds != nil {
			n, err = s.readMsg(buf)
		} else {
			n, err = unix.Read(s.fd, buf)
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			s.deliverRead(0, nil, nil)
			return
		}
		if err != nil {
			s.endRead(translateSysErr("read", err))
			return
		}
		if n == 0 {
			s.endRead(opErr("read", EOF, nil))
			return
		}
		s.deliverRead(n, buf[:n], nil)
	}
}

// endRead fires the terminal read callback (EOF or error) and disarms the
// read side until the next ReadStart.
func (s *stream) endRead(err error) {
	cb := s.readCb
	closing := s.Closing()
	s.flags &^= hfReading
	s.disarmRead()
	s.maybeStop()
	if !closing && cb != nil {
		cb(s.owner, 0, nil, err)
	}
}

// readMsg reads stream data plus any SCM_RIGHTS ancillary descriptors on an
// IPC pipe.
func (s *stream) readMsg(buf []byte) (int, error) {
	oob := make([]byte, 256)
	n, oobn, _, _, err := unix.Recvmsg(s.fd, buf, oob, 0)
	if err != nil {
		return 0, err
	}
	if oobn > 0 {
		cmsgs, perr := unix.ParseSocketControlMessage(oob[:oobn])
		if perr == nil {
			for _, cmsg := range cmsgs {
				fds, ferr := unix.ParseUnixRights(&cmsg)
				if ferr != nil {
					continue
				}
				for _, fd := range fds {
					_ = unix.SetNonblock(fd, true)
					unix.CloseOnExec(fd)
					s.pendingFds.Add(fd)
				}
			}
		}
	}
	return n, nil
}

func (s *stream) submitWrite(bufs [][]byte, sendHandle Handle, cb WriteCallback) error {
	r := &writeReq{
		s:      s,
		bufs:   bufs,
		sendFd: -1,
		cb:     cb,
	}
	if sendHandle != nil {
		if s.sendFdOf == nil {
			return opErr("write", ErrNotSupported, nil)
		}
		fd := s.sendFdOf(sendHandle)
		if fd < 0 {
			return opErr("write", ErrInvalid, nil)
		}
		r.sendFd = fd
	}
	for _, buf := range bufs {
		r.size += uint64(len(buf))
	}
	s.writeQueueSize += r.size
	s.loop.addReq()
	s.addInflight()
	s.startHandle()
	s.writeQ = append(s.writeQ, r)
	if len(s.writeQ) == 1 {
		s.processWrites()
	}
	return nil
}

func (s *stream) tryWriteNow(buf []byte) (int, error) {
	n, err := unix.Write(s.fd, buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
		return 0, opErr("try_write", ErrAgain, nil)
	}
	if err != nil {
		return 0, translateSysErr("try_write", err)
	}
	return n, nil
}

func (s *stream) processWrites() {
	for len(s.writeQ) > 0 {
		r := s.writeQ[0]
		n, err := s.writeSome(r)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			s.ensureWatcher()
			s.loop.watcherStart(s.w, poller.Out)
			return
		}
		if err != nil {
			r.err = translateSysErr("write", err)
			s.writeQueueSize -= r.size
			r.size = 0
			s.writeQ = s.writeQ[1:]
			s.loop.queuePending(r)
			continue
		}
		s.writeQueueSize -= uint64(n)
		r.size -= uint64(n)
		s.advance(r, n)
		if r.idx == len(r.bufs) {
			s.writeQ = s.writeQ[1:]
			s.loop.queuePending(r)
		}
	}
	if s.w != nil {
		s.loop.watcherStop(s.w, poller.Out)
	}
	if s.shutReq != nil {
		s.performShutdown()
	}
}

func (s *stream) writeSome(r *writeReq) (int, error) {
	if r.sendFd >= 0 {
		// the ancillary payload rides on the first byte chunk
		rights := unix.UnixRights(r.sendFd)
		buf := r.bufs[r.idx][r.off:]
		n, err := unix.SendmsgN(s.fd, buf, rights, nil, 0)
		if err == nil {
			r.sendFd = -1
		}
		return n, err
	}
	iovs := make([][]byte, 0, len(r.bufs)-r.idx)
	iovs = append(iovs, r.bufs[r.idx][r.off:])
	iovs = append(iovs, r.bufs[r.idx+1:]...)
	return unix.Writev(s.fd, iovs)
}

func (s *stream) advance(r *writeReq, n int) {
	for n > 0 && r.idx < len(r.bufs) {
		rest := len(r.bufs[r.idx]) - r.off
		if n < rest {
			r.off += n
			return
		}
		n -= rest
		r.idx++
		r.off = 0
	}
}

func (s *stream) queueShutdown(cb ShutdownCallback) {
	r := &shutdownReq{s: s, cb: cb}
	s.shutReq = r
	s.loop.addReq()
	s.addInflight()
	s.startHandle()
	if len(s.writeQ) == 0 {
		s.performShutdown()
	}
}

func (s *stream) performShutdown() {
	r := s.shutReq
	if r == nil {
		return
	}
	s.shutReq = nil
	if err := unix.Shutdown(s.fd, unix.SHUT_WR); err != nil {
		r.err = translateSysErr("shutdown", err)
	} else {
		s.flags |= hfShut
		s.flags &^= hfWritable
	}
	s.flags &^= hfShutting
	s.loop.queuePending(r)
}

func (s *stream) listenStream(backlog int, cb ConnectionCallback) error {
	if backlog < 1 {
		backlog = syscall.SOMAXCONN
	}
	if err := unix.Listen(s.fd, backlog); err != nil {
		return translateSysErr("listen", err)
	}
	s.connectionCb = cb
	s.flags |= hfListening
	if s.accepted == nil {
		s.accepted = queue.New()
	}
	s.startHandle()
	s.ensureWatcher()
	s.loop.watcherStart(s.w, poller.In)
	return nil
}

func (s *stream) onAcceptable() {
	for s.flags&hfListening != 0 && !s.Closing() {
		nfd, err := acceptFd(s.fd)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.ECONNABORTED {
			return
		}
		if err != nil {
			if s.connectionCb != nil {
				s.connectionCb(s.owner, translateSysErr("accept", err))
			}
			return
		}
		s.accepted.Add(nfd)
		if s.connectionCb != nil {
			s.connectionCb(s.owner, nil)
		}
	}
}

// acceptStream adopts the oldest accepted connection into client.
func (s *stream) acceptStream(client *stream) error {
	if s.accepted == nil || s.accepted.Length() == 0 {
		return opErr("accept", ErrAgain, nil)
	}
	fd := s.accepted.Remove().(int)
	client.open(fd)
	return nil
}

func (s *stream) startConnect(cb ConnectCallback) *connectReq {
	r := &connectReq{s: s, cb: cb}
	s.connReq = r
	s.loop.addReq()
	s.addInflight()
	s.startHandle()
	return r
}

func (s *stream) finishConnect() {
	r := s.connReq
	if r == nil {
		return
	}
	s.connReq = nil
	soerr, gerr := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if gerr != nil {
		r.err = translateSysErr("connect", gerr)
	} else if soerr != 0 {
		r.err = translateSysErr("connect", syscall.Errno(soerr))
	} else {
		s.flags |= hfReadable | hfWritable
	}
	if s.w != nil {
		s.loop.watcherStop(s.w, poller.Out)
	}
	s.loop.queuePending(r)
}

// closeStream is the shared teardown: cancel everything in flight, release
// queued descriptors and close the fd.
func (s *stream) closeStream() {
	s.flags &^= hfReading | hfListening
	if s.connReq != nil {
		r := s.connReq
		s.connReq = nil
		r.err = opErr("connect", ErrCanceled, nil)
		s.loop.queuePending(r)
	}
	for _, r := range s.writeQ {
		r.err = opErr("write", ErrCanceled, nil)
		s.writeQueueSize -= r.size
		s.loop.queuePending(r)
	}
	s.writeQ = nil
	if s.shutReq != nil {
		r := s.shutReq
		s.shutReq = nil
		r.err = opErr("shutdown", ErrCanceled, nil)
		s.flags &^= hfShutting
		s.loop.queuePending(r)
	}
	if s.accepted != nil {
		for s.accepted.Length() > 0 {
			_ = unix.Close(s.accepted.Remove().(int))
		}
	}
	if s.pendingFds != nil {
		for s.pendingFds.Length() > 0 {
			_ = unix.Close(s.pendingFds.Remove().(int))
		}
	}
	if s.w != nil {
		s.loop.watcherClose(s.w)
		s.w = nil
	}
	if s.fd >= 0 {
		_ = unix.Close(s.fd)
		s.fd = -1
	}
	s.flags &^= hfReadable | hfWritable
	s.stopHandle()
}
