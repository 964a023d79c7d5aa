//go:build windows

package lio

import (
	"syscall"

	"github.com/eapache/queue"
	"golang.org/x/sys/windows"
)

type streamBackend struct {
	h    windows.Handle
	sock bool

	readOp *readOp
	writeQ []*writeReq

	shutReq *shutdownReq
	connReq *connectReq

	accepted *queue.Queue
}

func (s *stream) initBackend() {
	s.h = windows.InvalidHandle
}

// open adopts a connected overlapped handle already associated with the
// loop's completion port.
func (s *stream) open(h windows.Handle, sock bool) {
	s.h = h
	s.sock = sock
	s.flags |= hfReadable | hfWritable
}

func (s *stream) osHandle() windows.Handle {
	return s.h
}

type readOp struct {
	winOp
	s   *stream
	buf []byte
	n   uint32
	err error
}

func (op *readOp) complete() {
	s := op.s
	s.readOp = nil
	s.loop.doneReq()
	s.doneInflight()
	if s.Closing() {
		s.maybeStop()
		return
	}
	if s.flags&hfReading == 0 {
		s.maybeStop()
		return
	}
	if op.err != nil {
		err := translateSysErr("read", op.err)
		if IsEOF(err) || (IsConnReset(err) && op.n == 0) {
			s.endRead(opErr("read", EOF, nil))
			return
		}
		s.endRead(err)
		return
	}
	if op.n == 0 {
		s.endRead(opErr("read", EOF, nil))
		return
	}
	s.deliverRead(int(op.n), op.buf[:op.n], nil)
	if s.flags&hfReading != 0 && !s.Closing() {
		s.armRead()
	}
}

// endRead fires the terminal read callback (EOF or error) and disarms reads
// until the next ReadStart.
func (s *stream) endRead(err error) {
	cb := s.readCb
	closing := s.Closing()
	s.flags &^= hfReading
	s.maybeStop()
	if !closing && cb != nil {
		cb(s.owner, 0, nil, err)
	}
}

func (s *stream) armRead() {
	if s.readOp != nil {
		return
	}
	op := &readOp{s: s, buf: s.allocBuf()}
	op.handle = s.h
	op.sock = s.sock
	op.done = func(qty uint32, err error) {
		op.n = qty
		op.err = err
		s.loop.queuePending(op)
	}
	s.readOp = op
	s.loop.addReq()
	s.addInflight()
	var err error
	if s.sock {
		wsabuf := windows.WSABuf{Len: uint32(len(op.buf)), Buf: &op.buf[0]}
		var flags, recvd uint32
		err = windows.WSARecv(s.h, &wsabuf, 1, &recvd, &flags, &op.ovl, nil)
	} else {
		var done uint32
		err = windows.ReadFile(s.h, op.buf, &done, &op.ovl)
	}
	if err != nil && err != windows.ERROR_IO_PENDING {
		// deliver the failure through the pending queue like any completion
		op.done(0, err)
	}
}

func (s *stream) disarmRead() {
	// the in-flight read keeps going; its completion is dropped by the
	// reading-flag gate
}

func (s *stream) pendingWrites() int {
	return len(s.writeQ)
}

type writeReq struct {
	winOp
	s         *stream
	bufs      [][]byte
	idx       int
	size      uint64
	cb        WriteCallback
	err       error
	submitted bool
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

func (s *stream) submitWrite(bufs [][]byte, sendHandle Handle, cb WriteCallback) error {
	if sendHandle != nil {
		return opErr("write", ErrNotSupported, nil)
	}
	r := &writeReq{s: s, bufs: bufs, cb: cb}
	for _, buf := range bufs {
		r.size += uint64(len(buf))
	}
	s.writeQueueSize += r.size
	s.loop.addReq()
	s.addInflight()
	s.startHandle()
	s.writeQ = append(s.writeQ, r)
	if len(s.writeQ) == 1 {
		s.submitHeadWrite()
	}
	return nil
}

func (s *stream) submitHeadWrite() {
	r := s.writeQ[0]
	r.submitted = true
	r.handle = s.h
	r.sock = s.sock
	r.done = func(qty uint32, err error) {
		s.onWriteDone(r, qty, err)
	}
	var err error
	if s.sock {
		wsabufs := make([]windows.WSABuf, 0, len(r.bufs)-r.idx)
		for _, buf := range r.bufs[r.idx:] {
			b := buf
			var ptr *byte
			if len(b) > 0 {
				ptr = &b[0]
			}
			wsabufs = append(wsabufs, windows.WSABuf{Len: uint32(len(b)), Buf: ptr})
		}
		var sent uint32
		err = windows.WSASend(s.h, &wsabufs[0], uint32(len(wsabufs)), &sent, 0, &r.ovl, nil)
	} else {
		var done uint32
		err = windows.WriteFile(s.h, r.bufs[r.idx], &done, &r.ovl)
	}
	if err != nil && err != windows.ERROR_IO_PENDING {
		s.onWriteDone(r, 0, err)
	}
}

// onWriteDone runs at completion resolution time; it advances the request and
// chains the next submission, queueing the user completion when a request is
// fully drained or failed.
func (s *stream) onWriteDone(r *writeReq, qty uint32, err error) {
	if err != nil {
		r.err = translateSysErr("write", err)
		s.finishHeadWrite(r)
		return
	}
	s.writeQueueSize -= uint64(qty)
	r.size -= uint64(qty)
	if s.sock {
		// WSASend writes the whole gather list or fails
		r.idx = len(r.bufs)
	} else {
		r.idx++
	}
	if r.idx < len(r.bufs) && !s.Closing() {
		s.submitHeadWrite()
		return
	}
	s.finishHeadWrite(r)
}

func (s *stream) finishHeadWrite(r *writeReq) {
	if len(s.writeQ) > 0 && s.writeQ[0] == r {
		s.writeQ = s.writeQ[1:]
	}
	s.writeQueueSize -= r.size
	r.size = 0
	s.loop.queuePending(r)
	if len(s.writeQ) > 0 && !s.Closing() {
		s.submitHeadWrite()
		return
	}
	if s.shutReq != nil && !s.Closing() {
		s.performShutdown()
	}
}

func (s *stream) tryWriteNow(buf []byte) (int, error) {
	// the completion model has no synchronous nonblocking write
	return 0, opErr("try_write", ErrAgain, nil)
}

type shutdownReq struct {
	winOp
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
	if s.sock {
		if err := syscall.Shutdown(syscall.Handle(s.h), syscall.SHUT_WR); err != nil {
			r.err = translateSysErr("shutdown", err)
		}
	} else {
		_ = windows.FlushFileBuffers(s.h)
	}
	if r.err == nil {
		s.flags |= hfShut
		s.flags &^= hfWritable
	}
	s.flags &^= hfShutting
	s.loop.queuePending(r)
}

type connectReq struct {
	winOp
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

func (s *stream) startConnect(cb ConnectCallback) *connectReq {
	r := &connectReq{s: s, cb: cb}
	s.connReq = r
	s.loop.addReq()
	s.addInflight()
	s.startHandle()
	return r
}

// acceptStream adopts the oldest accepted connection into client.
func (s *stream) acceptStream(client *stream) error {
	if s.accepted == nil || s.accepted.Length() == 0 {
		return opErr("accept", ErrAgain, nil)
	}
	h := s.accepted.Remove().(windows.Handle)
	client.open(h, s.sock)
	return nil
}

// closeStream cancels everything in flight and closes the OS handle. In-flight
// completions drain through the pending queue before the endgame runs.
func (s *stream) closeStream() {
	s.flags &^= hfReading | hfListening
	if s.h != windows.InvalidHandle {
		_ = windows.CancelIoEx(s.h, nil)
	}
	if s.connReq != nil {
		r := s.connReq
		s.connReq = nil
		r.err = opErr("connect", ErrCanceled, nil)
		s.loop.queuePending(r)
	}
	for _, r := range s.writeQ {
		if r.submitted {
			// already with the kernel; its completion resolves it
			continue
		}
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
			_ = windows.CloseHandle(s.accepted.Remove().(windows.Handle))
		}
	}
	if s.h != windows.InvalidHandle {
		_ = windows.CloseHandle(s.h)
		s.h = windows.InvalidHandle
	}
	s.flags &^= hfReadable | hfWritable
	s.stopHandle()
}
