package lio

// stream is the shared state machine behind TCP and Pipe handles: ordered
// reliable byte streams with armed reads, a chained write queue, deferred
// shutdown and a listen/accept path.
type stream struct {
	handleBase
	streamBackend

	allocCb      AllocCallback
	readCb       ReadCallback
	connectionCb ConnectionCallback

	writeQueueSize uint64
}

const defaultReadSize = 64 * 1024

// ReadStart arms the read side. alloc may be nil, in which case a default
// buffer size is used. read receives n > 0 with data, n == 0 with a nil
// error when there is nothing to read right now, EOF at end of stream, or a
// portable error. After EOF or an error no further read callbacks fire until
// ReadStart is called again.
func (s *stream) ReadStart(alloc AllocCallback, read ReadCallback) error {
	if read == nil {
		return opErr("read_start", ErrInvalid, nil)
	}
	if s.Closing() {
		return opErr("read_start", ErrInvalid, nil)
	}
	if s.flags&hfReadable == 0 {
		return opErr("read_start", ErrNotConn, nil)
	}
	s.allocCb = alloc
	s.readCb = read
	s.flags |= hfReading
	s.startHandle()
	s.armRead()
	return nil
}

// ReadStop disarms the read side. Idempotent.
func (s *stream) ReadStop() error {
	if s.flags&hfReading == 0 {
		return nil
	}
	s.flags &^= hfReading
	s.disarmRead()
	s.maybeStop()
	return nil
}

// Write queues bufs for ordered delivery. The callback fires once the whole
// request has been written or failed; partial progress never surfaces.
func (s *stream) Write(bufs [][]byte, cb WriteCallback) error {
	if len(bufs) == 0 {
		return opErr("write", ErrInvalid, nil)
	}
	if s.Closing() || s.flags&hfShutting != 0 {
		return opErr("write", ErrBrokenPipe, nil)
	}
	if s.flags&hfWritable == 0 {
		return opErr("write", ErrBrokenPipe, nil)
	}
	return s.submitWrite(bufs, nil, cb)
}

// TryWrite writes synchronously what fits and reports the byte count; it
// never queues. ErrAgain means nothing could be written.
func (s *stream) TryWrite(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, opErr("try_write", ErrInvalid, nil)
	}
	if s.Closing() || s.flags&hfShutting != 0 {
		return 0, opErr("try_write", ErrBrokenPipe, nil)
	}
	if s.flags&hfWritable == 0 {
		return 0, opErr("try_write", ErrBrokenPipe, nil)
	}
	if s.pendingWrites() > 0 {
		return 0, opErr("try_write", ErrAgain, nil)
	}
	return s.tryWriteNow(buf)
}

// Shutdown sends FIN once the write queue drains. Reads may still deliver
// data and EOF afterwards.
func (s *stream) Shutdown(cb ShutdownCallback) error {
	if s.Closing() {
		return opErr("shutdown", ErrInvalid, nil)
	}
	if s.flags&(hfShutting|hfShut) != 0 {
		return opErr("shutdown", ErrInvalid, nil)
	}
	if s.flags&hfWritable == 0 {
		return opErr("shutdown", ErrNotConn, nil)
	}
	s.flags |= hfShutting
	s.queueShutdown(cb)
	return nil
}

// WriteQueueSize reports the bytes queued but not yet written, the
// backpressure signal.
func (s *stream) WriteQueueSize() uint64 {
	return s.writeQueueSize
}

func (s *stream) Readable() bool {
	return s.flags&hfReadable != 0
}

func (s *stream) Writable() bool {
	return s.flags&hfWritable != 0
}

// maybeStop clears the active state when the stream no longer has armed
// reads, queued writes or a listen in progress.
func (s *stream) maybeStop() {
	if s.flags&(hfReading|hfListening|hfShutting) != 0 {
		return
	}
	if s.pendingWrites() > 0 {
		return
	}
	if s.inflight > 0 {
		return
	}
	s.stopHandle()
}

func (s *stream) allocBuf() []byte {
	if s.allocCb != nil {
		return s.allocCb(s.owner, defaultReadSize)
	}
	return make([]byte, defaultReadSize)
}

// deliverRead applies the closing/reading gates before invoking the user
// read callback.
func (s *stream) deliverRead(n int, buf []byte, err error) {
	if s.Closing() || s.flags&hfReading == 0 || s.readCb == nil {
		return
	}
	s.readCb(s.owner, n, buf, err)
}
