package lio

// Handle is the common surface of every long-lived resource bound to a loop.
// The loop owns the registration; the user owns the storage. A handle must be
// closed exactly once; its close callback fires in the next endgame phase
// (the same iteration when Close is called from a callback), after which the
// handle is inert.
type Handle interface {
	Type() HandleType
	Loop() *Loop
	// Active reports whether the handle is doing work the loop must wait for.
	Active() bool
	Closing() bool
	// HasRef reports whether the handle contributes to loop liveness.
	HasRef() bool
	Ref()
	Unref()
	Close(cb CloseCallback)

	base() *handleBase
}

// closer is the type-specific cancellation hook run when Close is called.
type closer interface {
	closeHandle()
}

// Handle flag bits.
const (
	hfClosing uint32 = 1 << iota
	hfClosed
	hfActive
	hfRef
	hfInternal
	hfEndgameQueued
	hfReading
	hfReadable
	hfWritable
	hfShutting
	hfShut
	hfConnection
	hfBlockingWrites
	hfIPC
	hfPollSlow
	hfListening
	hfBound
)

type handleBase struct {
	loop    *Loop
	kind    HandleType
	flags   uint32
	closeCb CloseCallback
	// owner is the concrete handle embedding this base.
	owner Handle
	// inflight counts kernel operations still attached to the handle; the
	// endgame is deferred until it reaches zero.
	inflight int

	handlePrev, handleNext *handleBase
	endgameNext            *handleBase
}

func (h *handleBase) init(lp *Loop, kind HandleType, owner Handle) {
	h.loop = lp
	h.kind = kind
	h.flags = hfRef
	h.owner = owner
	lp.addHandle(h)
}

func (h *handleBase) base() *handleBase {
	return h
}

func (h *handleBase) Type() HandleType {
	return h.kind
}

func (h *handleBase) Loop() *Loop {
	return h.loop
}

func (h *handleBase) Active() bool {
	return h.flags&hfActive != 0
}

func (h *handleBase) Closing() bool {
	return h.flags&(hfClosing|hfClosed) != 0
}

func (h *handleBase) HasRef() bool {
	return h.flags&hfRef != 0
}

func (h *handleBase) Ref() {
	if h.flags&hfRef != 0 {
		return
	}
	h.flags |= hfRef
	if h.flags&hfActive != 0 {
		h.loop.activeHandles++
	}
}

func (h *handleBase) Unref() {
	if h.flags&hfRef == 0 {
		return
	}
	h.flags &^= hfRef
	if h.flags&hfActive != 0 {
		h.loop.activeHandles--
	}
}

// startHandle marks the handle active. Only referenced active handles count
// toward loop liveness. Idempotent.
func (h *handleBase) startHandle() {
	if h.flags&hfActive != 0 {
		return
	}
	h.flags |= hfActive
	if h.flags&hfRef != 0 {
		h.loop.activeHandles++
	}
}

// stopHandle clears the active state. Idempotent.
func (h *handleBase) stopHandle() {
	if h.flags&hfActive == 0 {
		return
	}
	h.flags &^= hfActive
	if h.flags&hfRef != 0 {
		h.loop.activeHandles--
	}
}

// Close transitions the handle to closing, runs the type-specific
// cancellation and schedules the endgame once no kernel operations remain.
// Closing a handle twice is a programming error.
func (h *handleBase) Close(cb CloseCallback) {
	if h.Closing() {
		panic("lio: handle closed twice")
	}
	h.closeCb = cb
	h.flags |= hfClosing
	h.owner.(closer).closeHandle()
	h.maybeQueueEndgame()
}

func (h *handleBase) maybeQueueEndgame() {
	if h.flags&hfClosing == 0 || h.flags&(hfClosed|hfEndgameQueued) != 0 {
		return
	}
	if h.inflight > 0 {
		return
	}
	h.flags |= hfEndgameQueued
	h.loop.queueEndgame(h)
}

func (h *handleBase) addInflight() {
	h.inflight++
}

func (h *handleBase) doneInflight() {
	h.inflight--
	if h.inflight == 0 {
		h.maybeQueueEndgame()
	}
}
