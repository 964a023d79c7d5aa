package lio

// pendingItem is one entry of the loop's pending-completion FIFO: an
// in-flight operation whose kernel side finished and whose user callback is
// dispatched in the pending phase. complete runs on the loop thread, exactly
// once per item.
type pendingItem interface {
	complete()
}

// addReq/doneReq track the active-request count that keeps the loop alive
// while operations are outstanding.
func (lp *Loop) addReq() {
	lp.activeReqs++
}

func (lp *Loop) doneReq() {
	lp.activeReqs--
}

// queuePending appends a finished operation for dispatch in the pending
// phase. Loop thread only.
func (lp *Loop) queuePending(item pendingItem) {
	lp.pending.Add(item)
}

// runPending drains the completions that were queued before this phase
// started; items queued by completion handlers run next iteration.
func (lp *Loop) runPending() bool {
	n := lp.pending.Length()
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		item := lp.pending.Remove().(pendingItem)
		item.complete()
	}
	return true
}

// poster is a cross-thread completion: thread-pool work items and signal
// deliveries enqueue themselves with (*Loop).post and are replayed on the
// loop thread by the wakeup async.
type poster interface {
	afterWork()
}

// post hands an item to the loop from an arbitrary thread.
func (lp *Loop) post(item poster) {
	lp.postMu.Lock()
	lp.posted.Add(item)
	wakeup := lp.wakeup
	lp.postMu.Unlock()
	// a closed loop has no wakeup left; the item is dropped with it
	if wakeup != nil {
		wakeup.Send()
	}
}

func (lp *Loop) drainPosted() {
	lp.postMu.Lock()
	n := lp.posted.Length()
	items := make([]poster, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, lp.posted.Remove().(poster))
	}
	lp.postMu.Unlock()
	for _, item := range items {
		item.afterWork()
	}
}
