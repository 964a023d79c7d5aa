package lio

import (
	"context"
	"fmt"

	"github.com/brickingsoft/errors"
)

// workReq is a thread-pool work item. The work function runs on the shared
// executors; afterWork replays on the loop thread via the internal wakeup
// async once the pool posts the finished item back.
type workReq struct {
	loop  *Loop
	work  func()
	after AfterWorkCallback
	err   error
}

func (r *workReq) afterWork() {
	r.loop.doneReq()
	if r.after != nil {
		r.after(r.err)
	}
}

// QueueWork submits work to the shared thread pool and schedules after on the
// loop thread when it finishes. The pending work item keeps the loop alive.
// Safe from the loop thread; the work function must not touch loop state.
func QueueWork(lp *Loop, work func(), after AfterWorkCallback) error {
	if lp == nil || work == nil {
		return opErr("queue_work", ErrInvalid, nil)
	}
	r := &workReq{
		loop:  lp,
		work:  work,
		after: after,
	}
	lp.addReq()
	execErr := Executors().Execute(context.Background(), func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.err = opErr("queue_work", ErrCanceled, errors.New(fmt.Sprintf("%+v", rec)))
			}
			lp.post(r)
		}()
		r.work()
	})
	if execErr != nil {
		lp.doneReq()
		return opErr("queue_work", ErrBusy, execErr)
	}
	return nil
}
