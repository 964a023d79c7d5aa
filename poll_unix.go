//go:build unix

package lio

import (
	"github.com/brickingsoft/lio/pkg/poller"
)

type pollBackend struct {
	fd int
	w  *fdWatcher
}

func (p *Poll) initPollBackend(fd int) error {
	p.fd = fd
	p.w = p.loop.newWatcher(fd, p.onPollIO)
	return nil
}

func (p *Poll) armPoll() error {
	var events uint32
	if p.events&PollReadable != 0 {
		events |= poller.In
	}
	if p.events&PollWritable != 0 {
		events |= poller.Out
	}
	if p.events&PollDisconnect != 0 {
		events |= poller.Hup
	}
	if p.events&PollPrioritized != 0 {
		events |= poller.Pri
	}
	// replace, not merge: Start with a narrower mask narrows the kernel set
	p.w.pevents = 0
	p.loop.watcherStart(p.w, events)
	return nil
}

func (p *Poll) disarmPoll() {
	if p.w != nil {
		p.loop.watcherStop(p.w, poller.In|poller.Out|poller.Hup|poller.Pri)
	}
}

func (p *Poll) closePollBackend() {
	if p.w != nil {
		p.loop.watcherClose(p.w)
		p.w = nil
	}
	// the descriptor belongs to the user and is left open
	p.fd = -1
}

func (p *Poll) onPollIO(events uint32) {
	var out int
	if events&(poller.In|poller.Pri) != 0 {
		out |= PollReadable
	}
	if events&poller.Out != 0 {
		out |= PollWritable
	}
	if events&poller.Hup != 0 {
		out |= PollDisconnect
	}
	if events&poller.Pri != 0 {
		out |= PollPrioritized
	}
	if events&poller.Err != 0 && out == 0 {
		// let the user's own syscall surface the error
		out = p.events
	}
	p.deliverPoll(out, nil)
}
