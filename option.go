package lio

// Options configure a loop at creation time.
type Options struct {
	// PollBatch is the number of kernel events dequeued per poll call.
	PollBatch int
	// Clock overrides the monotonic millisecond clock. Tests only.
	Clock func() uint64
}

type Option func(options *Options) error

func defaultOptions() Options {
	return Options{
		PollBatch: 128,
	}
}

// WithPollBatch sets the poller batch size.
func WithPollBatch(n int) Option {
	return func(options *Options) error {
		if n < 1 {
			return opErr("with_poll_batch", ErrInvalid, nil)
		}
		options.PollBatch = n
		return nil
	}
}

// WithClock overrides the loop's monotonic clock.
func WithClock(clock func() uint64) Option {
	return func(options *Options) error {
		if clock == nil {
			return opErr("with_clock", ErrInvalid, nil)
		}
		options.Clock = clock
		return nil
	}
}
