package browser

import (
	"context"
	"time"
)

// CombineContext derives a context from session that is also canceled when op is.
// Values (the CDP target) come from session; op usually carries the caller's deadline.
func CombineContext(session, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(session)

	if deadline, ok := op.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combined, cancelDeadline = context.WithDeadline(combined, deadline)
		prev := cancel
		cancel = func() {
			cancelDeadline()
			prev()
		}
	}

	stop := context.AfterFunc(op, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context carrying ctx's values but none of its cancellation.
// The browser session outlives the call that launched it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
