package loop

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

type Next struct {
	// if not nil, breaks with error
	err error

	// if quit == true and err == nil, breaks without error
	quit bool

	// otherwise, continue loop with interval.
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}

	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue loop.
//
// args:
//
// - interval: sleep before starting next task.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break loop.
//
// args:
//
// - err: If you break loop with error, set non nil value.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is a unit of work repeated by the loop.
//
// It receives the value returned by the last call (or init),
// and returns the next value and what the loop should do next.
type Task[T any] func(context.Context, T) (T, Next)

// Start task in loop, and blocks until it breaks.
//
// The task is called with init at first.
// Then, while the task returns Continue(interval), the task is called again
// after the interval with the last value.
// Zero value (Next{}) equals Continue(0), that is, "go next ASAP!".
//
// Intervals are measured with the clock given by WithClock (default: real clock),
// so tests can drive the loop with a fake clock.
//
// Example
//
// Count 1 to 10:
//
//	Start(ctx, 1, func(_ context.Context, value int) (int, Next) {
//		value += 1
//		if 10 <= value {
//			return value, Break(nil)
//		}
//		return value, Continue(0)
//	})
//
// Args
//
// - ctx : context. When this context get be Done, loop will be break with ctx.Err().
//
// - init : your task will be called as task(ctx, init) at the first time.
//
// - task : task receiving (context, last value), then return (new value, Continue() or Break()).
//
// - options: options for loop.
//
// Returns
//
// - T: T task returns at last.
// This value is always returned wheather or not it returns non-nil error together.
//
// - error: error in Break(error). It is nil when loop breaks with Break(nil).
func Start[T any](ctx context.Context, init T, task Task[T], options ...LoopOption) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	base := &loopConfig{ctx: ctx, clock: clock.RealClock{}}
	for _, opt := range options {
		base = opt(base)
	}
	if base.deferred != nil {
		base.deferred()
	}
	clk := base.clock

	value := init
	for {
		lc := &loopConfig{ctx: ctx, clock: clk}
		for _, opt := range options {
			lc = opt(lc)
		}

		v, n := func() (T, Next) {
			if lc.deferred != nil {
				defer lc.deferred()
			}
			return task(lc.ctx, value)
		}()

		if n.err != nil {
			return v, n.err
		} else if n.quit {
			return v, nil
		}
		value = v

		if n.interval <= 0 {
			select {
			case <-ctx.Done():
				return value, ctx.Err()
			default:
				continue
			}
		}

		timer := clk.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			// shutting down is priority. it should come first, and checking timer later.
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C():
			continue
		}
	}
}

// Handle is a loop running in background.
type Handle[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}
	value  T
	err    error
}

// Go starts the loop in a new goroutine.
//
// The loop stops when the task breaks, ctx is done, or Cancel is called.
func Go[T any](ctx context.Context, init T, task Task[T], options ...LoopOption) *Handle[T] {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle[T]{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		h.value, h.err = Start(ctx, init, task, options...)
	}()
	return h
}

// Cancel stops the loop. It does not wait for the task in progress.
func (h *Handle[T]) Cancel() {
	h.cancel()
}

// Done returns a channel closed when the loop is over.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the loop is over, and returns the result of Start.
func (h *Handle[T]) Wait() (T, error) {
	<-h.done
	return h.value, h.err
}

type loopConfig struct {
	ctx      context.Context
	clock    clock.Clock
	deferred func()
}

type LoopOption func(*loopConfig) *loopConfig

// WithTimeout sets timeout per loop.
//
// This timeout is set on context.Context passed to task.
func WithTimeout(d time.Duration) LoopOption {
	return func(lc *loopConfig) *loopConfig {
		ctx, cancel := context.WithTimeout(lc.ctx, d)
		return &loopConfig{
			ctx:   ctx,
			clock: lc.clock,
			deferred: func() {
				if lc.deferred != nil {
					defer lc.deferred()
				}
				cancel()
			},
		}
	}
}

// WithClock sets the clock measuring intervals.
func WithClock(c clock.Clock) LoopOption {
	return func(lc *loopConfig) *loopConfig {
		return &loopConfig{ctx: lc.ctx, clock: c, deferred: lc.deferred}
	}
}
