package fluxkit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gokit/errors"
	"github.com/gokit/es"
	"github.com/gokit/xid"
)

//*****************************************************************
// Future events
//*****************************************************************

// FutureResolved is published to watchers when a Future resolves.
type FutureResolved struct {
	ID    string
	Value interface{}
}

// FutureRejected is published to watchers when a Future is rejected.
type FutureRejected struct {
	ID  string
	Err error
}

//*****************************************************************
// Future
//*****************************************************************

// Future is a single value computation settled exactly once, either by
// Resolve or Reject. It is also a Publisher which supports ASYNC fusion,
// so it can be plugged into a pipeline.
type Future[T any] struct {
	id     xid.ID
	events *es.EventStream
	timer  *time.Timer
	done   chan struct{}

	cw      sync.Mutex
	settled bool
	err     error
	result  T
	pipes   []*Future[T]
	subs    []*futureSubscription[T]
}

// NewFuture returns a new instance of giving future.
func NewFuture[T any]() *Future[T] {
	var ft Future[T]
	ft.id = xid.New()
	ft.events = es.New()
	ft.done = make(chan struct{})
	return &ft
}

// TimedFuture returns a new instance of giving future which is rejected
// with ErrFutureTimeout if not settled within dur.
func TimedFuture[T any](dur time.Duration) *Future[T] {
	return TimedFutureWith[T](dur, ErrFutureTimeout)
}

// TimedFutureWith returns a new instance of giving future which is rejected
// with timeoutErr if not settled within dur.
func TimedFutureWith[T any](dur time.Duration, timeoutErr error) *Future[T] {
	ft := NewFuture[T]()

	ft.cw.Lock()
	ft.timer = time.AfterFunc(dur, func() {
		ft.Reject(timeoutErr)
	})
	ft.cw.Unlock()
	return ft
}

// ID returns the unique id of giving Future.
func (f *Future[T]) ID() string {
	return f.id.String()
}

// Resolve settles the future with value. It returns an error if the
// future is already settled.
func (f *Future[T]) Resolve(value T) error {
	return f.settle(value, nil)
}

// Reject settles the future with err. It returns an error if the
// future is already settled.
func (f *Future[T]) Reject(err error) error {
	var zero T
	return f.settle(zero, err)
}

// Done returns a channel closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks till the giving future is settled and returns its value
// and error.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.Result(), f.Err()
}

// WaitContext blocks till the giving future is settled or ctx is done.
func (f *Future[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Result(), f.Err()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the error for the failure of giving future.
func (f *Future[T]) Err() error {
	f.cw.Lock()
	defer f.cw.Unlock()
	return f.err
}

// Result returns the value which resolved the future.
func (f *Future[T]) Result() T {
	f.cw.Lock()
	defer f.cw.Unlock()
	return f.result
}

// IsSettled returns true/false if the future is resolved or rejected.
func (f *Future[T]) IsSettled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Watch adds giving function into event system for future. It receives
// a FutureResolved or FutureRejected event.
func (f *Future[T]) Watch(fn func(interface{})) EventSubscription {
	return f.events.Subscribe(fn)
}

// Pipe forwards the outcome of giving future into the provided futures.
// Futures already settled ignore the forwarded outcome.
func (f *Future[T]) Pipe(others ...*Future[T]) {
	f.cw.Lock()
	if !f.settled {
		f.pipes = append(f.pipes, others...)
		f.cw.Unlock()
		return
	}

	result, err := f.result, f.err
	f.cw.Unlock()

	for _, other := range others {
		other.settle(result, err)
	}
}

// Fuseable marks the future as a publisher supporting ASYNC fusion.
func (f *Future[T]) Fuseable() {}

// Scan implements the Scannable interface.
func (f *Future[T]) Scan(attr Attr) interface{} {
	switch attr {
	case AttrTerminated:
		return f.IsSettled()
	case AttrName:
		return "future/" + f.id.String()
	case AttrRunStyle:
		return RunStyleAsync
	}
	return nil
}

// Subscribe implements the Publisher interface. The subscriber receives
// the value and completion once it requested, or the rejection error.
func (f *Future[T]) Subscribe(ctx context.Context, s Subscriber[T]) {
	sub := &futureSubscription[T]{
		future: f,
		actual: s,
		hooks:  HooksFrom(ctx),
	}

	s.OnSubscribe(sub)

	f.cw.Lock()
	if !f.settled {
		f.subs = append(f.subs, sub)
		f.cw.Unlock()
		return
	}
	f.cw.Unlock()

	sub.onSettled()
}

func (f *Future[T]) settle(value T, err error) error {
	f.cw.Lock()
	if f.settled {
		f.cw.Unlock()
		return errors.Wrap(ErrFutureResolved, "Future %q already settled", f.id.String())
	}

	f.settled = true
	f.result = value
	f.err = err
	if f.timer != nil {
		f.timer.Stop()
	}

	pipes := f.pipes
	subs := f.subs
	f.pipes = nil
	f.subs = nil
	close(f.done)
	f.cw.Unlock()

	if err != nil {
		f.events.Publish(FutureRejected{ID: f.id.String(), Err: err})
	} else {
		f.events.Publish(FutureResolved{ID: f.id.String(), Value: value})
	}

	for _, pipe := range pipes {
		pipe.settle(value, err)
	}

	for _, sub := range subs {
		sub.onSettled()
	}
	return nil
}

//*****************************************************************
// futureSubscription
//*****************************************************************

// futureSubscription state bits.
const (
	futureRequested int32 = 1 << iota
	futureSettled
	futureDone
	futureConsumed
)

type futureSubscription[T any] struct {
	future *Future[T]
	actual Subscriber[T]
	hooks  *Hooks
	mode   FusionMode
	state  int32
}

func (fs *futureSubscription[T]) Request(n int64) {
	if err := ValidateRequest(n); err != nil {
		if fs.markDone() {
			fs.actual.OnError(err)
		}
		return
	}

	if fs.mode == FusionAsync {
		return
	}

	if fs.addState(futureRequested)&futureSettled != 0 {
		fs.emit()
	}
}

func (fs *futureSubscription[T]) Cancel() {
	fs.markDone()
}

func (fs *futureSubscription[T]) onSettled() {
	previous := fs.addState(futureSettled)

	if fs.mode == FusionAsync {
		if !fs.markDone() {
			return
		}
		if err := fs.future.Err(); err != nil {
			fs.actual.OnError(err)
			return
		}

		var zero T
		fs.actual.OnNext(zero)
		fs.actual.OnComplete()
		return
	}

	if fs.future.Err() != nil || previous&futureRequested != 0 {
		fs.emit()
	}
}

func (fs *futureSubscription[T]) emit() {
	if !fs.markDone() {
		return
	}

	if err := fs.future.Err(); err != nil {
		fs.actual.OnError(err)
		return
	}

	fs.actual.OnNext(fs.future.Result())
	fs.actual.OnComplete()
}

// addState adds bits to the state returning the previous state.
func (fs *futureSubscription[T]) addState(bits int32) int32 {
	for {
		current := atomic.LoadInt32(&fs.state)
		if atomic.CompareAndSwapInt32(&fs.state, current, current|bits) {
			return current
		}
	}
}

// markDone returns true for the single caller flipping the done bit.
func (fs *futureSubscription[T]) markDone() bool {
	return fs.addState(futureDone)&futureDone == 0
}

func (fs *futureSubscription[T]) RequestFusion(requested FusionMode) FusionMode {
	if requested&FusionAsync != 0 {
		fs.mode = FusionAsync
		return FusionAsync
	}
	return FusionNone
}

func (fs *futureSubscription[T]) Poll() (T, bool, error) {
	var zero T
	state := atomic.LoadInt32(&fs.state)
	if state&futureSettled == 0 || state&futureConsumed != 0 {
		return zero, false, nil
	}
	if fs.future.Err() != nil {
		return zero, false, nil
	}
	if fs.addState(futureConsumed)&futureConsumed != 0 {
		return zero, false, nil
	}
	return fs.future.Result(), true, nil
}

func (fs *futureSubscription[T]) IsEmpty() bool {
	state := atomic.LoadInt32(&fs.state)
	return state&futureSettled == 0 || state&futureConsumed != 0 || fs.future.Err() != nil
}

func (fs *futureSubscription[T]) Size() int {
	if fs.IsEmpty() {
		return 0
	}
	return 1
}

func (fs *futureSubscription[T]) Clear() {
	fs.addState(futureConsumed)
}
