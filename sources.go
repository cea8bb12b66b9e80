package fluxkit

import (
	"context"
	"sync/atomic"
)

//*****************************************************************
// Just
//*****************************************************************

// Just returns a Publisher emitting value followed by completion. Its
// subscriptions support SYNC fusion.
func Just[T any](value T) Publisher[T] {
	return &just[T]{value: value}
}

type just[T any] struct {
	value T
}

func (j *just[T]) Fuseable() {}

func (j *just[T]) Subscribe(ctx context.Context, s Subscriber[T]) {
	s.OnSubscribe(&scalarSubscription[T]{
		actual: s,
		value:  j.value,
		hooks:  HooksFrom(ctx),
	})
}

func (j *just[T]) Scan(attr Attr) interface{} {
	if attr == AttrRunStyle {
		return RunStyleSync
	}
	return nil
}

// scalar subscription states.
const (
	scalarPending int32 = iota
	scalarEmitted
	scalarCancelled
)

type scalarSubscription[T any] struct {
	actual Subscriber[T]
	value  T
	hooks  *Hooks
	state  int32
}

func (ss *scalarSubscription[T]) Request(n int64) {
	if err := ValidateRequest(n); err != nil {
		if atomic.CompareAndSwapInt32(&ss.state, scalarPending, scalarCancelled) {
			ss.actual.OnError(err)
		}
		return
	}

	if !atomic.CompareAndSwapInt32(&ss.state, scalarPending, scalarEmitted) {
		return
	}

	ss.actual.OnNext(ss.value)
	if atomic.LoadInt32(&ss.state) != scalarCancelled {
		ss.actual.OnComplete()
	}
}

func (ss *scalarSubscription[T]) Cancel() {
	for {
		current := atomic.LoadInt32(&ss.state)
		if current == scalarCancelled {
			return
		}
		if atomic.CompareAndSwapInt32(&ss.state, current, scalarCancelled) {
			if current == scalarPending {
				ss.hooks.OnDiscard(ss.value)
			}
			return
		}
	}
}

func (ss *scalarSubscription[T]) RequestFusion(requested FusionMode) FusionMode {
	if requested&FusionSync != 0 {
		return FusionSync
	}
	return FusionNone
}

func (ss *scalarSubscription[T]) Poll() (T, bool, error) {
	if atomic.CompareAndSwapInt32(&ss.state, scalarPending, scalarEmitted) {
		return ss.value, true, nil
	}
	var zero T
	return zero, false, nil
}

func (ss *scalarSubscription[T]) IsEmpty() bool {
	return atomic.LoadInt32(&ss.state) != scalarPending
}

func (ss *scalarSubscription[T]) Size() int {
	if ss.IsEmpty() {
		return 0
	}
	return 1
}

func (ss *scalarSubscription[T]) Clear() {
	atomic.CompareAndSwapInt32(&ss.state, scalarPending, scalarEmitted)
}

//*****************************************************************
// Empty and Fail
//*****************************************************************

// Empty returns a Publisher which completes without a value.
func Empty[T any]() Publisher[T] {
	return empty[T]{}
}

type empty[T any] struct{}

func (empty[T]) Fuseable() {}

func (empty[T]) Subscribe(_ context.Context, s Subscriber[T]) {
	Complete(s)
}

// Fail returns a Publisher which signals err right after subscription.
func Fail[T any](err error) Publisher[T] {
	return failing[T]{err: err}
}

type failing[T any] struct {
	err error
}

func (failing[T]) Fuseable() {}

func (f failing[T]) Subscribe(_ context.Context, s Subscriber[T]) {
	ErrorTo(s, f.err)
}

//*****************************************************************
// FromFunc
//*****************************************************************

// FromFunc returns a Publisher which calls fn on the first valid request
// and emits its result. A panic in fn is delivered as a *PanicError.
//
// Subscriptions of FromFunc do not support fusion.
func FromFunc[T any](fn func(ctx context.Context) (T, error)) Publisher[T] {
	return &fromFunc[T]{fn: fn}
}

type fromFunc[T any] struct {
	fn func(ctx context.Context) (T, error)
}

func (f *fromFunc[T]) Subscribe(ctx context.Context, s Subscriber[T]) {
	s.OnSubscribe(&funcSubscription[T]{
		ctx:    ctx,
		fn:     f.fn,
		actual: s,
		hooks:  HooksFrom(ctx),
	})
}

type funcSubscription[T any] struct {
	ctx    context.Context
	fn     func(ctx context.Context) (T, error)
	actual Subscriber[T]
	hooks  *Hooks
	state  int32
}

func (fs *funcSubscription[T]) Request(n int64) {
	if err := ValidateRequest(n); err != nil {
		if atomic.CompareAndSwapInt32(&fs.state, scalarPending, scalarCancelled) {
			fs.actual.OnError(err)
		}
		return
	}

	if !atomic.CompareAndSwapInt32(&fs.state, scalarPending, scalarEmitted) {
		return
	}

	var value T
	err := Safely(func() error {
		var ferr error
		value, ferr = fs.fn(fs.ctx)
		return ferr
	})

	if atomic.LoadInt32(&fs.state) == scalarCancelled {
		if err != nil {
			fs.hooks.OnErrorDropped(err)
			return
		}
		fs.hooks.OnDiscard(value)
		return
	}

	if err != nil {
		fs.actual.OnError(err)
		return
	}

	fs.actual.OnNext(value)
	if atomic.LoadInt32(&fs.state) != scalarCancelled {
		fs.actual.OnComplete()
	}
}

func (fs *funcSubscription[T]) Cancel() {
	atomic.StoreInt32(&fs.state, scalarCancelled)
}
