package fluxkit

import (
	"context"

	"github.com/gokit/errors"
)

// ErrDuplicateSubscription is reported to the dropped error hook when a
// stage receives a second OnSubscribe.
var ErrDuplicateSubscription = errors.New("subscription already set")

//***********************************************************
// UsingConfig
//***********************************************************

// UsingConfig defines the collaborators of a resource scoped stage.
type UsingConfig[T any, R any] struct {
	// Acquire produces the resource on every subscription. No cleanup
	// happens if it fails.
	Acquire func(ctx context.Context) (R, error)

	// Derive maps the resource into the single value publisher which is
	// subscribed to. A nil publisher is treated as ErrNilPublisher.
	Derive func(resource R) (Publisher[T], error)

	// Cleanup releases the resource. It is called exactly once per
	// acquired resource.
	Cleanup func(resource R) error

	// Eager runs Cleanup before the value or terminal signal is forwarded
	// downstream, a cleanup failure then replaces or joins that signal.
	// When false, Cleanup runs after forwarding and its failure can only
	// be reported to the dropped error hook.
	Eager bool
}

func (uc *UsingConfig[T, R]) init() {
	if uc.Acquire == nil {
		panic("fluxkit: UsingConfig.Acquire is required")
	}
	if uc.Derive == nil {
		panic("fluxkit: UsingConfig.Derive is required")
	}
	if uc.Cleanup == nil {
		panic("fluxkit: UsingConfig.Cleanup is required")
	}
}

//***********************************************************
// Using
//***********************************************************

// Using returns a Publisher which acquires a resource per subscription,
// derives a single value publisher from it and releases the resource
// exactly once, however the subscription ends.
func Using[T any, R any](
	acquire func(ctx context.Context) (R, error),
	derive func(resource R) (Publisher[T], error),
	cleanup func(resource R) error,
	eager bool,
) Publisher[T] {
	return UsingWith(UsingConfig[T, R]{
		Acquire: acquire,
		Derive:  derive,
		Cleanup: cleanup,
		Eager:   eager,
	})
}

// UsingWith returns a resource scoped Publisher built from config.
func UsingWith[T any, R any](config UsingConfig[T, R]) Publisher[T] {
	config.init()
	return &using[T, R]{config: config}
}

type using[T any, R any] struct {
	config UsingConfig[T, R]
}

func (u *using[T, R]) Fuseable() {}

// Scan implements the Scannable interface.
func (u *using[T, R]) Scan(attr Attr) interface{} {
	if attr == AttrRunStyle {
		return RunStyleSync
	}
	return nil
}

// Subscribe implements the Publisher interface.
func (u *using[T, R]) Subscribe(ctx context.Context, s Subscriber[T]) {
	var resource R
	err := Safely(func() error {
		var aerr error
		resource, aerr = u.config.Acquire(ctx)
		return aerr
	})
	if err != nil {
		ErrorTo(s, err)
		return
	}

	var source Publisher[T]
	err = Safely(func() error {
		var derr error
		source, derr = u.config.Derive(resource)
		if derr == nil && source == nil {
			derr = ErrNilPublisher
		}
		return derr
	})
	if err != nil {
		if cerr := Safely(func() error { return u.config.Cleanup(resource) }); cerr != nil {
			err = AddSuppressed(err, cerr)
		}
		ErrorTo(s, err)
		return
	}

	source.Subscribe(ctx, &usingSubscriber[T, R]{
		actual:      s,
		hooks:       HooksFrom(ctx),
		cleanupFn:   u.config.Cleanup,
		resource:    resource,
		eager:       u.config.Eager,
		allowFusion: IsFuseable(source),
	})
}

//***********************************************************
// usingSubscriber
//***********************************************************

// usingSubscriber sits between the derived publisher and the actual
// subscriber. The guard is consumed by the first of cancel, value
// delivery or terminal signal, whoever wins runs the cleanup.
type usingSubscriber[T any, R any] struct {
	actual      Subscriber[T]
	hooks       *Hooks
	cleanupFn   func(R) error
	resource    R
	eager       bool
	allowFusion bool

	s     Subscription
	qs    QueueSubscription[T]
	guard AtomicBool

	// mode and valued are only touched from the signal path, which the
	// protocol keeps serial.
	mode   FusionMode
	valued bool
}

// Scan implements the Scannable interface.
func (u *usingSubscriber[T, R]) Scan(attr Attr) interface{} {
	switch attr {
	case AttrTerminated, AttrCancelled:
		return u.guard.IsTrue()
	case AttrParent:
		return u.s
	case AttrRunStyle:
		return RunStyleSync
	}
	return nil
}

func (u *usingSubscriber[T, R]) OnSubscribe(s Subscription) {
	if u.s != nil {
		s.Cancel()
		u.hooks.OnErrorDropped(ErrDuplicateSubscription)
		return
	}

	u.s = s
	if u.allowFusion {
		if qs, ok := s.(QueueSubscription[T]); ok {
			u.qs = qs
		}
	}

	u.actual.OnSubscribe(u)
}

func (u *usingSubscriber[T, R]) OnNext(v T) {
	if u.mode == FusionAsync {
		u.actual.OnNext(v)
		return
	}
	u.valued = true

	if u.eager && u.guard.Claim() {
		if err := u.cleanup(); err != nil {
			u.actual.OnError(err)
			u.hooks.OnDiscard(v)
			return
		}
	}

	u.actual.OnNext(v)
	u.actual.OnComplete()

	if !u.eager && u.guard.Claim() {
		u.cleanupOrDrop()
	}
}

func (u *usingSubscriber[T, R]) OnError(err error) {
	if u.valued && u.mode != FusionAsync {
		u.hooks.OnErrorDropped(err)
		return
	}

	if u.eager && u.guard.Claim() {
		if cerr := u.cleanup(); cerr != nil {
			err = AddSuppressed(err, cerr)
		}
	}

	u.actual.OnError(err)

	if !u.eager && u.guard.Claim() {
		u.cleanupOrDrop()
	}
}

func (u *usingSubscriber[T, R]) OnComplete() {
	if u.valued && u.mode != FusionAsync {
		return
	}

	if u.eager && u.guard.Claim() {
		if err := u.cleanup(); err != nil {
			u.actual.OnError(err)
			return
		}
	}

	u.actual.OnComplete()

	if !u.eager && u.guard.Claim() {
		u.cleanupOrDrop()
	}
}

func (u *usingSubscriber[T, R]) Request(n int64) {
	u.s.Request(n)
}

func (u *usingSubscriber[T, R]) Cancel() {
	if u.guard.Claim() {
		u.s.Cancel()
		u.cleanupOrDrop()
	}
}

func (u *usingSubscriber[T, R]) RequestFusion(requested FusionMode) FusionMode {
	if u.qs == nil {
		u.mode = FusionNone
		return FusionNone
	}
	u.mode = u.qs.RequestFusion(requested)
	return u.mode
}

func (u *usingSubscriber[T, R]) Poll() (T, bool, error) {
	var zero T
	if u.mode == FusionNone || u.qs == nil {
		return zero, false, nil
	}

	v, ok, err := u.qs.Poll()
	if err != nil {
		return zero, false, err
	}

	if ok {
		u.valued = true
		if u.eager && u.guard.Claim() {
			if cerr := u.cleanup(); cerr != nil {
				u.hooks.OnDiscard(v)
				return zero, false, cerr
			}
		}
		return v, true, nil
	}

	// In SYNC mode an empty poll is the end of the source, no terminal
	// signal follows. An eager stage only gets here holding the guard
	// when the source was empty.
	if u.mode == FusionSync && u.guard.Claim() {
		if cerr := u.cleanup(); cerr != nil {
			if !u.valued {
				return zero, false, cerr
			}
			u.hooks.OnErrorDropped(cerr)
		}
	}
	return zero, false, nil
}

func (u *usingSubscriber[T, R]) IsEmpty() bool {
	return u.qs == nil || u.qs.IsEmpty()
}

func (u *usingSubscriber[T, R]) Size() int {
	if u.qs == nil {
		return 0
	}
	return u.qs.Size()
}

func (u *usingSubscriber[T, R]) Clear() {
	if u.qs != nil {
		u.qs.Clear()
	}
}

func (u *usingSubscriber[T, R]) cleanup() error {
	return Safely(func() error {
		return u.cleanupFn(u.resource)
	})
}

func (u *usingSubscriber[T, R]) cleanupOrDrop() {
	if err := u.cleanup(); err != nil {
		u.hooks.OnErrorDropped(err)
	}
}
