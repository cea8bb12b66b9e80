package fluxkit

import (
	"context"
	"sync"
)

//*****************************************************************
// Block
//*****************************************************************

// Block subscribes to p with unbounded demand and waits for its terminal
// signal. It returns the first value emitted and whether there was one.
//
// If ctx ends first the subscription is cancelled and ctx.Err() returned.
func Block[T any](ctx context.Context, p Publisher[T]) (T, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	b := &blockingSubscriber[T]{
		hooks: HooksFrom(ctx),
		done:  make(chan struct{}),
	}
	p.Subscribe(ctx, b)

	select {
	case <-b.done:
		return b.value, b.hasValue, b.err
	case <-ctx.Done():
		b.cancel()
		var zero T
		return zero, false, ctx.Err()
	}
}

type blockingSubscriber[T any] struct {
	hooks *Hooks
	done  chan struct{}
	once  sync.Once

	sl        sync.Mutex
	s         Subscription
	cancelled bool

	value    T
	hasValue bool
	err      error
}

func (b *blockingSubscriber[T]) OnSubscribe(s Subscription) {
	b.sl.Lock()
	if b.cancelled {
		b.sl.Unlock()
		s.Cancel()
		return
	}
	b.s = s
	b.sl.Unlock()

	s.Request(Unbounded)
}

func (b *blockingSubscriber[T]) OnNext(v T) {
	if b.hasValue {
		b.hooks.OnDiscard(v)
		return
	}
	b.value = v
	b.hasValue = true
}

func (b *blockingSubscriber[T]) OnError(err error) {
	b.err = err
	b.finish()
}

func (b *blockingSubscriber[T]) OnComplete() {
	b.finish()
}

func (b *blockingSubscriber[T]) finish() {
	b.once.Do(func() {
		close(b.done)
	})
}

func (b *blockingSubscriber[T]) cancel() {
	b.sl.Lock()
	b.cancelled = true
	s := b.s
	b.sl.Unlock()

	if s != nil {
		s.Cancel()
	}
}

//*****************************************************************
// SubscribeFunc
//*****************************************************************

// SubscribeFunc subscribes to p with unbounded demand, calling the
// provided functions for each signal. Any of them may be nil; an error
// without an onError function is reported to the dropped error hook.
//
// The returned Disposable cancels the subscription.
func SubscribeFunc[T any](ctx context.Context, p Publisher[T], onNext func(T), onError func(error), onComplete func()) Disposable {
	ls := &lambdaSubscriber[T]{
		hooks:      HooksFrom(ctx),
		onNext:     onNext,
		onError:    onError,
		onComplete: onComplete,
	}
	p.Subscribe(ctx, ls)
	return ls
}

type lambdaSubscriber[T any] struct {
	hooks      *Hooks
	onNext     func(T)
	onError    func(error)
	onComplete func()

	disposed AtomicBool

	sl sync.Mutex
	s  Subscription
}

func (l *lambdaSubscriber[T]) OnSubscribe(s Subscription) {
	l.sl.Lock()
	if l.disposed.IsTrue() {
		l.sl.Unlock()
		s.Cancel()
		return
	}
	l.s = s
	l.sl.Unlock()

	s.Request(Unbounded)
}

func (l *lambdaSubscriber[T]) OnNext(v T) {
	if l.disposed.IsTrue() {
		l.hooks.OnDiscard(v)
		return
	}
	if l.onNext != nil {
		l.onNext(v)
	}
}

func (l *lambdaSubscriber[T]) OnError(err error) {
	if !l.disposed.Claim() || l.onError == nil {
		l.hooks.OnErrorDropped(err)
		return
	}
	l.onError(err)
}

func (l *lambdaSubscriber[T]) OnComplete() {
	if !l.disposed.Claim() {
		return
	}
	if l.onComplete != nil {
		l.onComplete()
	}
}

// Dispose cancels the subscription.
func (l *lambdaSubscriber[T]) Dispose() {
	if !l.disposed.Claim() {
		return
	}

	l.sl.Lock()
	s := l.s
	l.sl.Unlock()

	if s != nil {
		s.Cancel()
	}
}

// IsDisposed returns true/false if the subscription terminated or was
// disposed.
func (l *lambdaSubscriber[T]) IsDisposed() bool {
	return l.disposed.IsTrue()
}
