package scheduler

import (
	"context"
	"sync"

	"github.com/gokit/fluxkit"
)

// SubscribeOn returns a Publisher which subscribes to source on a worker
// of sched. Requests made before the source subscription arrived are
// replayed to it. The worker is disposed once the subscription terminates
// or is cancelled.
//
// If the worker rejects the subscription task the subscriber receives the
// rejection error, unless it cancelled from within OnSubscribe.
func SubscribeOn[T any](source fluxkit.Publisher[T], sched Scheduler) fluxkit.Publisher[T] {
	return fluxkit.PublisherFunc[T](func(ctx context.Context, s fluxkit.Subscriber[T]) {
		so := &subscribeOn[T]{
			actual: s,
			hooks:  fluxkit.HooksFrom(ctx),
			worker: sched.CreateWorker(),
		}

		s.OnSubscribe(so)

		_, err := so.worker.Schedule(func(_ context.Context) {
			source.Subscribe(ctx, so)
		})
		if err != nil {
			so.worker.Dispose()
			if !so.isCancelled() {
				so.OnError(err)
			}
		}
	})
}

type subscribeOn[T any] struct {
	actual fluxkit.Subscriber[T]
	hooks  *fluxkit.Hooks
	worker Worker
	done   fluxkit.AtomicBool

	sl        sync.Mutex
	s         fluxkit.Subscription
	pending   int64
	cancelled bool
}

func (so *subscribeOn[T]) OnSubscribe(s fluxkit.Subscription) {
	so.sl.Lock()
	if so.cancelled || so.s != nil {
		so.sl.Unlock()
		s.Cancel()
		return
	}
	so.s = s
	pending := so.pending
	so.pending = 0
	so.sl.Unlock()

	if pending != 0 {
		s.Request(pending)
	}
}

func (so *subscribeOn[T]) OnNext(v T) {
	so.actual.OnNext(v)
}

func (so *subscribeOn[T]) OnError(err error) {
	if !so.done.Claim() {
		so.hooks.OnErrorDropped(err)
		return
	}
	so.actual.OnError(err)
	so.worker.Dispose()
}

func (so *subscribeOn[T]) OnComplete() {
	if !so.done.Claim() {
		return
	}
	so.actual.OnComplete()
	so.worker.Dispose()
}

func (so *subscribeOn[T]) Request(n int64) {
	so.sl.Lock()
	if so.s == nil {
		if n <= 0 {
			so.pending = n
		} else if so.pending >= 0 {
			so.pending = fluxkit.AddCap(so.pending, n)
		}
		so.sl.Unlock()
		return
	}
	s := so.s
	so.sl.Unlock()

	s.Request(n)
}

func (so *subscribeOn[T]) isCancelled() bool {
	so.sl.Lock()
	defer so.sl.Unlock()
	return so.cancelled
}

func (so *subscribeOn[T]) Cancel() {
	so.sl.Lock()
	if so.cancelled {
		so.sl.Unlock()
		return
	}
	so.cancelled = true
	s := so.s
	so.sl.Unlock()

	if s != nil {
		s.Cancel()
	}
	so.worker.Dispose()
}
