package fluxkit

import (
	"context"
	"math"
)

// Unbounded defines the demand value which signals a subscriber wants
// all values a publisher can provide.
const Unbounded int64 = math.MaxInt64

//***********************************
//  Publisher
//***********************************

// Publisher defines a not-yet running computation which once subscribed
// emits zero or more values followed by exactly one terminal signal.
//
// Every call to Subscribe starts a new, independent subscription. The
// provided context carries the Hooks used to report faults and values
// which can no longer be delivered.
type Publisher[T any] interface {
	Subscribe(ctx context.Context, s Subscriber[T])
}

// PublisherFunc implements the Publisher interface for a function.
type PublisherFunc[T any] func(ctx context.Context, s Subscriber[T])

// Subscribe calls the underline function.
func (fn PublisherFunc[T]) Subscribe(ctx context.Context, s Subscriber[T]) {
	fn(ctx, s)
}

//***********************************
//  Subscriber
//***********************************

// Subscriber receives OnSubscribe once, followed by zero or more OnNext
// calls and at most one of OnError or OnComplete.
//
// Signals for a single subscription are never concurrent with each other,
// but Subscription.Cancel may be called from another goroutine while a
// terminal signal is in flight.
type Subscriber[T any] interface {
	OnSubscribe(Subscription)
	OnNext(T)
	OnError(error)
	OnComplete()
}

//***********************************
//  Subscription
//***********************************

// Subscription is the live demand and cancellation channel between a
// Subscriber and the Publisher it subscribed to.
type Subscription interface {
	// Request adds n to the outstanding demand. A value of n <= 0 is
	// a protocol violation which is reported to the subscriber through
	// OnError, never by panicking in the caller.
	Request(n int64)

	// Cancel asks the publisher to stop emitting. It is idempotent.
	Cancel()
}

//***********************************
//  Disposable
//***********************************

// Disposable defines a handle to a running task or subscription
// which can be stopped.
type Disposable interface {
	Dispose()
	IsDisposed() bool
}

//***********************************
//  Demand
//***********************************

// AddCap adds b to a, capping the result at Unbounded.
func AddCap(a, b int64) int64 {
	res := a + b
	if res < 0 {
		return Unbounded
	}
	return res
}

// ValidateRequest returns an error wrapping ErrInvalidRequest if n is not
// a positive demand.
func ValidateRequest(n int64) error {
	if n > 0 {
		return nil
	}
	return &RequestError{N: n}
}

//***********************************
//  Terminal helpers
//***********************************

// Complete delivers an empty subscription followed by completion to s.
func Complete[T any](s Subscriber[T]) {
	s.OnSubscribe(EmptySubscription[T]{})
	s.OnComplete()
}

// ErrorTo delivers an empty subscription followed by err to s.
func ErrorTo[T any](s Subscriber[T], err error) {
	s.OnSubscribe(EmptySubscription[T]{})
	s.OnError(err)
}
