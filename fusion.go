package fluxkit

import "strings"

//***********************************
//  FusionMode
//***********************************

// FusionMode defines the mode negotiated between a consumer and a
// QueueSubscription which lets the consumer pull values directly.
type FusionMode uint8

// constants of fusion modes.
const (
	// FusionNone means no fusion, values are pushed through OnNext.
	FusionNone FusionMode = 0

	// FusionSync means all values are immediately available through Poll.
	// An empty Poll means the source is exhausted and no terminal signal
	// will follow.
	FusionSync FusionMode = 1 << 0

	// FusionAsync means values arrive asynchronously. OnNext is only a
	// notification that Poll should be called, an empty Poll means nothing
	// is available yet.
	FusionAsync FusionMode = 1 << 1

	// FusionAny requests either SYNC or ASYNC.
	FusionAny = FusionSync | FusionAsync

	// FusionThreadBarrier marks the requester as crossing a goroutine
	// boundary between Poll and the code producing values.
	FusionThreadBarrier FusionMode = 1 << 2
)

// Has returns true/false if m contains all bits of o.
func (m FusionMode) Has(o FusionMode) bool {
	return o != FusionNone && m&o == o
}

// String implements the Stringer interface.
func (m FusionMode) String() string {
	if m == FusionNone {
		return "NONE"
	}

	var parts []string
	if m&FusionSync != 0 {
		parts = append(parts, "SYNC")
	}
	if m&FusionAsync != 0 {
		parts = append(parts, "ASYNC")
	}
	if m&FusionThreadBarrier != 0 {
		parts = append(parts, "THREAD_BARRIER")
	}
	if len(parts) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(parts, "|")
}

//***********************************
//  QueueSubscription
//***********************************

// QueueSubscription is the optional fusion capability of a Subscription.
// Consumers type-assert for it once in OnSubscribe and never per signal.
type QueueSubscription[T any] interface {
	Subscription

	// RequestFusion negotiates the fusion mode once, before any call
	// to Poll. A subscription without an inner queue returns FusionNone.
	RequestFusion(requested FusionMode) FusionMode

	// Poll returns the next value if available. It may be called
	// repeatedly; ok is false when nothing is available.
	Poll() (value T, ok bool, err error)

	IsEmpty() bool
	Size() int
	Clear()
}

// Fuseable is implemented by publishers whose subscriptions implement
// QueueSubscription.
type Fuseable interface {
	Fuseable()
}

// IsFuseable returns true/false if giving value advertises fusion support.
func IsFuseable(v interface{}) bool {
	_, ok := v.(Fuseable)
	return ok
}

//***********************************
//  EmptySubscription
//***********************************

// EmptySubscription implements a QueueSubscription which never has
// values. It is handed to subscribers that receive a terminal signal
// right after OnSubscribe.
type EmptySubscription[T any] struct{}

// Request does nothing.
func (EmptySubscription[T]) Request(int64) {}

// Cancel does nothing.
func (EmptySubscription[T]) Cancel() {}

// RequestFusion accepts ASYNC fusion, the subscriber then polls nothing
// before the terminal signal.
func (EmptySubscription[T]) RequestFusion(requested FusionMode) FusionMode {
	return requested & FusionAsync
}

// Poll always returns no value.
func (EmptySubscription[T]) Poll() (T, bool, error) {
	var zero T
	return zero, false, nil
}

// IsEmpty always returns true.
func (EmptySubscription[T]) IsEmpty() bool { return true }

// Size always returns 0.
func (EmptySubscription[T]) Size() int { return 0 }

// Clear does nothing.
func (EmptySubscription[T]) Clear() {}
