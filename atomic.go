package fluxkit

import (
	"sync/atomic"
)

// AtomicBool implements a safe atomic boolean.
type AtomicBool struct {
	flag int32
}

// IsTrue returns true/false if giving atomic bool is in true state.
func (a *AtomicBool) IsTrue() bool {
	return atomic.LoadInt32(&a.flag) == 1
}

// On sets the atomic bool as true.
func (a *AtomicBool) On() {
	atomic.StoreInt32(&a.flag, 1)
}

// Claim flips the bool from false to true, returning true only for the
// single caller which performed the flip.
func (a *AtomicBool) Claim() bool {
	return atomic.CompareAndSwapInt32(&a.flag, 0, 1)
}

// AtomicCounter implements a wrapper around a int64.
type AtomicCounter struct {
	count int64
}

// Get returns giving counter count value.
func (a *AtomicCounter) Get() int64 {
	return atomic.LoadInt64(&a.count)
}

// Inc increments counter by one and returns the new value.
func (a *AtomicCounter) Inc() int64 {
	return atomic.AddInt64(&a.count, 1)
}
